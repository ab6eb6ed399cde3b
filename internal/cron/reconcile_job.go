package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chitcircle/chitcircle-backend/internal/stats"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/metrics"
)

// ReconcileJobParams configure the periodic stats reconciliation.
type ReconcileJobParams struct {
	Logger  *logger.Logger
	Groups  activeGroupLister
	Stats   statsReconciler
	Metrics *metrics.SweepMetrics
}

type activeGroupLister interface {
	ListActive(ctx context.Context) ([]models.Group, error)
}

type statsReconciler interface {
	Reconcile(ctx context.Context, groupID uuid.UUID) (*stats.Report, error)
}

// NewReconcileJob builds the job that recomputes cached aggregates for every
// active group and writes back any drift.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group lister required")
	}
	if params.Stats == nil {
		return nil, fmt.Errorf("stats reconciler required")
	}
	return &reconcileJob{
		logg:    params.Logger,
		groups:  params.Groups,
		stats:   params.Stats,
		metrics: params.Metrics,
	}, nil
}

type reconcileJob struct {
	logg    *logger.Logger
	groups  activeGroupLister
	stats   statsReconciler
	metrics *metrics.SweepMetrics
}

func (j *reconcileJob) Name() string { return "stats-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	groups, err := j.groups.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active groups: %w", err)
	}
	var errs []error
	drifted := 0
	for _, group := range groups {
		report, err := j.stats.Reconcile(ctx, group.ID)
		if err != nil {
			groupCtx := j.logg.WithGroupID(ctx, group.ID.String())
			j.logg.Error(groupCtx, "stats reconcile failed for group", err)
			errs = append(errs, fmt.Errorf("group %s: %w", group.ID, err))
			continue
		}
		if !report.Clean() {
			drifted += len(report.Drifts)
		}
	}
	j.metrics.AddProcessed(j.Name(), drifted)
	logCtx := j.logg.WithFields(ctx, map[string]any{"groups": len(groups), "drifts": drifted})
	j.logg.Info(logCtx, "stats reconcile sweep complete")
	return multierr.Combine(errs...)
}
