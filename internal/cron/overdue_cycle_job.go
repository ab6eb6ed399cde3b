package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/metrics"
)

const defaultOverdueGraceDays = 7

// OverdueCycleJobParams configure the overdue-cycle auto-complete sweep.
type OverdueCycleJobParams struct {
	Logger    *logger.Logger
	Cycles    overdueCycleLister
	Completer cycleForcer
	Metrics   *metrics.SweepMetrics
	GraceDays int
}

type overdueCycleLister interface {
	ListOverdue(ctx context.Context, before time.Time) ([]models.Cycle, error)
}

type cycleForcer interface {
	ForceComplete(ctx context.Context, cycleID uuid.UUID) error
}

// NewOverdueCycleJob builds the job that force-completes cycles left open
// past their end date plus the configured grace window.
func NewOverdueCycleJob(params OverdueCycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycle lister required")
	}
	if params.Completer == nil {
		return nil, fmt.Errorf("cycle completer required")
	}
	graceDays := params.GraceDays
	if graceDays <= 0 {
		graceDays = defaultOverdueGraceDays
	}
	return &overdueCycleJob{
		logg:      params.Logger,
		cycles:    params.Cycles,
		completer: params.Completer,
		metrics:   params.Metrics,
		graceDays: graceDays,
		now:       time.Now,
	}, nil
}

type overdueCycleJob struct {
	logg      *logger.Logger
	cycles    overdueCycleLister
	completer cycleForcer
	metrics   *metrics.SweepMetrics
	graceDays int
	now       func() time.Time
}

func (j *overdueCycleJob) Name() string { return "overdue-cycle-sweep" }

func (j *overdueCycleJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.graceDays) * 24 * time.Hour)
	cycles, err := j.cycles.ListOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list overdue cycles: %w", err)
	}
	var errs []error
	completed := 0
	for _, cycle := range cycles {
		if err := j.completer.ForceComplete(ctx, cycle.ID); err != nil {
			cycleCtx := j.logg.WithCycleID(ctx, cycle.ID.String())
			j.logg.Error(cycleCtx, "force complete failed for cycle", err)
			errs = append(errs, fmt.Errorf("cycle %s: %w", cycle.ID, err))
			continue
		}
		completed++
	}
	j.metrics.AddProcessed(j.Name(), completed)
	logCtx := j.logg.WithFields(ctx, map[string]any{"overdue": len(cycles), "completed": completed})
	j.logg.Info(logCtx, "overdue cycle sweep complete")
	return multierr.Combine(errs...)
}
