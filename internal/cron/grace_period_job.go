package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/metrics"
)

// GracePeriodJobParams configure the overdue-payment sweep.
type GracePeriodJobParams struct {
	Logger   *logger.Logger
	Cycles   activeCycleLister
	Payments overdueSweeper
	Metrics  *metrics.SweepMetrics
}

type activeCycleLister interface {
	ListActive(ctx context.Context) ([]models.Cycle, error)
}

type overdueSweeper interface {
	SweepOverdue(ctx context.Context, cycleID uuid.UUID) (int, error)
}

// NewGracePeriodJob builds the job that marks grace-expired payments late.
func NewGracePeriodJob(params GracePeriodJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycle lister required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment sweeper required")
	}
	return &gracePeriodJob{
		logg:     params.Logger,
		cycles:   params.Cycles,
		payments: params.Payments,
		metrics:  params.Metrics,
	}, nil
}

type gracePeriodJob struct {
	logg     *logger.Logger
	cycles   activeCycleLister
	payments overdueSweeper
	metrics  *metrics.SweepMetrics
}

func (j *gracePeriodJob) Name() string { return "grace-period-sweep" }

// Run sweeps every active cycle. A failing cycle is logged and skipped so a
// single bad group cannot stall the rest.
func (j *gracePeriodJob) Run(ctx context.Context) error {
	cycles, err := j.cycles.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active cycles: %w", err)
	}
	var errs []error
	total := 0
	for _, cycle := range cycles {
		processed, err := j.payments.SweepOverdue(ctx, cycle.ID)
		if err != nil {
			cycleCtx := j.logg.WithCycleID(ctx, cycle.ID.String())
			j.logg.Error(cycleCtx, "grace period sweep failed for cycle", err)
			errs = append(errs, fmt.Errorf("cycle %s: %w", cycle.ID, err))
			continue
		}
		total += processed
	}
	j.metrics.AddProcessed(j.Name(), total)
	logCtx := j.logg.WithFields(ctx, map[string]any{"cycles": len(cycles), "payments": total})
	j.logg.Info(logCtx, "grace period sweep complete")
	return multierr.Combine(errs...)
}
