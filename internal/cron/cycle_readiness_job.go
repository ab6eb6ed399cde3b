package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

// CycleReadinessJobParams configure the payout readiness sweep.
type CycleReadinessJobParams struct {
	Logger *logger.Logger
	Cycles activeCycleLister
	Checks readinessChecker
}

type readinessChecker interface {
	CheckPayoutReadiness(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (bool, error)
}

// NewCycleReadinessJob builds the job that recounts active cycles and flips
// their payout readiness against the group quorum.
func NewCycleReadinessJob(params CycleReadinessJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycle lister required")
	}
	if params.Checks == nil {
		return nil, fmt.Errorf("readiness checker required")
	}
	return &cycleReadinessJob{
		logg:   params.Logger,
		cycles: params.Cycles,
		checks: params.Checks,
	}, nil
}

type cycleReadinessJob struct {
	logg   *logger.Logger
	cycles activeCycleLister
	checks readinessChecker
}

func (j *cycleReadinessJob) Name() string { return "cycle-readiness-sweep" }

func (j *cycleReadinessJob) Run(ctx context.Context) error {
	cycles, err := j.cycles.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active cycles: %w", err)
	}
	var errs []error
	ready := 0
	for _, cycle := range cycles {
		ok, err := j.checks.CheckPayoutReadiness(ctx, nil, cycle.ID)
		if err != nil {
			cycleCtx := j.logg.WithCycleID(ctx, cycle.ID.String())
			j.logg.Error(cycleCtx, "readiness check failed for cycle", err)
			errs = append(errs, fmt.Errorf("cycle %s: %w", cycle.ID, err))
			continue
		}
		if ok {
			ready++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"cycles": len(cycles), "ready": ready})
	j.logg.Info(logCtx, "cycle readiness sweep complete")
	return multierr.Combine(errs...)
}
