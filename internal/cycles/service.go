package cycles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// groupReader resolves the quorum and organizer for a cycle's group.
type groupReader interface {
	QuorumPercent(ctx context.Context, groupID uuid.UUID) (int, error)
	OrganizerID(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error)
}

// Service is the cycle state machine. The count columns on a cycle are only
// ever written by UpdatePaymentCounts, so paid+pending+late+defaulted ==
// total holds after every recount.
type Service interface {
	UpdatePaymentCounts(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (*models.Cycle, error)
	CheckPayoutReadiness(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (bool, error)
	CompletePayout(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID, amount int64, userID uuid.UUID) (*models.Cycle, error)
	ForceComplete(ctx context.Context, cycleID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	groups groupReader
	audit  auditRecorder
	clock  clock.Clock
}

// NewService wires the cycle state machine with its collaborators.
func NewService(repo Repository, tx txRunner, groups groupReader, auditSink auditRecorder, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycles repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "group reader required")
	}
	if auditSink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &service{repo: repo, tx: tx, groups: groups, audit: auditSink, clock: clk}, nil
}

// UpdatePaymentCounts recomputes the cycle counters from the payment rows.
func (s *service) UpdatePaymentCounts(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (*models.Cycle, error) {
	if cycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id required")
	}

	repo := s.repo.WithTx(tx)
	cycle, err := repo.FindByID(ctx, cycleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
	}

	tallies, err := repo.PaymentTallies(ctx, cycleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tally cycle payments")
	}
	counts := ComputeCounts(tallies)

	fields := map[string]any{
		"total_members":    counts.Total,
		"paid_count":       counts.Paid,
		"pending_count":    counts.Pending,
		"late_count":       counts.Late,
		"defaulted_count":  counts.Defaulted,
		"collected_amount": counts.Collected,
	}
	if err := repo.Update(ctx, cycleID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cycle counts")
	}

	cycle.TotalMembers = counts.Total
	cycle.PaidCount = counts.Paid
	cycle.PendingCount = counts.Pending
	cycle.LateCount = counts.Late
	cycle.DefaultedCount = counts.Defaulted
	cycle.CollectedAmount = counts.Collected
	return cycle, nil
}

// CheckPayoutReadiness recounts and flips is_ready_for_payout against the
// group's quorum.
func (s *service) CheckPayoutReadiness(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (bool, error) {
	cycle, err := s.UpdatePaymentCounts(ctx, tx, cycleID)
	if err != nil {
		return false, err
	}

	quorum, err := s.groups.QuorumPercent(ctx, cycle.GroupID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group quorum")
	}

	ready := ReadyForPayout(cycle.PaidCount, cycle.TotalMembers, quorum)
	if ready != cycle.IsReadyForPayout {
		if err := s.repo.WithTx(tx).Update(ctx, cycleID, map[string]any{"is_ready_for_payout": ready}); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist readiness")
		}
	}
	return ready, nil
}

// CompletePayout closes a cycle after its payout settles. Runs inside the
// payout completion transaction.
func (s *service) CompletePayout(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID, amount int64, userID uuid.UUID) (*models.Cycle, error) {
	if cycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	repo := s.repo.WithTx(tx)
	cycle, err := repo.FindByID(ctx, cycleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
	}
	if cycle.IsPayoutCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cycle payout already completed")
	}
	if cycle.Status != enums.CycleStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cycle is not active")
	}

	now := s.clock.Now()
	fields := map[string]any{
		"is_payout_completed": true,
		"payout_amount":       amount,
		"status":              enums.CycleStatusCompleted,
		"completed_at":        now,
		"completed_by":        userID,
	}
	if err := repo.Update(ctx, cycleID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete cycle payout")
	}

	err = s.audit.Record(ctx, tx, audit.RecordInput{
		GroupID:     cycle.GroupID,
		Action:      enums.AuditActionCycleCompleted,
		PerformedBy: userID,
		EntityType:  "cycle",
		EntityID:    cycle.ID,
		OldValues:   map[string]any{"status": cycle.Status, "is_payout_completed": false},
		NewValues:   map[string]any{"status": enums.CycleStatusCompleted, "is_payout_completed": true, "payout_amount": amount},
	})
	if err != nil {
		return nil, err
	}

	cycle.IsPayoutCompleted = true
	cycle.PayoutAmount = amount
	cycle.Status = enums.CycleStatusCompleted
	cycle.CompletedAt = &now
	cycle.CompletedBy = &userID
	return cycle, nil
}

// ForceComplete closes an overdue cycle without a payout. Used by the
// overdue sweep; already-closed cycles are skipped silently so the sweep
// stays idempotent.
func (s *service) ForceComplete(ctx context.Context, cycleID uuid.UUID) error {
	if cycleID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cycle id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cycle, err := repo.FindByID(ctx, cycleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
		}
		if cycle.Status != enums.CycleStatusActive {
			return nil
		}

		organizerID, err := s.groups.OrganizerID(ctx, cycle.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group organizer")
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":       enums.CycleStatusCompleted,
			"completed_at": now,
			"completed_by": organizerID,
		}
		if err := repo.Update(ctx, cycle.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "force complete cycle")
		}

		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     cycle.GroupID,
			Action:      enums.AuditActionCycleCompleted,
			PerformedBy: organizerID,
			EntityType:  "cycle",
			EntityID:    cycle.ID,
			OldValues:   map[string]any{"status": cycle.Status},
			NewValues:   map[string]any{"status": enums.CycleStatusCompleted, "forced": true},
		})
	})
}
