package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

// MarkStragglersLate sweeps every still-unsettled payment of a closing
// cycle: each is marked late with days counted from its due date, charged
// the late fee, and reflected in the member's record. A failure on one
// straggler is logged and skipped so the rest of the sweep proceeds.
func (s *service) MarkStragglersLate(ctx context.Context, tx *gorm.DB, group *models.Group, cycleID uuid.UUID) (int, error) {
	if group == nil || cycleID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "group and cycle id required")
	}

	stragglers, err := s.repo.WithTx(tx).ListByCycleAndStatuses(ctx, cycleID, []enums.PaymentStatus{
		enums.PaymentStatusPending,
		enums.PaymentStatusUnderReview,
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stragglers")
	}

	now := s.clock.Now()
	processed := 0
	for i := range stragglers {
		payment := stragglers[i]
		if err := s.lapsePayment(ctx, tx, group, &payment, now); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"payment_id": payment.ID.String(),
				"cycle_id":   cycleID.String(),
			})
			s.logg.Error(logCtx, "lapse straggler payment", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// SweepOverdue moves pending payments past their grace window to late and
// applies the fee. Idempotent: a second pass finds no pending rows past
// grace and changes nothing.
func (s *service) SweepOverdue(ctx context.Context, cycleID uuid.UUID) (int, error) {
	if cycleID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cycle id required")
	}

	processed := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cycle, err := s.cycleRepo.FindByID(ctx, cycleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
		}
		if cycle.Status != enums.CycleStatusActive {
			return nil
		}
		group, err := s.groups.FindByID(ctx, cycle.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}

		pending, err := s.repo.WithTx(tx).ListByCycleAndStatuses(ctx, cycleID, []enums.PaymentStatus{
			enums.PaymentStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
		}

		now := s.clock.Now()
		grace := group.PenaltyRules.GracePeriodDays
		for i := range pending {
			payment := pending[i]
			if !now.After(payment.DueDate.AddDate(0, 0, grace)) {
				continue
			}
			if err := s.lapsePayment(ctx, tx, group, &payment, now); err != nil {
				logCtx := s.logg.WithField(ctx, "payment_id", payment.ID.String())
				s.logg.Error(logCtx, "lapse overdue payment", err)
				continue
			}
			processed++
		}

		if processed == 0 {
			return nil
		}
		if _, err := s.cycles.UpdatePaymentCounts(ctx, tx, cycleID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// lapsePayment applies the late/default transition to a single unsettled
// payment. Never-recorded payments count as a missed payment and may tip
// the member over the group's default threshold; recorded-but-unconfirmed
// payments only count as late.
func (s *service) lapsePayment(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, now time.Time) error {
	memberRepo := s.members.WithTx(tx)
	member, err := memberRepo.FindByID(ctx, payment.MemberID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	daysLate := daysBetween(payment.DueDate, now)
	wasRecorded := payment.Status == enums.PaymentStatusUnderReview

	missed := member.MissedPayments
	lateCount := member.LatePayments + 1
	nextStatus := enums.PaymentStatusLate
	if !wasRecorded {
		missed++
		threshold := group.PenaltyRules.DefaultThreshold
		if threshold > 0 && missed >= threshold {
			nextStatus = enums.PaymentStatusDefaulted
		}
	}

	fields := map[string]any{
		"status":    nextStatus,
		"is_late":   true,
		"days_late": daysLate,
	}
	if err := s.repo.WithTx(tx).Update(ctx, payment.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment late")
	}
	payment.Status = nextStatus
	payment.IsLate = true
	payment.DaysLate = daysLate

	memberFields := map[string]any{
		"missed_payments":   missed,
		"late_payments":     lateCount,
		"payment_streak":    0,
		"performance_score": members.Score(missed, lateCount, 0),
	}
	if nextStatus == enums.PaymentStatusDefaulted {
		memberFields["status"] = enums.MemberStatusDefaulted
	}
	if err := memberRepo.Update(ctx, member.ID, memberFields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member record")
	}

	if nextStatus == enums.PaymentStatusDefaulted {
		if _, err := s.penalties.ApplyDefaultPenalty(ctx, tx, group, payment, daysLate); err != nil {
			return err
		}
	} else {
		if _, err := s.penalties.ApplyLateFee(ctx, tx, group, payment, daysLate); err != nil {
			return err
		}
	}
	return nil
}

func daysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
