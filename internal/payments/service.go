package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/cycles"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type groupReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type cycleReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
}

type groupLedger interface {
	AddCollected(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// Service is the per-member, per-cycle payment state machine. Recording
// always lands in under_review; lateness is decided at record time and only
// drives penalty application. The late status itself is reserved for
// administrative overrides and sweeps over never-settled records.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.Payment, error)
	Confirm(ctx context.Context, input ReviewInput) (*models.Payment, error)
	Reject(ctx context.Context, input ReviewInput) (*models.Payment, error)
	MarkLate(ctx context.Context, paymentID, actorID uuid.UUID) (*models.Payment, error)
	MarkStragglersLate(ctx context.Context, tx *gorm.DB, group *models.Group, cycleID uuid.UUID) (int, error)
	SweepOverdue(ctx context.Context, cycleID uuid.UUID) (int, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	members   members.Repository
	groups    groupReader
	cycleRepo cycleReader
	groupAgg  groupLedger
	penalties penalties.Service
	cycles    cycles.Service
	audit     auditRecorder
	notifier  notifications.Notifier
	logg      *logger.Logger
	clock     clock.Clock
}

// RecordInput captures a contribution submission. Amount arrives as raw
// text and is digit-stripped into whole currency units.
type RecordInput struct {
	MemberID uuid.UUID
	CycleID  uuid.UUID
	Amount   string
	ProofRef *string
	ActorID  uuid.UUID
}

// ReviewInput identifies the payment under review and the deciding admin.
type ReviewInput struct {
	PaymentID uuid.UUID
	AdminID   uuid.UUID
	Reason    string
}

// NewService wires the payment state machine with its collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	memberRepo members.Repository,
	groups groupReader,
	cycleRepo cycleReader,
	groupAgg groupLedger,
	penaltySvc penalties.Service,
	cycleSvc cycles.Service,
	auditSink auditRecorder,
	notifier notifications.Notifier,
	logg *logger.Logger,
	clk clock.Clock,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if memberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	if groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "group reader required")
	}
	if cycleRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycle reader required")
	}
	if groupAgg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "group ledger required")
	}
	if penaltySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "penalty service required")
	}
	if cycleSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycle service required")
	}
	if auditSink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &service{
		repo:      repo,
		tx:        tx,
		members:   memberRepo,
		groups:    groups,
		cycleRepo: cycleRepo,
		groupAgg:  groupAgg,
		penalties: penaltySvc,
		cycles:    cycleSvc,
		audit:     auditSink,
		notifier:  notifier,
		logg:      logg,
		clock:     clk,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.Payment, error) {
	if input.MemberID == uuid.Nil || input.CycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id and cycle id required")
	}

	amount, err := money.Sanitize(input.Amount)
	if err != nil {
		return nil, err
	}

	var (
		recorded    *models.Payment
		organizerID uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		memberRepo := s.members.WithTx(tx)

		member, err := memberRepo.FindByID(ctx, input.MemberID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		cycle, err := s.cycleRepo.FindByID(ctx, input.CycleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
		}
		if cycle.Status == enums.CycleStatusCompleted || cycle.Status == enums.CycleStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cycle is closed to contributions")
		}
		group, err := s.groups.FindByID(ctx, member.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		organizerID = group.OrganizerID

		payment, err := repo.FindByMemberAndCycle(ctx, input.MemberID, input.CycleID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment != nil {
			switch payment.Status {
			case enums.PaymentStatusPending, enums.PaymentStatusRejected:
			default:
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for this cycle")
			}
		}

		now := s.clock.Now()
		dueDate := cycle.EndDate
		if payment != nil {
			dueDate = payment.DueDate
		}
		grace := group.PenaltyRules.GracePeriodDays
		isLate := now.After(dueDate.AddDate(0, 0, grace))
		daysLate := 0
		if isLate {
			daysLate = daysBetween(dueDate, now)
		}

		fields := map[string]any{
			"amount":    amount,
			"status":    enums.PaymentStatusUnderReview,
			"paid_at":   now,
			"is_late":   isLate,
			"days_late": daysLate,
		}
		if input.ProofRef != nil {
			fields["proof_ref"] = *input.ProofRef
		}

		if payment == nil {
			payment = &models.Payment{
				GroupID:  member.GroupID,
				MemberID: input.MemberID,
				CycleID:  input.CycleID,
				Amount:   amount,
				Status:   enums.PaymentStatusUnderReview,
				DueDate:  dueDate,
				PaidAt:   &now,
				IsLate:   isLate,
				DaysLate: daysLate,
				ProofRef: input.ProofRef,
			}
			if err := repo.Create(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
		} else {
			if err := repo.Update(ctx, payment.ID, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
			}
			payment.Amount = amount
			payment.Status = enums.PaymentStatusUnderReview
			payment.PaidAt = &now
			payment.IsLate = isLate
			payment.DaysLate = daysLate
			if input.ProofRef != nil {
				payment.ProofRef = input.ProofRef
			}
		}

		// Rollup: the recorded amount counts toward member and group totals
		// immediately; rejection reverses it.
		if err := memberRepo.AddContribution(ctx, tx, member.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment member contribution")
		}
		if err := s.groupAgg.AddCollected(ctx, tx, group.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment group collected")
		}

		streak := member.PaymentStreak + 1
		lateCount := member.LatePayments
		if isLate {
			streak = 0
			lateCount++
		}
		memberFields := map[string]any{
			"payment_streak":    streak,
			"late_payments":     lateCount,
			"performance_score": members.Score(member.MissedPayments, lateCount, streak),
		}
		if err := memberRepo.Update(ctx, member.ID, memberFields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member performance")
		}

		if isLate {
			if _, err := s.penalties.ApplyLateFee(ctx, tx, group, payment, daysLate); err != nil {
				return err
			}
		}

		if _, err := s.cycles.CheckPayoutReadiness(ctx, tx, cycle.ID); err != nil {
			return err
		}

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     group.ID,
			Action:      enums.AuditActionPaymentRecorded,
			PerformedBy: actorOrMemberUser(input.ActorID, member.UserID),
			EntityType:  "payment",
			EntityID:    payment.ID,
			NewValues:   payment,
		})
		if err != nil {
			return err
		}
		recorded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, organizerID, enums.NotificationTypePaymentReview,
		"Payment awaiting review",
		fmt.Sprintf("A contribution of %d was recorded and needs confirmation.", recorded.Amount),
		map[string]any{"payment_id": recorded.ID, "cycle_id": recorded.CycleID})
	return recorded, nil
}

func (s *service) Confirm(ctx context.Context, input ReviewInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var (
		confirmed *models.Payment
		userID    uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByID(ctx, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		switch payment.Status {
		case enums.PaymentStatusUnderReview, enums.PaymentStatusLate:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment cannot be confirmed from %s", payment.Status))
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":      enums.PaymentStatusSettled,
			"reviewed_by": input.AdminID,
			"reviewed_at": now,
		}
		if err := repo.Update(ctx, payment.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
		}
		before := payment.Status
		payment.Status = enums.PaymentStatusSettled
		payment.ReviewedBy = &input.AdminID
		payment.ReviewedAt = &now

		// A settling payment clears the member's whole penalty backlog, not
		// just the fee tied to this payment.
		if _, err := s.penalties.SettleForMember(ctx, tx, payment.GroupID, payment.MemberID); err != nil {
			return err
		}
		if _, err := s.cycles.CheckPayoutReadiness(ctx, tx, payment.CycleID); err != nil {
			return err
		}

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     payment.GroupID,
			Action:      enums.AuditActionPaymentConfirmed,
			PerformedBy: input.AdminID,
			EntityType:  "payment",
			EntityID:    payment.ID,
			OldValues:   map[string]any{"status": before},
			NewValues:   map[string]any{"status": payment.Status},
		})
		if err != nil {
			return err
		}

		if id, err := s.members.UserIDForMember(ctx, payment.MemberID); err == nil {
			userID = id
		}
		confirmed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, userID, enums.NotificationTypePaymentConfirmed,
		"Payment confirmed",
		fmt.Sprintf("Your contribution of %d settled.", confirmed.Amount),
		map[string]any{"payment_id": confirmed.ID})
	return confirmed, nil
}

func (s *service) Reject(ctx context.Context, input ReviewInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var (
		rejected *models.Payment
		userID   uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByID(ctx, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusUnderReview {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment cannot be rejected from %s", payment.Status))
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":      enums.PaymentStatusRejected,
			"reviewed_by": input.AdminID,
			"reviewed_at": now,
		}
		if input.Reason != "" {
			fields["notes"] = input.Reason
		}
		if err := repo.Update(ctx, payment.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payment")
		}

		// Reverse the rollup applied at record time so totals track only
		// live contributions.
		if err := s.members.AddContribution(ctx, tx, payment.MemberID, -payment.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse member contribution")
		}
		if err := s.groupAgg.AddCollected(ctx, tx, payment.GroupID, -payment.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse group collected")
		}
		if _, err := s.cycles.CheckPayoutReadiness(ctx, tx, payment.CycleID); err != nil {
			return err
		}

		before := payment.Status
		payment.Status = enums.PaymentStatusRejected
		payment.ReviewedBy = &input.AdminID
		payment.ReviewedAt = &now

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     payment.GroupID,
			Action:      enums.AuditActionPaymentRejected,
			PerformedBy: input.AdminID,
			EntityType:  "payment",
			EntityID:    payment.ID,
			OldValues:   map[string]any{"status": before},
			NewValues:   map[string]any{"status": payment.Status, "reason": input.Reason},
		})
		if err != nil {
			return err
		}

		if id, err := s.members.UserIDForMember(ctx, payment.MemberID); err == nil {
			userID = id
		}
		rejected = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, userID, enums.NotificationTypePaymentRejected,
		"Payment rejected",
		fmt.Sprintf("Your contribution of %d was rejected: %s", rejected.Amount, input.Reason),
		map[string]any{"payment_id": rejected.ID})
	return rejected, nil
}

// MarkLate is the administrative override moving a never-recorded payment to
// late, applying the one-time fee.
func (s *service) MarkLate(ctx context.Context, paymentID, actorID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var (
		marked *models.Payment
		userID uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment cannot be marked late from %s", payment.Status))
		}

		group, err := s.groups.FindByID(ctx, payment.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}

		if err := s.lapsePayment(ctx, tx, group, payment, s.clock.Now()); err != nil {
			return err
		}
		if _, err := s.cycles.CheckPayoutReadiness(ctx, tx, payment.CycleID); err != nil {
			return err
		}

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     payment.GroupID,
			Action:      enums.AuditActionPaymentLate,
			PerformedBy: actorID,
			EntityType:  "payment",
			EntityID:    payment.ID,
			NewValues:   map[string]any{"status": payment.Status, "days_late": payment.DaysLate},
		})
		if err != nil {
			return err
		}

		if id, err := s.members.UserIDForMember(ctx, payment.MemberID); err == nil {
			userID = id
		}
		marked = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, userID, enums.NotificationTypePaymentLate,
		"Payment overdue",
		fmt.Sprintf("Your contribution is %d day(s) late.", marked.DaysLate),
		map[string]any{"payment_id": marked.ID})
	return marked, nil
}

func actorOrMemberUser(actorID, memberUserID uuid.UUID) uuid.UUID {
	if actorID != uuid.Nil {
		return actorID
	}
	return memberUserID
}
