package penalties

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// paymentStamper records the applied fee on the payment row.
type paymentStamper interface {
	StampLateFee(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, fee int64, daysLate int) error
}

// memberLedger applies penalty-total deltas to a member row.
type memberLedger interface {
	AddPenaltyTotal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error
	UserIDForMember(ctx context.Context, memberID uuid.UUID) (uuid.UUID, error)
}

// groupLedger applies penalty-total deltas to group stats.
type groupLedger interface {
	AddPenaltyStats(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// Service applies and settles penalties. ApplyLateFee and SettleForMember
// run inside a caller-owned transaction because they are steps of larger
// payment or payout mutations; Waive owns its own transaction.
type Service interface {
	ApplyLateFee(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error)
	ApplyDefaultPenalty(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error)
	SettleForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error)
	UnpaidTotalForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error)
	Waive(ctx context.Context, input WaiveInput) (*models.Penalty, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	payments paymentStamper
	members  memberLedger
	groups   groupLedger
	audit    auditRecorder
	notifier notifications.Notifier
	clock    clock.Clock
}

// WaiveInput identifies the penalty being waived and the acting admin.
type WaiveInput struct {
	PenaltyID uuid.UUID
	AdminID   uuid.UUID
	Reason    string
}

// NewService wires the penalty service with its collaborators.
func NewService(repo Repository, tx txRunner, payments paymentStamper, members memberLedger, groups groupLedger, audit auditRecorder, notifier notifications.Notifier, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "penalties repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment stamper required")
	}
	if members == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "member ledger required")
	}
	if groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "group ledger required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &service{
		repo:     repo,
		tx:       tx,
		payments: payments,
		members:  members,
		groups:   groups,
		audit:    audit,
		notifier: notifier,
		clock:    clk,
	}, nil
}

// ApplyLateFee charges the group's flat late fee against a late payment.
// It is a no-op when the group has no fee configured or when a late_fee
// penalty already exists for the payment, so sweeps can call it repeatedly.
func (s *service) ApplyLateFee(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error) {
	if group == nil || payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group and payment required")
	}
	return s.applyPenalty(ctx, tx, group, payment, enums.PenaltyTypeLateFee, LateFeeFor(group),
		fmt.Sprintf("contribution %d day(s) past due", daysLate), daysLate)
}

// ApplyDefaultPenalty charges twice the late fee when a member crosses the
// group's default threshold. Idempotent per payment like ApplyLateFee.
func (s *service) ApplyDefaultPenalty(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error) {
	if group == nil || payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group and payment required")
	}
	return s.applyPenalty(ctx, tx, group, payment, enums.PenaltyTypeDefaultPenalty, DefaultPenaltyFor(group),
		fmt.Sprintf("contribution defaulted after %d day(s)", daysLate), daysLate)
}

func (s *service) applyPenalty(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, penaltyType enums.PenaltyType, amount int64, reason string, daysLate int) (*models.Penalty, error) {
	if amount <= 0 {
		return nil, nil
	}

	repo := s.repo.WithTx(tx)
	exists, err := repo.ExistsForPayment(ctx, payment.ID, penaltyType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing penalty")
	}
	if exists {
		return nil, nil
	}

	penalty := &models.Penalty{
		GroupID:   group.ID,
		MemberID:  payment.MemberID,
		CycleID:   &payment.CycleID,
		PaymentID: &payment.ID,
		Type:      penaltyType,
		Amount:    amount,
		Reason:    reason,
		DaysLate:  daysLate,
	}
	if err := repo.Create(ctx, penalty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create penalty")
	}
	if err := s.payments.StampLateFee(ctx, tx, payment.ID, amount, daysLate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp payment late fee")
	}
	if err := s.members.AddPenaltyTotal(ctx, tx, payment.MemberID, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment member penalties")
	}
	if err := s.groups.AddPenaltyStats(ctx, tx, group.ID, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment group penalties")
	}
	err = s.audit.Record(ctx, tx, audit.RecordInput{
		GroupID:     group.ID,
		Action:      enums.AuditActionPenaltyApplied,
		PerformedBy: group.OrganizerID,
		EntityType:  "penalty",
		EntityID:    penalty.ID,
		NewValues:   penalty,
	})
	if err != nil {
		return nil, err
	}
	return penalty, nil
}

// SettleForMember marks every unpaid, non-waived penalty the member holds in
// the group as paid. A confirmed catch-up payment clears the whole backlog,
// not just the penalty tied to one payment.
func (s *service) SettleForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error) {
	if groupID == uuid.Nil || memberID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "group id and member id required")
	}
	count, err := s.repo.WithTx(tx).MarkPaidForMember(ctx, groupID, memberID, s.clock.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle member penalties")
	}
	return count, nil
}

func (s *service) UnpaidTotalForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error) {
	if groupID == uuid.Nil || memberID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "group id and member id required")
	}
	total, err := s.repo.WithTx(tx).UnpaidTotalByMember(ctx, groupID, memberID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum unpaid penalties")
	}
	return total, nil
}

// Waive marks a penalty as waived and reverses its contribution to the
// member and group penalty totals. Paid and already-waived penalties are
// terminal and cannot be waived.
func (s *service) Waive(ctx context.Context, input WaiveInput) (*models.Penalty, error) {
	if input.PenaltyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "penalty id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var waived *models.Penalty
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		penalty, err := repo.FindByID(ctx, input.PenaltyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "penalty not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load penalty")
		}
		if penalty.IsPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "penalty already paid")
		}
		if penalty.IsWaived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "penalty already waived")
		}

		now := s.clock.Now()
		fields := map[string]any{
			"is_waived": true,
			"waived_by": input.AdminID,
			"waived_at": now,
		}
		if input.Reason != "" {
			fields["reason"] = input.Reason
		}
		if err := repo.Update(ctx, penalty.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "waive penalty")
		}
		if err := s.members.AddPenaltyTotal(ctx, tx, penalty.MemberID, -penalty.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement member penalties")
		}
		if err := s.groups.AddPenaltyStats(ctx, tx, penalty.GroupID, -penalty.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement group penalties")
		}

		before := *penalty
		penalty.IsWaived = true
		penalty.WaivedBy = &input.AdminID
		penalty.WaivedAt = &now
		if input.Reason != "" {
			penalty.Reason = input.Reason
		}
		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     penalty.GroupID,
			Action:      enums.AuditActionPenaltyWaived,
			PerformedBy: input.AdminID,
			EntityType:  "penalty",
			EntityID:    penalty.ID,
			OldValues:   before,
			NewValues:   penalty,
		})
		if err != nil {
			return err
		}
		waived = penalty
		return nil
	})
	if err != nil {
		return nil, err
	}

	if userID, err := s.members.UserIDForMember(ctx, waived.MemberID); err == nil {
		s.notifier.Notify(ctx, userID, enums.NotificationTypePenaltyWaived,
			"Penalty waived",
			fmt.Sprintf("A penalty of %d was waived.", waived.Amount),
			map[string]any{"penalty_id": waived.ID, "group_id": waived.GroupID})
	}
	return waived, nil
}
