package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/cycles"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// Service runs the payout handshake and the advance-cycle cascade. Completing
// a payout closes the cycle, penalizes stragglers, opens the next cycle with
// penalty debt rolled into each member's amount, and completes the group
// after the final turn.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Payout, error)
	Approve(ctx context.Context, input ApproveInput) (*models.Payout, error)
	Complete(ctx context.Context, input CompleteInput) (*models.Payout, error)
	Fail(ctx context.Context, payoutID uuid.UUID, reason string, actorID uuid.UUID) (*models.Payout, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Payout, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	groups      groups.Repository
	members     members.Repository
	cycleRepo   cycles.Repository
	cycles      cycles.Service
	paymentRepo payments.Repository
	payments    payments.Service
	penalties   penalties.Service
	audit       auditRecorder
	notifier    notifications.Notifier
	logg        *logger.Logger
	clock       clock.Clock
}

// InitiateInput starts the handshake for a cycle's pooled amount. A zero
// Amount defaults to the cycle's collected total.
type InitiateInput struct {
	CycleID     uuid.UUID
	Amount      int64
	OrganizerID uuid.UUID
}

// ApproveInput is the beneficiary's acceptance of an initiated payout.
type ApproveInput struct {
	PayoutID uuid.UUID
	UserID   uuid.UUID
	Remarks  string
}

// CompleteInput finalizes an approved payout with the transfer reference.
type CompleteInput struct {
	PayoutID    uuid.UUID
	TransferRef string
	ActorID     uuid.UUID
}

// NewService wires the payout workflow with its collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	groupRepo groups.Repository,
	memberRepo members.Repository,
	cycleRepo cycles.Repository,
	cycleSvc cycles.Service,
	paymentRepo payments.Repository,
	paymentSvc payments.Service,
	penaltySvc penalties.Service,
	auditSink auditRecorder,
	notifier notifications.Notifier,
	logg *logger.Logger,
	clk clock.Clock,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payouts repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if groupRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "groups repository required")
	}
	if memberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	if cycleRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycles repository required")
	}
	if cycleSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycle service required")
	}
	if paymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if paymentSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment service required")
	}
	if penaltySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "penalty service required")
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
		repo:        repo,
		tx:          tx,
		groups:      groupRepo,
		members:     memberRepo,
		cycleRepo:   cycleRepo,
		cycles:      cycleSvc,
		paymentRepo: paymentRepo,
		payments:    paymentSvc,
		penalties:   penaltySvc,
		audit:       auditSink,
		notifier:    notifier,
		logg:        logg,
		clock:       clk,
	}, nil
}

// Initiate opens the handshake. No readiness check is enforced: an organizer
// may knowingly initiate with outstanding dues, and stragglers are penalized
// when the payout completes.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Payout, error) {
	if input.CycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id required")
	}
	if input.OrganizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "organizer identity missing")
	}

	cycle, err := s.cycleRepo.FindByID(ctx, input.CycleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
	}
	organizerID, err := s.groups.OrganizerID(ctx, cycle.GroupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group organizer")
	}
	if organizerID != input.OrganizerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the organizer may initiate a payout")
	}

	amount := input.Amount
	if amount <= 0 {
		amount = cycle.CollectedAmount
	}

	var payout *models.Payout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		open, err := repo.FindOpenByCycle(ctx, input.CycleID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open payout")
		}
		if open != nil {
			// A scheduled payout is the legacy pre-created record; initiation
			// moves it into the handshake instead of creating a duplicate.
			if open.Status != enums.PayoutStatusScheduled {
				return pkgerrors.New(pkgerrors.CodeConflict, "a payout is already in progress for this cycle")
			}
			fields := map[string]any{
				"status": enums.PayoutStatusPendingApproval,
				"amount": amount,
			}
			if err := repo.Update(ctx, open.ID, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance scheduled payout")
			}
			open.Status = enums.PayoutStatusPendingApproval
			open.Amount = amount
			payout = open
		} else {
			payout = &models.Payout{
				GroupID:       cycle.GroupID,
				CycleID:       cycle.ID,
				BeneficiaryID: cycle.BeneficiaryID,
				Amount:        amount,
				Status:        enums.PayoutStatusPendingApproval,
				InitiatedBy:   input.OrganizerID,
			}
			if err := repo.Create(ctx, payout); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
			}
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     cycle.GroupID,
			Action:      enums.AuditActionPayoutInitiated,
			PerformedBy: input.OrganizerID,
			EntityType:  "payout",
			EntityID:    payout.ID,
			NewValues:   payout,
		})
	})
	if err != nil {
		return nil, err
	}

	if userID, err := s.members.UserIDForMember(ctx, payout.BeneficiaryID); err == nil {
		s.notifier.Notify(ctx, userID, enums.NotificationTypePayoutRequested,
			"Payout ready for your approval",
			fmt.Sprintf("A payout of %d for cycle %d awaits your approval.", payout.Amount, cycle.CycleNumber),
			map[string]any{"payout_id": payout.ID, "cycle_id": cycle.ID})
	}
	return payout, nil
}

func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	payout, err := s.repo.FindByID(ctx, input.PayoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status != enums.PayoutStatusPendingApproval {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payout cannot be approved from %s", payout.Status))
	}
	beneficiaryUser, err := s.members.UserIDForMember(ctx, payout.BeneficiaryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beneficiary")
	}
	if beneficiaryUser != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the beneficiary may approve the payout")
	}

	now := s.clock.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		fields := map[string]any{
			"status":      enums.PayoutStatusApproved,
			"approved_by": input.UserID,
			"approved_at": now,
		}
		if input.Remarks != "" {
			fields["remarks"] = input.Remarks
		}
		if err := s.repo.WithTx(tx).Update(ctx, payout.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve payout")
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     payout.GroupID,
			Action:      enums.AuditActionPayoutApproved,
			PerformedBy: input.UserID,
			EntityType:  "payout",
			EntityID:    payout.ID,
			OldValues:   map[string]any{"status": payout.Status},
			NewValues:   map[string]any{"status": enums.PayoutStatusApproved},
		})
	})
	if err != nil {
		return nil, err
	}
	payout.Status = enums.PayoutStatusApproved
	payout.ApprovedBy = &input.UserID
	payout.ApprovedAt = &now
	if input.Remarks != "" {
		payout.Remarks = &input.Remarks
	}

	if organizerID, err := s.groups.OrganizerID(ctx, payout.GroupID); err == nil {
		s.notifier.Notify(ctx, organizerID, enums.NotificationTypePayoutApproved,
			"Payout approved",
			fmt.Sprintf("The beneficiary approved the payout of %d.", payout.Amount),
			map[string]any{"payout_id": payout.ID})
	}
	return payout, nil
}

// Complete finalizes the transfer and advances the group: close the cycle,
// sweep stragglers, open the next cycle with each member's unpaid penalties
// rolled into the new amount, or complete the group after the final turn.
// Scheduled payouts may complete directly, bypassing approval, as an
// administrative override.
func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var (
		payout      *models.Payout
		nextOpened  *models.Cycle
		notifyUsers []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByID(ctx, input.PayoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		switch loaded.Status {
		case enums.PayoutStatusApproved, enums.PayoutStatusScheduled:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payout cannot be completed from %s", loaded.Status))
		}

		group, err := s.groups.WithTx(tx).FindByID(ctx, loaded.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}

		// The row holds processing while the transfer is recorded and the
		// cycle closes, so a concurrent reader never sees an approved payout
		// whose cycle is already finalized.
		if err := repo.Update(ctx, loaded.ID, map[string]any{"status": enums.PayoutStatusProcessing}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout processing")
		}
		loaded.Status = enums.PayoutStatusProcessing

		if _, err := s.cycles.CompletePayout(ctx, tx, loaded.CycleID, loaded.Amount, input.ActorID); err != nil {
			return err
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":       enums.PayoutStatusCompleted,
			"completed_at": now,
		}
		if input.TransferRef != "" {
			fields["transfer_ref"] = input.TransferRef
		}
		if err := repo.Update(ctx, loaded.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout")
		}
		loaded.Status = enums.PayoutStatusCompleted
		loaded.CompletedAt = &now

		memberRepo := s.members.WithTx(tx)
		memberFields := map[string]any{
			"has_received_payout": true,
			"payout_amount":       loaded.Amount,
		}
		if err := memberRepo.Update(ctx, loaded.BeneficiaryID, memberFields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark beneficiary paid")
		}
		if err := s.groups.AddDisbursed(ctx, tx, group.ID, loaded.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment group disbursed")
		}

		if _, err := s.payments.MarkStragglersLate(ctx, tx, group, loaded.CycleID); err != nil {
			return err
		}

		if group.CurrentCycle < group.MemberCount {
			next, err := s.openNextCycle(ctx, tx, group)
			if err != nil {
				return err
			}
			nextOpened = next
		} else {
			groupFields := map[string]any{"status": enums.GroupStatusCompleted}
			if err := s.groups.WithTx(tx).Update(ctx, group.ID, groupFields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete group")
			}
			err = s.audit.Record(ctx, tx, audit.RecordInput{
				GroupID:     group.ID,
				Action:      enums.AuditActionGroupCompleted,
				PerformedBy: input.ActorID,
				EntityType:  "group",
				EntityID:    group.ID,
				NewValues:   map[string]any{"status": enums.GroupStatusCompleted},
			})
			if err != nil {
				return err
			}
		}

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     group.ID,
			Action:      enums.AuditActionPayoutCompleted,
			PerformedBy: input.ActorID,
			EntityType:  "payout",
			EntityID:    loaded.ID,
			NewValues:   map[string]any{"status": loaded.Status, "amount": loaded.Amount},
		})
		if err != nil {
			return err
		}

		if nextOpened != nil {
			roster, err := memberRepo.FindByGroup(ctx, group.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load members")
			}
			for _, member := range roster {
				if member.Status == enums.MemberStatusActive {
					notifyUsers = append(notifyUsers, member.UserID)
				}
			}
		}
		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if userID, err := s.members.UserIDForMember(ctx, payout.BeneficiaryID); err == nil {
		s.notifier.Notify(ctx, userID, enums.NotificationTypePayoutCompleted,
			"Payout completed",
			fmt.Sprintf("Your payout of %d was transferred.", payout.Amount),
			map[string]any{"payout_id": payout.ID})
	}
	if nextOpened != nil {
		for _, userID := range notifyUsers {
			s.notifier.Notify(ctx, userID, enums.NotificationTypeCycleOpened,
				"New cycle open",
				fmt.Sprintf("Cycle %d is open; contributions are due by %s.",
					nextOpened.CycleNumber, nextOpened.EndDate.Format("2006-01-02")),
				map[string]any{"cycle_id": nextOpened.ID})
		}
	}
	return payout, nil
}

// openNextCycle flips the next pending cycle to active and rolls each
// member's unpaid, non-waived penalties into their payment amount for it.
func (s *service) openNextCycle(ctx context.Context, tx *gorm.DB, group *models.Group) (*models.Cycle, error) {
	nextNumber := group.CurrentCycle + 1
	next, err := s.cycleRepo.WithTx(tx).FindByGroupAndNumber(ctx, group.ID, nextNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("cycle %d missing for group", nextNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load next cycle")
	}
	if next.Status != enums.CycleStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cycle %d cannot open from %s", nextNumber, next.Status))
	}

	if err := s.cycleRepo.WithTx(tx).Update(ctx, next.ID, map[string]any{
		"status": enums.CycleStatusActive,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open next cycle")
	}
	next.Status = enums.CycleStatusActive

	paymentRepo := s.paymentRepo.WithTx(tx)
	pending, err := paymentRepo.ListByCycleAndStatuses(ctx, next.ID, []enums.PaymentStatus{
		enums.PaymentStatusPending,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list next cycle payments")
	}
	for _, payment := range pending {
		debt, err := s.penalties.UnpaidTotalForMember(ctx, tx, group.ID, payment.MemberID)
		if err != nil {
			return nil, err
		}
		if debt <= 0 {
			continue
		}
		amount := group.ContributionAmount + debt
		if err := paymentRepo.Update(ctx, payment.ID, map[string]any{"amount": amount}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "roll penalty debt forward")
		}
	}

	if err := s.groups.WithTx(tx).Update(ctx, group.ID, map[string]any{
		"current_cycle": nextNumber,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance current cycle")
	}
	group.CurrentCycle = nextNumber

	if err := s.audit.Record(ctx, tx, audit.RecordInput{
		GroupID:    group.ID,
		Action:     enums.AuditActionCycleOpened,
		EntityType: "cycle",
		EntityID:   next.ID,
		NewValues:  map[string]any{"cycle_number": nextNumber},
	}); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *service) Fail(ctx context.Context, payoutID uuid.UUID, reason string, actorID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByID(ctx, payoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		if loaded.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payout cannot fail from %s", loaded.Status))
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":        enums.PayoutStatusFailed,
			"retry_count":   loaded.RetryCount + 1,
			"last_retry_at": now,
		}
		if reason != "" {
			fields["failure_reason"] = reason
		}
		if err := repo.Update(ctx, loaded.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payout")
		}
		before := loaded.Status
		loaded.Status = enums.PayoutStatusFailed
		loaded.RetryCount++
		loaded.LastRetryAt = &now
		if reason != "" {
			loaded.FailureReason = &reason
		}

		err = s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     loaded.GroupID,
			Action:      enums.AuditActionPayoutFailed,
			PerformedBy: actorID,
			EntityType:  "payout",
			EntityID:    loaded.ID,
			OldValues:   map[string]any{"status": before},
			NewValues:   map[string]any{"status": loaded.Status, "reason": reason},
		})
		if err != nil {
			return err
		}
		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if organizerID, err := s.groups.OrganizerID(ctx, payout.GroupID); err == nil {
		s.notifier.Notify(ctx, organizerID, enums.NotificationTypePayoutFailed,
			"Payout failed",
			fmt.Sprintf("The payout of %d failed: %s. Retry when resolved.", payout.Amount, reason),
			map[string]any{"payout_id": payout.ID, "retry_count": payout.RetryCount})
	}
	return payout, nil
}

func (s *service) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Payout, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	payouts, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}
