package groups

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/cycles"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/internal/rotation"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// Service manages group setup: creation in draft, then one-time activation
// that materializes every cycle and payment row for the group's lifetime.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Group, error)
	Activate(ctx context.Context, groupID, actorID uuid.UUID) (*models.Group, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	members     members.Repository
	cycleRepo   cycles.Repository
	paymentRepo payments.Repository
	audit       auditRecorder
	notifier    notifications.Notifier
	rng         *rand.Rand
}

// CreateInput carries the organizer's group configuration. The contribution
// amount arrives as raw text and is digit-stripped into whole currency units.
type CreateInput struct {
	Name               string
	OrganizerID        uuid.UUID
	ContributionAmount string
	MemberCount        int
	StartDate          time.Time
	PaymentWindowFrom  int
	PaymentWindowTo    int
	TurnOrderType      enums.TurnOrderType
	QuorumPercent      int
	LateFee            int64
	GracePeriodDays    int
	DefaultThreshold   int
}

// NewService wires the groups service with its collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	memberRepo members.Repository,
	cycleRepo cycles.Repository,
	paymentRepo payments.Repository,
	auditSink auditRecorder,
	notifier notifications.Notifier,
	rng *rand.Rand,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "groups repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if memberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	if cycleRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cycles repository required")
	}
	if paymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if auditSink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &service{
		repo:        repo,
		tx:          tx,
		members:     memberRepo,
		cycleRepo:   cycleRepo,
		paymentRepo: paymentRepo,
		audit:       auditSink,
		notifier:    notifier,
		rng:         rng,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Group, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group name required")
	}
	if input.OrganizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "organizer identity missing")
	}
	if input.MemberCount < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a group needs at least two members")
	}
	if input.StartDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start date required")
	}

	contribution, err := money.Sanitize(input.ContributionAmount)
	if err != nil {
		return nil, err
	}
	if contribution <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contribution amount must be positive")
	}

	windowFrom := input.PaymentWindowFrom
	if windowFrom < 1 {
		windowFrom = 1
	}
	windowTo := input.PaymentWindowTo
	if windowTo < 1 {
		windowTo = 28
	}
	if windowTo > 31 || windowFrom > windowTo {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment window out of range")
	}

	quorum := input.QuorumPercent
	if quorum <= 0 {
		quorum = 100
	}
	if quorum > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quorum percent cannot exceed 100")
	}

	turnOrder := input.TurnOrderType
	if turnOrder == "" {
		turnOrder = enums.TurnOrderTypeFixed
	}
	if !turnOrder.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown turn order type %q", turnOrder))
	}

	threshold := input.DefaultThreshold
	if threshold <= 0 {
		threshold = 3
	}

	group := &models.Group{
		Name:               input.Name,
		OrganizerID:        input.OrganizerID,
		ContributionAmount: contribution,
		MemberCount:        input.MemberCount,
		StartDate:          input.StartDate,
		PaymentWindowFrom:  windowFrom,
		PaymentWindowTo:    windowTo,
		PenaltyRules: models.PenaltyRules{
			LateFee:          input.LateFee,
			GracePeriodDays:  input.GracePeriodDays,
			DefaultThreshold: threshold,
		},
		QuorumPercent: quorum,
		TurnOrderType: turnOrder,
		Status:        enums.GroupStatusDraft,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, group); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group")
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     group.ID,
			Action:      enums.AuditActionGroupCreated,
			PerformedBy: input.OrganizerID,
			EntityType:  "group",
			EntityID:    group.ID,
			NewValues:   group,
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Activate materializes the group's full schedule: one cycle per active
// member with that turn's beneficiary, and one pending payment per member
// per cycle due at the cycle's close. Stale rows from a previously failed
// attempt are deleted first so a retry starts clean.
func (s *service) Activate(ctx context.Context, groupID, actorID uuid.UUID) (*models.Group, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if group.OrganizerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the organizer may activate the group")
	}
	if group.Status == enums.GroupStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "group already activated")
	}
	if group.Status != enums.GroupStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("group cannot be activated from %s", group.Status))
	}

	var notifyUsers []uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		memberRepo := s.members.WithTx(tx)
		roster, err := memberRepo.FindByGroup(ctx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load members")
		}
		var active []models.Member
		for _, member := range roster {
			if member.Status == enums.MemberStatusActive {
				active = append(active, member)
			}
		}
		if len(active) < 2 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "activation requires at least two active members")
		}

		original := make(map[uuid.UUID]int, len(active))
		for _, member := range active {
			original[member.ID] = member.TurnNumber
		}

		// Members invited without explicit turns get row order before the
		// assigner validates the bijection.
		if !group.TurnOrderType.Shuffles() && allTurnsUnset(active) {
			for i := range active {
				active[i].TurnNumber = i + 1
			}
		}
		assignment, err := rotation.Assign(active, group.TurnOrderType, s.rng)
		if err != nil {
			return err
		}

		changed := make(map[uuid.UUID]int)
		for _, member := range active {
			if assignment[member.ID] != original[member.ID] {
				changed[member.ID] = assignment[member.ID]
			}
		}
		if len(changed) > 0 {
			if err := memberRepo.SetTurnNumbers(ctx, assignment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist turn numbers")
			}
		}

		// A failed earlier attempt may have left partial rows behind.
		if err := s.paymentRepo.WithTx(tx).DeleteByGroup(ctx, groupID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear stale payments")
		}
		if err := s.cycleRepo.WithTx(tx).DeleteByGroup(ctx, groupID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear stale cycles")
		}

		n := len(active)
		expected := group.ContributionAmount * int64(n)
		cycleRows := make([]models.Cycle, 0, n)
		paymentRows := make([]models.Payment, 0, n*n)
		for turn := 1; turn <= n; turn++ {
			beneficiary, ok := rotation.BeneficiaryForTurn(assignment, turn)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("no beneficiary assigned for turn %d", turn))
			}
			start, end := cycleWindow(group.StartDate, turn, group.PaymentWindowFrom, group.PaymentWindowTo)
			status := enums.CycleStatusPending
			if turn == 1 {
				status = enums.CycleStatusActive
			}
			cycle := models.Cycle{
				ID:             uuid.New(),
				GroupID:        groupID,
				CycleNumber:    turn,
				Status:         status,
				StartDate:      start,
				EndDate:        end,
				BeneficiaryID:  beneficiary,
				ExpectedAmount: expected,
				TotalMembers:   n,
				PendingCount:   n,
			}
			cycleRows = append(cycleRows, cycle)
			for _, member := range active {
				paymentRows = append(paymentRows, models.Payment{
					GroupID:  groupID,
					MemberID: member.ID,
					CycleID:  cycle.ID,
					Amount:   group.ContributionAmount,
					Status:   enums.PaymentStatusPending,
					DueDate:  end,
				})
			}
		}
		if err := s.cycleRepo.WithTx(tx).CreateBatch(ctx, cycleRows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cycles")
		}
		if err := s.paymentRepo.WithTx(tx).CreateBatch(ctx, paymentRows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payments")
		}

		fields := map[string]any{
			"status":               enums.GroupStatusActive,
			"current_cycle":        1,
			"member_count":         n,
			"stats_active_members": n,
		}
		if err := s.repo.WithTx(tx).Update(ctx, groupID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate group")
		}
		group.Status = enums.GroupStatusActive
		group.CurrentCycle = 1
		group.MemberCount = n
		group.Stats.ActiveMembers = n

		for _, member := range active {
			notifyUsers = append(notifyUsers, member.UserID)
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     groupID,
			Action:      enums.AuditActionGroupActivated,
			PerformedBy: actorID,
			EntityType:  "group",
			EntityID:    groupID,
			NewValues: map[string]any{
				"cycles":         n,
				"active_members": n,
				"turn_order":     assignment,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range notifyUsers {
		s.notifier.Notify(ctx, userID, enums.NotificationTypeGroupActivated,
			"Group activated",
			fmt.Sprintf("%s is now active; the first contribution cycle is open.", group.Name),
			map[string]any{"group_id": group.ID})
	}
	return group, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

func (s *service) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error) {
	if organizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	groups, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list groups")
	}
	return groups, nil
}

func allTurnsUnset(roster []models.Member) bool {
	for _, member := range roster {
		if member.TurnNumber != 0 {
			return false
		}
	}
	return true
}

// cycleWindow places cycle i in the i-th month after the group's start,
// opening and closing on the configured payment window days. Day numbers
// past the month's end roll over per time.Date normalization.
func cycleWindow(anchor time.Time, turn, windowFrom, windowTo int) (time.Time, time.Time) {
	month := anchor.AddDate(0, turn-1, 0)
	year, m, _ := month.Date()
	start := time.Date(year, m, windowFrom, 0, 0, 0, 0, month.Location())
	end := time.Date(year, m, windowTo, 0, 0, 0, 0, month.Location())
	return start, end
}
