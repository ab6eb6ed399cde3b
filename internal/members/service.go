package members

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/rotation"
	"github.com/chitcircle/chitcircle-backend/pkg/db"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type groupReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error
}

// Service manages group membership: invitations, acceptance, and the
// administrative turn-order reassignment.
type Service interface {
	Invite(ctx context.Context, input InviteInput) (*models.Member, error)
	Accept(ctx context.Context, groupID, userID uuid.UUID) (*models.Member, error)
	ReassignTurnOrder(ctx context.Context, input ReassignInput) error
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Member, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	groups   groupReader
	audit    auditRecorder
	notifier notifications.Notifier
}

// InviteInput captures a new membership invitation.
type InviteInput struct {
	GroupID    uuid.UUID
	UserID     uuid.UUID
	TurnNumber int
	ActorID    uuid.UUID
}

// ReassignInput carries the administrative turn remap for a group.
type ReassignInput struct {
	GroupID uuid.UUID
	Remap   map[uuid.UUID]int
	ActorID uuid.UUID
}

// NewService wires the members service with its collaborators.
func NewService(repo Repository, tx txRunner, groups groupReader, auditSink auditRecorder, notifier notifications.Notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
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
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &service{repo: repo, tx: tx, groups: groups, audit: auditSink, notifier: notifier}, nil
}

func (s *service) Invite(ctx context.Context, input InviteInput) (*models.Member, error) {
	if input.GroupID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and user id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.TurnNumber < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "turn number must be positive")
	}

	group, err := s.groups.FindByID(ctx, input.GroupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if group.OrganizerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the organizer may invite members")
	}
	if group.Status != enums.GroupStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "members can only be invited before activation")
	}

	member := &models.Member{
		GroupID:    input.GroupID,
		UserID:     input.UserID,
		TurnNumber: input.TurnNumber,
		Status:     enums.MemberStatusInvited,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, member); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "turn number or membership already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     input.GroupID,
			Action:      enums.AuditActionMemberInvited,
			PerformedBy: input.ActorID,
			EntityType:  "member",
			EntityID:    member.ID,
			NewValues:   member,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, input.UserID, enums.NotificationTypeMemberInvited,
		"Group invitation",
		fmt.Sprintf("You have been invited to %s with turn %d.", group.Name, input.TurnNumber),
		map[string]any{"group_id": group.ID, "turn_number": input.TurnNumber})
	return member, nil
}

func (s *service) Accept(ctx context.Context, groupID, userID uuid.UUID) (*models.Member, error) {
	if groupID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and user id required")
	}

	member, err := s.repo.FindByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if member.Status != enums.MemberStatusInvited {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "membership is not pending acceptance")
	}

	if err := s.repo.Update(ctx, member.ID, map[string]any{"status": enums.MemberStatusActive}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept membership")
	}
	member.Status = enums.MemberStatusActive
	return member, nil
}

// ReassignTurnOrder remaps turn numbers for a group before or between
// cycles. The remap must keep the assignment a bijection onto 1..N.
func (s *service) ReassignTurnOrder(ctx context.Context, input ReassignInput) error {
	if input.GroupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if len(input.Remap) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "turn remap required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	group, err := s.groups.FindByID(ctx, input.GroupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if group.OrganizerID != input.ActorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the organizer may reassign turns")
	}
	if group.Status == enums.GroupStatusCompleted || group.Status == enums.GroupStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "turns cannot change after the group closes")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByGroup(ctx, input.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load members")
		}

		assignment := make(rotation.Assignment, len(current))
		for _, member := range current {
			assignment[member.ID] = member.TurnNumber
		}
		next, err := rotation.Reassign(assignment, input.Remap)
		if err != nil {
			return err
		}

		changed := make(map[uuid.UUID]int)
		for memberID, turn := range next {
			if assignment[memberID] != turn {
				changed[memberID] = turn
			}
		}
		if len(changed) == 0 {
			return nil
		}
		if err := repo.SetTurnNumbers(ctx, changed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist turn numbers")
		}

		return s.audit.Record(ctx, tx, audit.RecordInput{
			GroupID:     input.GroupID,
			Action:      enums.AuditActionTurnsReassigned,
			PerformedBy: input.ActorID,
			EntityType:  "group",
			EntityID:    input.GroupID,
			OldValues:   assignment,
			NewValues:   next,
		})
	})
}

func (s *service) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	members, err := s.repo.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return members, nil
}
