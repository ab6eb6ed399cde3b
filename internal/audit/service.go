package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/pagination"
)

// Service defines the append-only audit sink. Record is called inside the
// same transaction as the state change it describes, so a failed mutation
// leaves no orphaned audit rows.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) error
	ListByGroup(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data an audit entry requires. OldValues
// and NewValues are marshalled as-is when they are not already raw JSON.
type RecordInput struct {
	GroupID     uuid.UUID
	Action      enums.AuditAction
	PerformedBy uuid.UUID
	EntityType  string
	EntityID    uuid.UUID
	OldValues   any
	NewValues   any
}

// ListParams configures pagination for the per-group audit trail.
type ListParams struct {
	GroupID uuid.UUID
	Limit   int
	Cursor  string
}

// ListResult wraps returned entries and the cursor for the next page.
type ListResult struct {
	Items  []models.AuditLog `json:"items"`
	Cursor string            `json:"cursor"`
}

// NewService wires the audit sink with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) error {
	if input.GroupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if input.PerformedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if !input.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action")
	}

	oldValues, err := marshalValues(input.OldValues)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal old values")
	}
	newValues, err := marshalValues(input.NewValues)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal new values")
	}

	entry := &models.AuditLog{
		GroupID:     input.GroupID,
		Action:      input.Action,
		PerformedBy: input.PerformedBy,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		OldValues:   oldValues,
		NewValues:   newValues,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit entry")
	}
	return nil
}

func (s *service) ListByGroup(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.GroupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}

	query := listAuditParams{
		GroupID: params.GroupID,
		Limit:   params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByGroup(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func marshalValues(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}
