package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// AuditLog is an append-only record of a state-changing operation. Rows are
// never updated after creation.
type AuditLog struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID     uuid.UUID         `gorm:"column:group_id;type:uuid;not null;index"`
	Action      enums.AuditAction `gorm:"column:action;type:text;not null"`
	PerformedBy uuid.UUID         `gorm:"column:performed_by;type:uuid;not null"`
	EntityType  string            `gorm:"column:entity_type;type:text;not null"`
	EntityID    uuid.UUID         `gorm:"column:entity_id;type:uuid;not null"`
	OldValues   json.RawMessage   `gorm:"column:old_values;type:jsonb"`
	NewValues   json.RawMessage   `gorm:"column:new_values;type:jsonb"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
