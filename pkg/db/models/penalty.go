package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Penalty charges a member for a late or missed contribution. IsPaid and
// IsWaived are mutually exclusive terminal states.
type Penalty struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID   uuid.UUID         `gorm:"column:group_id;type:uuid;not null;index"`
	MemberID  uuid.UUID         `gorm:"column:member_id;type:uuid;not null;index"`
	CycleID   *uuid.UUID        `gorm:"column:cycle_id;type:uuid"`
	PaymentID *uuid.UUID        `gorm:"column:payment_id;type:uuid;index"`
	Type      enums.PenaltyType `gorm:"column:type;type:text;not null"`
	Amount    int64             `gorm:"column:amount;not null"`
	IsPaid    bool              `gorm:"column:is_paid;not null;default:false"`
	IsWaived  bool              `gorm:"column:is_waived;not null;default:false"`
	Reason    string            `gorm:"column:reason;type:text;not null"`
	DaysLate  int               `gorm:"column:days_late;not null;default:0"`
	PaidAt    *time.Time        `gorm:"column:paid_at"`
	WaivedBy  *uuid.UUID        `gorm:"column:waived_by;type:uuid"`
	WaivedAt  *time.Time        `gorm:"column:waived_at"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
