package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Payment is a member's contribution record for a single cycle. Amounts are
// whole currency units. At most one payment exists per (member, cycle).
type Payment struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID    uuid.UUID           `gorm:"column:group_id;type:uuid;not null"`
	MemberID   uuid.UUID           `gorm:"column:member_id;type:uuid;not null;index:idx_payments_member_cycle,unique"`
	CycleID    uuid.UUID           `gorm:"column:cycle_id;type:uuid;not null;index:idx_payments_member_cycle,unique"`
	Amount     int64               `gorm:"column:amount;not null;default:0"`
	Status     enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	DueDate    time.Time           `gorm:"column:due_date;not null"`
	PaidAt     *time.Time          `gorm:"column:paid_at"`
	IsLate     bool                `gorm:"column:is_late;not null;default:false"`
	DaysLate   int                 `gorm:"column:days_late;not null;default:0"`
	LateFee    int64               `gorm:"column:late_fee;not null;default:0"`
	ProofRef   *string             `gorm:"column:proof_ref;type:text"`
	ReviewedBy *uuid.UUID          `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt *time.Time          `gorm:"column:reviewed_at"`
	Notes      *string             `gorm:"column:notes;type:text"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
