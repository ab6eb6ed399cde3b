package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Payout is the transfer record for a cycle's pooled amount. At most one
// non-terminal payout may exist per cycle.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID       uuid.UUID          `gorm:"column:group_id;type:uuid;not null;index"`
	CycleID       uuid.UUID          `gorm:"column:cycle_id;type:uuid;not null;index"`
	BeneficiaryID uuid.UUID          `gorm:"column:beneficiary_id;type:uuid;not null"`
	Amount        int64              `gorm:"column:amount;not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'scheduled'"`
	ScheduledDate *time.Time         `gorm:"column:scheduled_date"`
	InitiatedBy   uuid.UUID          `gorm:"column:initiated_by;type:uuid;not null"`
	ApprovedBy    *uuid.UUID         `gorm:"column:approved_by;type:uuid"`
	ApprovedAt    *time.Time         `gorm:"column:approved_at"`
	CompletedAt   *time.Time         `gorm:"column:completed_at"`
	TransferRef   *string            `gorm:"column:transfer_ref;type:text"`
	Remarks       *string            `gorm:"column:remarks;type:text"`
	FailureReason *string            `gorm:"column:failure_reason;type:text"`
	RetryCount    int                `gorm:"column:retry_count;not null;default:0"`
	LastRetryAt   *time.Time         `gorm:"column:last_retry_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
