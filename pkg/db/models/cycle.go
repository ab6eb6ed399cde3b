package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Cycle is one rotation period of a group with exactly one beneficiary.
// The count and amount columns are recomputed from payment rows by
// UpdatePaymentCounts; nothing else may write them.
type Cycle struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID           uuid.UUID         `gorm:"column:group_id;type:uuid;not null;index:idx_cycles_group_number,unique"`
	CycleNumber       int               `gorm:"column:cycle_number;not null;index:idx_cycles_group_number,unique"`
	Status            enums.CycleStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	StartDate         time.Time         `gorm:"column:start_date;not null"`
	EndDate           time.Time         `gorm:"column:end_date;not null"`
	BeneficiaryID     uuid.UUID         `gorm:"column:beneficiary_id;type:uuid;not null"`
	ExpectedAmount    int64             `gorm:"column:expected_amount;not null;default:0"`
	CollectedAmount   int64             `gorm:"column:collected_amount;not null;default:0"`
	TotalMembers      int               `gorm:"column:total_members;not null;default:0"`
	PaidCount         int               `gorm:"column:paid_count;not null;default:0"`
	PendingCount      int               `gorm:"column:pending_count;not null;default:0"`
	LateCount         int               `gorm:"column:late_count;not null;default:0"`
	DefaultedCount    int               `gorm:"column:defaulted_count;not null;default:0"`
	IsReadyForPayout  bool              `gorm:"column:is_ready_for_payout;not null;default:false"`
	IsPayoutCompleted bool              `gorm:"column:is_payout_completed;not null;default:false"`
	PayoutAmount      int64             `gorm:"column:payout_amount;not null;default:0"`
	CompletedAt       *time.Time        `gorm:"column:completed_at"`
	CompletedBy       *uuid.UUID        `gorm:"column:completed_by;type:uuid"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
