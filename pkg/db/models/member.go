package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Member links a user to a group with a beneficiary turn. TurnNumber is the
// single source of truth for rotation order; ordered views are derived by
// sorting, never stored separately.
type Member struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID           uuid.UUID          `gorm:"column:group_id;type:uuid;not null;index:idx_members_group_turn,unique"`
	UserID            uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	TurnNumber        int                `gorm:"column:turn_number;not null;index:idx_members_group_turn,unique"`
	Status            enums.MemberStatus `gorm:"column:status;type:text;not null;default:'invited'"`
	TotalContributed  int64              `gorm:"column:total_contributed;not null;default:0"`
	TotalPenalties    int64              `gorm:"column:total_penalties;not null;default:0"`
	PayoutAmount      int64              `gorm:"column:payout_amount;not null;default:0"`
	HasReceivedPayout bool               `gorm:"column:has_received_payout;not null;default:false"`
	MissedPayments    int                `gorm:"column:missed_payments;not null;default:0"`
	LatePayments      int                `gorm:"column:late_payments;not null;default:0"`
	PaymentStreak     int                `gorm:"column:payment_streak;not null;default:0"`
	PerformanceScore  int                `gorm:"column:performance_score;not null;default:100"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
