package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// PenaltyRules holds the per-group fee schedule.
type PenaltyRules struct {
	LateFee          int64 `gorm:"column:late_fee;not null;default:0"`
	GracePeriodDays  int   `gorm:"column:grace_period_days;not null;default:0"`
	DefaultThreshold int   `gorm:"column:default_threshold;not null;default:3"`
}

// GroupStats caches aggregate totals derivable from payment, penalty and
// payout rows. The stats reconciler recomputes them from source records.
type GroupStats struct {
	TotalCollected  int64 `gorm:"column:total_collected;not null;default:0"`
	TotalDisbursed  int64 `gorm:"column:total_disbursed;not null;default:0"`
	TotalPenalties  int64 `gorm:"column:total_penalties;not null;default:0"`
	CompletedCycles int   `gorm:"column:completed_cycles;not null;default:0"`
	ActiveMembers   int   `gorm:"column:active_members;not null;default:0"`
}

// Group is a rotating-savings circle. MemberCount doubles as the number of
// cycles the group runs for; each member receives exactly one payout.
type Group struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string              `gorm:"column:name;type:text;not null"`
	OrganizerID        uuid.UUID           `gorm:"column:organizer_id;type:uuid;not null"`
	ContributionAmount int64               `gorm:"column:contribution_amount;not null"`
	MemberCount        int                 `gorm:"column:member_count;not null"`
	StartDate          time.Time           `gorm:"column:start_date;not null"`
	PaymentWindowFrom  int                 `gorm:"column:payment_window_from;not null;default:1"`
	PaymentWindowTo    int                 `gorm:"column:payment_window_to;not null;default:28"`
	PenaltyRules       PenaltyRules        `gorm:"embedded;embeddedPrefix:penalty_"`
	QuorumPercent      int                 `gorm:"column:quorum_percent;not null;default:100"`
	TurnOrderType      enums.TurnOrderType `gorm:"column:turn_order_type;type:text;not null;default:'fixed'"`
	CurrentCycle       int                 `gorm:"column:current_cycle;not null;default:0"`
	Status             enums.GroupStatus   `gorm:"column:status;type:text;not null;default:'draft'"`
	Stats              GroupStats          `gorm:"embedded;embeddedPrefix:stats_"`
	Members            []Member            `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
