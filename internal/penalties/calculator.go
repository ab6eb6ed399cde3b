package penalties

import "github.com/chitcircle/chitcircle-backend/pkg/db/models"

// LateFeeFor returns the flat late fee configured for the group, or 0 when
// no fee is configured. A zero result means no penalty should be created.
func LateFeeFor(group *models.Group) int64 {
	if group == nil || group.PenaltyRules.LateFee <= 0 {
		return 0
	}
	return group.PenaltyRules.LateFee
}

// DefaultPenaltyFor returns the penalty charged when a member defaults,
// fixed at twice the late fee.
func DefaultPenaltyFor(group *models.Group) int64 {
	return 2 * LateFeeFor(group)
}
