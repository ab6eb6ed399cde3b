package enums

import "fmt"

// NotificationType labels in-app notification payloads.
type NotificationType string

const (
	NotificationTypePaymentReview    NotificationType = "payment_review"
	NotificationTypePaymentConfirmed NotificationType = "payment_confirmed"
	NotificationTypePaymentRejected  NotificationType = "payment_rejected"
	NotificationTypePaymentLate      NotificationType = "payment_late"
	NotificationTypePenaltyApplied   NotificationType = "penalty_applied"
	NotificationTypePenaltyWaived    NotificationType = "penalty_waived"
	NotificationTypePayoutRequested  NotificationType = "payout_requested"
	NotificationTypePayoutApproved   NotificationType = "payout_approved"
	NotificationTypePayoutCompleted  NotificationType = "payout_completed"
	NotificationTypePayoutFailed     NotificationType = "payout_failed"
	NotificationTypeCycleOpened      NotificationType = "cycle_opened"
	NotificationTypeGroupActivated   NotificationType = "group_activated"
	NotificationTypeMemberInvited    NotificationType = "member_invited"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePaymentReview,
	NotificationTypePaymentConfirmed,
	NotificationTypePaymentRejected,
	NotificationTypePaymentLate,
	NotificationTypePenaltyApplied,
	NotificationTypePenaltyWaived,
	NotificationTypePayoutRequested,
	NotificationTypePayoutApproved,
	NotificationTypePayoutCompleted,
	NotificationTypePayoutFailed,
	NotificationTypeCycleOpened,
	NotificationTypeGroupActivated,
	NotificationTypeMemberInvited,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
