package enums

import "fmt"

// AuditAction names the state-changing operation captured by an audit entry.
type AuditAction string

const (
	AuditActionGroupCreated     AuditAction = "group_created"
	AuditActionGroupActivated   AuditAction = "group_activated"
	AuditActionGroupCompleted   AuditAction = "group_completed"
	AuditActionMemberInvited    AuditAction = "member_invited"
	AuditActionTurnsReassigned  AuditAction = "turns_reassigned"
	AuditActionPaymentRecorded  AuditAction = "payment_recorded"
	AuditActionPaymentConfirmed AuditAction = "payment_confirmed"
	AuditActionPaymentRejected  AuditAction = "payment_rejected"
	AuditActionPaymentLate      AuditAction = "payment_marked_late"
	AuditActionPenaltyApplied   AuditAction = "penalty_applied"
	AuditActionPenaltyWaived    AuditAction = "penalty_waived"
	AuditActionPayoutInitiated  AuditAction = "payout_initiated"
	AuditActionPayoutApproved   AuditAction = "payout_approved"
	AuditActionPayoutCompleted  AuditAction = "payout_completed"
	AuditActionPayoutFailed     AuditAction = "payout_failed"
	AuditActionCycleCompleted   AuditAction = "cycle_completed"
	AuditActionCycleOpened      AuditAction = "cycle_opened"
)

var validAuditActions = []AuditAction{
	AuditActionGroupCreated,
	AuditActionGroupActivated,
	AuditActionGroupCompleted,
	AuditActionMemberInvited,
	AuditActionTurnsReassigned,
	AuditActionPaymentRecorded,
	AuditActionPaymentConfirmed,
	AuditActionPaymentRejected,
	AuditActionPaymentLate,
	AuditActionPenaltyApplied,
	AuditActionPenaltyWaived,
	AuditActionPayoutInitiated,
	AuditActionPayoutApproved,
	AuditActionPayoutCompleted,
	AuditActionPayoutFailed,
	AuditActionCycleCompleted,
	AuditActionCycleOpened,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
