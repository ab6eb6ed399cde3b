package enums

import "fmt"

// MemberStatus tracks a member's standing inside a group.
type MemberStatus string

const (
	MemberStatusInvited   MemberStatus = "invited"
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusDefaulted MemberStatus = "defaulted"
	MemberStatusExited    MemberStatus = "exited"
)

var validMemberStatuses = []MemberStatus{
	MemberStatusInvited,
	MemberStatusActive,
	MemberStatusSuspended,
	MemberStatusDefaulted,
	MemberStatusExited,
}

// String implements fmt.Stringer.
func (m MemberStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberStatus.
func (m MemberStatus) IsValid() bool {
	for _, candidate := range validMemberStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberStatus converts raw input into a MemberStatus.
func ParseMemberStatus(value string) (MemberStatus, error) {
	for _, candidate := range validMemberStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member status %q", value)
}
