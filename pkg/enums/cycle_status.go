package enums

import "fmt"

// CycleStatus tracks the lifecycle of a contribution cycle.
type CycleStatus string

const (
	CycleStatusPending   CycleStatus = "pending"
	CycleStatusActive    CycleStatus = "active"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusCancelled CycleStatus = "cancelled"
)

var validCycleStatuses = []CycleStatus{
	CycleStatusPending,
	CycleStatusActive,
	CycleStatusCompleted,
	CycleStatusCancelled,
}

// String implements fmt.Stringer.
func (c CycleStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CycleStatus.
func (c CycleStatus) IsValid() bool {
	for _, candidate := range validCycleStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cycle can no longer transition.
func (c CycleStatus) IsTerminal() bool {
	return c == CycleStatusCompleted || c == CycleStatusCancelled
}

// ParseCycleStatus converts raw input into a CycleStatus.
func ParseCycleStatus(value string) (CycleStatus, error) {
	for _, candidate := range validCycleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cycle status %q", value)
}
