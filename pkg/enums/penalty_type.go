package enums

import "fmt"

// PenaltyType classifies why a penalty was charged.
type PenaltyType string

const (
	PenaltyTypeLateFee        PenaltyType = "late_fee"
	PenaltyTypeDefaultPenalty PenaltyType = "default_penalty"
	PenaltyTypeCustom         PenaltyType = "custom"
)

var validPenaltyTypes = []PenaltyType{
	PenaltyTypeLateFee,
	PenaltyTypeDefaultPenalty,
	PenaltyTypeCustom,
}

// String implements fmt.Stringer.
func (p PenaltyType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PenaltyType.
func (p PenaltyType) IsValid() bool {
	for _, candidate := range validPenaltyTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePenaltyType converts raw input into a PenaltyType.
func ParsePenaltyType(value string) (PenaltyType, error) {
	for _, candidate := range validPenaltyTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid penalty type %q", value)
}
