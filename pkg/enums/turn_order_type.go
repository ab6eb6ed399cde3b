package enums

import "fmt"

// TurnOrderType selects how beneficiary turns are assigned at activation.
type TurnOrderType string

const (
	TurnOrderTypeFixed     TurnOrderType = "fixed"
	TurnOrderTypeRandom    TurnOrderType = "random"
	TurnOrderTypeLottery   TurnOrderType = "lottery"
	TurnOrderTypeNeedBased TurnOrderType = "need_based"
)

var validTurnOrderTypes = []TurnOrderType{
	TurnOrderTypeFixed,
	TurnOrderTypeRandom,
	TurnOrderTypeLottery,
	TurnOrderTypeNeedBased,
}

// String implements fmt.Stringer.
func (t TurnOrderType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TurnOrderType.
func (t TurnOrderType) IsValid() bool {
	for _, candidate := range validTurnOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Shuffles reports whether the order is drawn at activation rather than
// taken from pre-assigned turn numbers.
func (t TurnOrderType) Shuffles() bool {
	return t == TurnOrderTypeRandom || t == TurnOrderTypeLottery
}

// ParseTurnOrderType converts raw input into a TurnOrderType.
func ParseTurnOrderType(value string) (TurnOrderType, error) {
	for _, candidate := range validTurnOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid turn order type %q", value)
}
