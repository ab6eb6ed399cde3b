package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a member contribution. The set is
// canonical: older records and upstream clients use several overlapping words
// for a settled contribution ("paid", "confirmed", "verified"), which the
// parser folds into PaymentStatusSettled.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusUnderReview PaymentStatus = "under_review"
	PaymentStatusSettled     PaymentStatus = "settled"
	PaymentStatusLate        PaymentStatus = "late"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusDefaulted   PaymentStatus = "defaulted"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusUnderReview,
	PaymentStatusSettled,
	PaymentStatusLate,
	PaymentStatusRejected,
	PaymentStatusDefaulted,
}

// legacyPaymentStatusAliases maps display vocabulary from older clients onto
// the canonical set.
var legacyPaymentStatusAliases = map[string]PaymentStatus{
	"paid":      PaymentStatusSettled,
	"confirmed": PaymentStatusSettled,
	"verified":  PaymentStatusSettled,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CountsAsCollected reports whether the contribution amount is included in a
// cycle's collected total.
func (p PaymentStatus) CountsAsCollected() bool {
	return p == PaymentStatusSettled || p == PaymentStatusLate
}

// ParsePaymentStatus converts raw input, including legacy display values,
// into a canonical PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	if alias, ok := legacyPaymentStatusAliases[value]; ok {
		return alias, nil
	}
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
