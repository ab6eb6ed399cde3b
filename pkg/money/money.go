package money

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

// Amounts are whole currency units stored as int64. Incoming amounts are
// sanitized by stripping every non-digit character and parsing the remainder
// as an integer, so "5,000.75" becomes 500075 in the original system and the
// fractional part is discarded before it ever reaches storage. The behavior
// is preserved for compatibility with records produced by older clients;
// arithmetic on aggregates goes through decimal to keep rounding in one place.

// Sanitize strips non-digit characters from raw and parses the remaining
// digits as a whole-unit amount.
func Sanitize(raw string) (int64, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount contains no digits")
	}
	value, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount out of range")
	}
	return value, nil
}

// Units converts a stored amount into a decimal for aggregate arithmetic.
func Units(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// RoundUnits rounds a decimal aggregate to whole currency units for storage.
func RoundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Sum adds stored amounts through decimal and rounds the result to whole
// units, so reconciliation totals cannot drift from incremental updates.
func Sum(amounts ...int64) int64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromInt(a))
	}
	return RoundUnits(total)
}
