package money

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{name: "plain integer", raw: "5000", want: 5000},
		{name: "currency symbol and separators", raw: "₹5,000", want: 5000},
		{name: "fractional part is digit-stripped", raw: "5000.75", want: 500075},
		{name: "whitespace", raw: " 1 200 ", want: 1200},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.raw)
			if err != nil {
				t.Fatalf("Sanitize(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("Sanitize(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSanitizeRejectsNonNumeric(t *testing.T) {
	_, err := Sanitize("free")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSumRoundsThroughDecimal(t *testing.T) {
	if got := Sum(100, 200, 300); got != 600 {
		t.Fatalf("Sum = %d, want 600", got)
	}
	if got := Sum(); got != 0 {
		t.Fatalf("empty Sum = %d, want 0", got)
	}
}

func TestRoundUnits(t *testing.T) {
	if got := RoundUnits(decimal.NewFromFloat(499.5)); got != 500 {
		t.Fatalf("RoundUnits(499.5) = %d", got)
	}
	if got := RoundUnits(decimal.NewFromFloat(499.4)); got != 499 {
		t.Fatalf("RoundUnits(499.4) = %d", got)
	}
}
