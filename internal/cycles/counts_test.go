package cycles

import (
	"testing"

	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

func TestComputeCountsBucketsByStatus(t *testing.T) {
	tallies := []StatusTally{
		{Status: enums.PaymentStatusSettled, Count: 2, Amount: 10000},
		{Status: enums.PaymentStatusLate, Count: 1, Amount: 5000},
		{Status: enums.PaymentStatusPending, Count: 1, Amount: 0},
		{Status: enums.PaymentStatusUnderReview, Count: 1, Amount: 5000},
		{Status: enums.PaymentStatusRejected, Count: 1, Amount: 5000},
		{Status: enums.PaymentStatusDefaulted, Count: 1, Amount: 0},
	}

	counts := ComputeCounts(tallies)
	if counts.Total != 7 {
		t.Fatalf("expected total 7, got %d", counts.Total)
	}
	if counts.Paid != 2 || counts.Late != 1 || counts.Defaulted != 1 {
		t.Fatalf("unexpected buckets: %+v", counts)
	}
	if counts.Pending != 3 {
		t.Fatalf("pending should absorb pending/under_review/rejected, got %d", counts.Pending)
	}
	if counts.Paid+counts.Pending+counts.Late+counts.Defaulted != counts.Total {
		t.Fatalf("buckets do not sum to total: %+v", counts)
	}
	if counts.Collected != 15000 {
		t.Fatalf("collected should sum settled+late amounts, got %d", counts.Collected)
	}
}

func TestComputeCountsEmpty(t *testing.T) {
	counts := ComputeCounts(nil)
	if counts.Total != 0 || counts.Collected != 0 {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
}

func TestReadyForPayoutQuorum(t *testing.T) {
	cases := []struct {
		name   string
		paid   int
		total  int
		quorum int
		want   bool
	}{
		{"full quorum met", 3, 3, 100, true},
		{"full quorum short", 2, 3, 100, false},
		{"partial quorum ceiling", 2, 3, 50, true},
		{"partial quorum short of ceiling", 1, 3, 50, false},
		{"zero quorum defaults to full", 2, 3, 0, false},
		{"empty cycle never ready", 0, 0, 100, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReadyForPayout(tc.paid, tc.total, tc.quorum); got != tc.want {
				t.Fatalf("ReadyForPayout(%d, %d, %d) = %v, want %v", tc.paid, tc.total, tc.quorum, got, tc.want)
			}
		})
	}
}
