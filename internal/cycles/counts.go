package cycles

import "github.com/chitcircle/chitcircle-backend/pkg/enums"

// Counts is the per-cycle collection snapshot derived from payment rows.
// Paid+Pending+Late+Defaulted always equals Total.
type Counts struct {
	Total     int
	Paid      int
	Pending   int
	Late      int
	Defaulted int
	Collected int64
}

// ComputeCounts folds the per-status payment aggregate into cycle counters.
// Settled payments count as paid; late payments keep their own bucket but
// still contribute their amount to the collected total. Everything else,
// including rejected records awaiting re-submission, is pending.
func ComputeCounts(tallies []StatusTally) Counts {
	var counts Counts
	for _, tally := range tallies {
		counts.Total += tally.Count
		switch tally.Status {
		case enums.PaymentStatusSettled:
			counts.Paid += tally.Count
		case enums.PaymentStatusLate:
			counts.Late += tally.Count
		case enums.PaymentStatusDefaulted:
			counts.Defaulted += tally.Count
		default:
			counts.Pending += tally.Count
		}
		if tally.Status.CountsAsCollected() {
			counts.Collected += tally.Amount
		}
	}
	return counts
}

// ReadyForPayout reports whether the paid count meets the group's quorum:
// paid >= ceil(total * quorumPercent / 100).
func ReadyForPayout(paid, total, quorumPercent int) bool {
	if total <= 0 {
		return false
	}
	if quorumPercent <= 0 {
		quorumPercent = 100
	}
	required := (total*quorumPercent + 99) / 100
	return paid >= required
}
