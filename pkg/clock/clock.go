package clock

import "time"

// Clock supplies the current time. Due-date, grace-period and staleness
// comparisons all go through a Clock so temporal behavior is deterministic
// under test.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant }

// At returns a Fixed clock pinned to t.
func At(t time.Time) Fixed { return Fixed{Instant: t} }
