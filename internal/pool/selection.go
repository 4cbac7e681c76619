package pool

import "time"

// Selection tags are five-digit numbers.
const (
	MinSelectionTag = 10000
	MaxSelectionTag = 99999
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SelectionSource hands out selection tags for new entries.
type SelectionSource interface {
	Next() uint32
}

// TimeSelection derives tags from the clock. It is reproducible given the
// clock, not fair; the drawing itself happens elsewhere.
type TimeSelection struct {
	Clock Clock
}

func (s TimeSelection) Next() uint32 {
	n := s.Clock.Now().UnixNano()
	if n < 0 {
		n = -n
	}
	return ClampTag(uint64(n))
}

// ClampTag maps any value onto the selection tag range.
func ClampTag(v uint64) uint32 {
	span := uint64(MaxSelectionTag - MinSelectionTag + 1)
	return uint32(v%span) + MinSelectionTag
}
