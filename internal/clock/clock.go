package clock

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock reports wall-clock time in UTC so month boundaries do not depend on the host zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}
