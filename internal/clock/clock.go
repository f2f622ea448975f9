package clock

import "time"

// Clock supplies the current instant. Domain code never reads
// time.Now directly so status resolution stays deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
