package types

import "time"

// Clock supplies the current time, injectable for tests
type Clock func() time.Time

// SystemClock returns the current UTC time
func SystemClock() time.Time {
	return time.Now().UTC()
}
