package ports

import "time"

// Clock abstracts time for expiry and countdown logic.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
