package scheduler

import "time"

// Clock abstracts wall-clock access for the periodic loops.
type Clock interface {
	Now() time.Time
}

// realClock reads the system clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewClock returns the system clock.
func NewClock() Clock { return realClock{} }
