package controller

import "time"

// Clock abstracts the wall clock and the pacing sleeps so tests and the
// simulator can run on virtual time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }
