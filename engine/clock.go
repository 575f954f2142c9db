package engine

import "time"

// Clock abstracts the inter-iteration delay so tests can run the loop
// without real sleeps.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) Now() time.Time                         { return time.Now() }
