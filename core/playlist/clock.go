package playlist

import "time"

// Clock supplies monotonic time to the engine.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock. time.Now carries a monotonic reading, so
// deltas survive wall-clock jumps.
var SystemClock Clock = systemClock{}
