package runtime

import "time"

// Metrics receives thread lifecycle measurements.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ThreadSpawned is called once a thread has been pinned and launched.
	ThreadSpawned()

	// ThreadFinished is called when a script function returns, failed or not.
	ThreadFinished(elapsed time.Duration, failed bool)

	// ThreadJoined is called after a join returns; wait is the time spent blocked.
	ThreadJoined(wait time.Duration)

	// ThreadDetached is called when a running handle is collected.
	ThreadDetached()
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ThreadSpawned()                     {}
func (NopMetrics) ThreadFinished(time.Duration, bool) {}
func (NopMetrics) ThreadJoined(time.Duration)         {}
func (NopMetrics) ThreadDetached()                    {}

// Stats is a point-in-time view of a runtime's threads.
type Stats struct {
	Spawned  uint64
	Finished uint64
	Joined   uint64
	Detached uint64
	Failed   uint64
	Pinned   int
}

// Running returns the number of threads whose script function has not returned yet.
func (s Stats) Running() uint64 {
	return s.Spawned - s.Finished
}
