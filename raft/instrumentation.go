package raft

import (
	"time"

	"github.com/benbjohnson/clock"
)

// instrumentation emits the log-in-queue and end-to-end timing samples for a
// follower's dispatch worker. It is a thin wrapper around an injectable
// clock.Clock so tests can assert on exact durations instead of depending
// on wall-clock time.
type instrumentation struct {
	enabled bool
	clock   clock.Clock
	metrics *followerMetrics
}

func newInstrumentation(enabled bool, c clock.Clock, m *followerMetrics) *instrumentation {
	return &instrumentation{enabled: enabled, clock: c, metrics: m}
}

// nowNanos returns the current time as Unix nanoseconds read from the
// injected clock. This is wall-clock time, not a monotonic reading.
func (i *instrumentation) nowNanos() int64 {
	return i.clock.Now().UnixNano()
}

// observeLogInQueue records the time an entry spent queued before being
// handed to a transport.
func (i *instrumentation) observeLogInQueue(createTime int64) {
	if !i.enabled {
		return
	}
	elapsed := time.Duration(i.nowNanos() - createTime)
	i.metrics.logInQueue.Observe(elapsed.Seconds())
}

// observeFromCreateToEnd records the time from entry creation to the end of
// its send attempt.
func (i *instrumentation) observeFromCreateToEnd(createTime int64) {
	if !i.enabled {
		return
	}
	elapsed := time.Duration(i.nowNanos() - createTime)
	i.metrics.fromCreate.Observe(elapsed.Seconds())
}
