package raft

import "errors"

var (
	// ErrQueueFull marks a dropped enqueue: a follower's queue had no room
	// for another request. Offer never returns it directly; it is attached
	// to the debug-level log line so callers grepping logs can match on it.
	ErrQueueFull = errors.New("raft: follower queue is full")

	// ErrWaitForPrevLogTimeout is returned by a Member.WaitForPrevLog
	// implementation's internal backoff (see cmd/dispatchd) once its retry
	// budget is exhausted without the predecessor entry being acknowledged.
	ErrWaitForPrevLogTimeout = errors.New("raft: timed out waiting for previous log entry to be acknowledged")

	// ErrWorkerStopped marks a DispatcherWorker's clean exit on context
	// cancellation. Run does not return it (cancellation is not a failure),
	// but attaches it to the exit log line for tests and log-based alerting
	// to match on.
	ErrWorkerStopped = errors.New("raft: dispatcher worker stopped")

	// ErrNoAsyncClient is returned when the member could not produce an
	// async client for a follower.
	ErrNoAsyncClient = errors.New("raft: no async client available for follower")
)
