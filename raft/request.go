package raft

import "sync/atomic"

// SendRequest bundles a single log entry with everything a DispatcherWorker
// needs to send it to one follower and fan its acknowledgement back into
// quorum bookkeeping. A single SendRequest instance is shared, unmodified
// except for AppendEntryRequest.Entry and EnqueueTime, across every
// follower queue it is enqueued into.
type SendRequest struct {
	// Log is the entry being replicated.
	Log Log

	// VoteCounter accumulates YES votes toward this entry's quorum. It is
	// shared across every follower's completion handler for this entry and
	// must only be touched via sync/atomic.
	VoteCounter *int32

	// LeadershipStale is set to 1 if any follower reports a higher term.
	LeadershipStale *int32

	// NewLeaderTerm receives the highest observed peer term once
	// LeadershipStale is set.
	NewLeaderTerm *int64

	// AppendEntryRequest is the pre-filled single-entry payload; its Entry
	// field is populated by a DispatcherWorker just before send.
	AppendEntryRequest *AppendEntryRequest

	enqueueTime int64 // nanoseconds, written via atomic.StoreInt64
}

// NewSendRequest constructs a SendRequest for fan-out to every follower
// queue. The caller retains ownership of voteCounter, leadershipStale and
// newLeaderTerm, which are expected to be shared across all followers this
// entry is sent to.
func NewSendRequest(log Log, voteCounter *int32, leadershipStale *int32, newLeaderTerm *int64, req *AppendEntryRequest) *SendRequest {
	return &SendRequest{
		Log:                log,
		VoteCounter:        voteCounter,
		LeadershipStale:    leadershipStale,
		NewLeaderTerm:      newLeaderTerm,
		AppendEntryRequest: req,
	}
}

// EnqueueTime returns the nanosecond timestamp stamped by Offer on the
// request's first successful enqueue, or 0 if no queue accepted it. A single
// request may be enqueued to several followers but carries only this one
// value, so it is coarse aggregate telemetry, not a per-follower time.
func (r *SendRequest) EnqueueTime() int64 {
	return atomic.LoadInt64(&r.enqueueTime)
}

// setEnqueueTime stamps the enqueue timestamp; called by LogDispatcher.Offer
// on the first successful enqueue in a given fan-out round.
func (r *SendRequest) setEnqueueTime(nanos int64) {
	atomic.StoreInt64(&r.enqueueTime, nanos)
}
