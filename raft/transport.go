package raft

import "context"

// AppendEntryRequest is the single-entry payload Raft pre-builds for the
// fast path. Its Entry field starts empty and is filled in by a
// DispatcherWorker immediately before the request is sent, off the Raft log
// manager's critical section.
type AppendEntryRequest struct {
	PrevLogTerm  uint64
	PrevLogIndex uint64
	Entry        []byte
}

// AppendEntriesRequest is the batched multi-entry AppendEntries RPC built
// by the multi-entry path.
type AppendEntriesRequest struct {
	Header       *Header
	Leader       Node
	Term         uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      [][]byte
	LeaderCommit uint64
}

// AppendEntriesCallback receives the outcome of a batched AppendEntries RPC.
// The follower's AppendEntries contract is that Result is either -1 (a
// generic failure indicator) or the follower's reported term; callers
// decide independently what that means for quorum/term bookkeeping.
type AppendEntriesCallback interface {
	OnComplete(result int64)
	OnError(err error)
}

// AsyncClient sends a batch and returns immediately; completion arrives
// later via the supplied callback, potentially from a different goroutine.
type AsyncClient interface {
	AppendEntries(ctx context.Context, req *AppendEntriesRequest, cb AppendEntriesCallback) error
}

// SyncClient sends a batch and blocks until the follower has responded.
type SyncClient interface {
	AppendEntries(ctx context.Context, req *AppendEntriesRequest) (result int64, err error)
}

// EntryCompletionHandler is the per-entry completion callback synthesized
// by Member.NewAppendEntryHandler. Exactly one is invoked per (entry,
// follower) regardless of batch size.
type EntryCompletionHandler interface {
	OnComplete(result int64)
	OnError(err error)
}
