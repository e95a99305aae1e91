package raft

import "context"

// Member is the surrounding Raft leader's state and single-entry sender, as
// consumed by this package. Election, term management, commit-index
// advancement and log persistence live here but are out of scope for the
// dispatch core; we only read from and delegate to it.
type Member interface {
	// Name identifies this member for logging (e.g. the group/cluster name).
	Name() string

	// AllNodes returns every node in the cluster, including this one.
	AllNodes() []Node

	// ThisNode returns the identity of the local (leader) node.
	ThisNode() Node

	// Header returns the cluster/group header to stamp on outgoing
	// requests, if this member has one.
	Header() (Header, bool)

	// TermSnapshot returns the current term, read under the member's
	// internal term lock so that concurrent term updates cannot produce a
	// torn read.
	TermSnapshot() uint64

	// CommitIndex returns the log manager's current commit index.
	CommitIndex() uint64

	// LastLogIndex returns the highest index written to the leader's log,
	// used to initialize a newly discovered peer.
	LastLogIndex() uint64

	// Peers returns the member's lazily-populated peer map.
	Peers() *PeerMap

	// SendLogAsyncClient returns an async client for node. It never
	// returns a nil client on a nil error.
	SendLogAsyncClient(node Node) (AsyncClient, error)

	// SyncClient returns a pooled sync client for node along with a
	// closure that must be called exactly once to return it to the pool.
	SyncClient(node Node) (client SyncClient, done func(), err error)

	// WaitForPrevLog blocks (bounded by ctx) until the entry preceding log
	// is known to have been acknowledged by peer, or ctx is done. It
	// returns false on timeout.
	WaitForPrevLog(ctx context.Context, peer *Peer, log Log) bool

	// SendLogToFollower is the single-entry fast path: it prepares and
	// sends its own request internally.
	SendLogToFollower(log Log, voteCounter *int32, receiver Node, leadershipStale *int32, newLeaderTerm *int64, req *AppendEntryRequest) error

	// NewAppendEntryHandler synthesizes the per-entry completion callback
	// bound to a single (log, follower) pair.
	NewAppendEntryHandler(log Log, voteCounter *int32, receiver Node, leadershipStale *int32, newLeaderTerm *int64, peer *Peer) EntryCompletionHandler
}
