package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbusdb/raftdispatch/raft"
)

// errUnknownFollower is returned when a node ID does not correspond to any
// follower this member knows about, distinct from raft.ErrNoAsyncClient
// which specifically means the async transport is unavailable for a known
// follower.
var errUnknownFollower = errors.New("dispatchd: unknown follower")

// followerState is an in-memory stand-in for a follower's log: it tracks the
// highest index the follower has durably applied, which is all WaitForPrevLog
// and the simulated transport need to know.
type followerState struct {
	mu      sync.Mutex
	applied uint64
	latency time.Duration
}

func (f *followerState) appliedIndex() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

// apply simulates the follower appending entries starting at prevLogIndex+1
// and returns once they are durable.
func (f *followerState) apply(ctx context.Context, prevLogIndex uint64, n int) error {
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if next := prevLogIndex + uint64(n); next > f.applied {
		f.applied = next
	}
	return nil
}

// inMemoryMember is a demonstration raft.Member: a single leader's view of a
// simulated cluster, entirely in-process. It exists to give dispatchd
// something concrete to drive raft.LogDispatcher against; it does not
// implement election, persistence, or any actual network transport.
type inMemoryMember struct {
	name         string
	self         raft.Node
	nodes        []raft.Node
	header       raft.Header
	term         uint64 // atomic
	commitIndex  uint64 // atomic
	lastLogIndex uint64 // atomic
	peers        *raft.PeerMap

	logger *zap.Logger
	cfg    Config

	followers map[uint64]*followerState
}

func newInMemoryMember(cfg Config, logger *zap.Logger) *inMemoryMember {
	m := &inMemoryMember{
		name:      cfg.GroupID,
		header:    raft.Header{GroupID: cfg.GroupID},
		term:      1,
		peers:     raft.NewPeerMap(),
		logger:    logger,
		cfg:       cfg,
		followers: make(map[uint64]*followerState),
	}
	for _, n := range cfg.Nodes {
		node := raft.Node{ID: n.ID, Host: n.Host}
		m.nodes = append(m.nodes, node)
		if n.ID == cfg.ThisNodeID {
			m.self = node
			continue
		}
		m.followers[n.ID] = &followerState{latency: time.Duration(cfg.FollowerLatency)}
	}
	return m
}

func (m *inMemoryMember) Name() string                { return m.name }
func (m *inMemoryMember) AllNodes() []raft.Node       { return m.nodes }
func (m *inMemoryMember) ThisNode() raft.Node         { return m.self }
func (m *inMemoryMember) Header() (raft.Header, bool) { return m.header, m.header.GroupID != "" }
func (m *inMemoryMember) TermSnapshot() uint64        { return atomic.LoadUint64(&m.term) }
func (m *inMemoryMember) CommitIndex() uint64         { return atomic.LoadUint64(&m.commitIndex) }
func (m *inMemoryMember) LastLogIndex() uint64        { return atomic.LoadUint64(&m.lastLogIndex) }
func (m *inMemoryMember) Peers() *raft.PeerMap        { return m.peers }

// recordAppended advances the leader's own bookkeeping as entries are
// appended to its log, called by the synthetic log producer.
func (m *inMemoryMember) recordAppended(index uint64) {
	atomic.StoreUint64(&m.lastLogIndex, index)
	atomic.StoreUint64(&m.commitIndex, index)
}

func (m *inMemoryMember) SendLogAsyncClient(node raft.Node) (raft.AsyncClient, error) {
	follower, ok := m.followers[node.ID]
	if !ok {
		return nil, raft.ErrNoAsyncClient
	}
	return &inMemoryAsyncClient{follower: follower, logger: m.logger.With(zap.String("follower", node.String()))}, nil
}

func (m *inMemoryMember) SyncClient(node raft.Node) (raft.SyncClient, func(), error) {
	follower, ok := m.followers[node.ID]
	if !ok {
		return nil, nil, errUnknownFollower
	}
	client := &inMemorySyncClient{follower: follower, logger: m.logger.With(zap.String("follower", node.String()))}
	return client, func() {}, nil
}

// WaitForPrevLog polls the follower's applied index with an exponential
// backoff bounded by cfg.WaitForPrevLogTimeout, mirroring how a real Member
// would wait on a heartbeat/ack channel before risking an out-of-order
// AppendEntries.
func (m *inMemoryMember) WaitForPrevLog(ctx context.Context, peer *raft.Peer, log raft.Log) bool {
	prevIndex := log.CurrentIndex() - 1
	if prevIndex == 0 {
		return true
	}

	follower := m.followerByPeer(peer)
	if follower == nil {
		return true
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(m.cfg.WaitForPrevLogInitialInterval)
	b.MaxElapsedTime = time.Duration(m.cfg.WaitForPrevLogTimeout)
	bctx := backoff.WithContext(b, ctx)

	err := backoff.Retry(func() error {
		if follower.appliedIndex() >= prevIndex {
			return nil
		}
		return raft.ErrWaitForPrevLogTimeout
	}, bctx)
	if err != nil {
		m.logger.Warn("giving up waiting for previous log entry",
			zap.Uint64("prev_log_index", prevIndex), zap.Error(err))
		return false
	}
	return true
}

func (m *inMemoryMember) followerByPeer(target *raft.Peer) *followerState {
	for id, node := range m.followersByID() {
		if m.peers.GetOrInsert(node, 0) == target {
			return m.followers[id]
		}
	}
	return nil
}

func (m *inMemoryMember) followersByID() map[uint64]raft.Node {
	out := make(map[uint64]raft.Node, len(m.nodes))
	for _, n := range m.nodes {
		if n.ID != m.self.ID {
			out[n.ID] = n
		}
	}
	return out
}

// SendLogToFollower is the single-entry fast path: it applies the entry to
// the simulated follower synchronously and reports the outcome through the
// same per-entry handler the batch path uses.
func (m *inMemoryMember) SendLogToFollower(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, req *raft.AppendEntryRequest) error {
	follower, ok := m.followers[receiver.ID]
	if !ok {
		return errUnknownFollower
	}
	peer := m.peers.GetOrInsert(receiver, log.CurrentIndex()-1)
	handler := m.NewAppendEntryHandler(log, voteCounter, receiver, stale, newTerm, peer)

	requestID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(m.cfg.WaitForPrevLogTimeout))
	defer cancel()

	if err := follower.apply(ctx, log.CurrentIndex()-1, 1); err != nil {
		handler.OnError(err)
		return err
	}
	m.logger.Debug("delivered single entry", zap.String("request_id", requestID), zap.Uint64("index", log.CurrentIndex()))
	handler.OnComplete(int64(m.TermSnapshot()))
	return nil
}

// NewAppendEntryHandler synthesizes the completion callback that advances
// quorum vote-counting: a result at or below the current term counts as a
// vote and advances the peer's match index; a result above it flags the
// leadership as stale, mirroring the step-down signal in a real Raft member.
func (m *inMemoryMember) NewAppendEntryHandler(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, peer *raft.Peer) raft.EntryCompletionHandler {
	return &appendEntryHandler{
		member:      m,
		log:         log,
		voteCounter: voteCounter,
		receiver:    receiver,
		stale:       stale,
		newTerm:     newTerm,
		peer:        peer,
		logger:      m.logger,
	}
}

type appendEntryHandler struct {
	member      *inMemoryMember
	log         raft.Log
	voteCounter *int32
	receiver    raft.Node
	stale       *int32
	newTerm     *int64
	peer        *raft.Peer
	logger      *zap.Logger
}

func (h *appendEntryHandler) OnComplete(result int64) {
	if result > int64(h.member.TermSnapshot()) {
		atomic.StoreInt32(h.stale, 1)
		atomic.StoreInt64(h.newTerm, result)
		return
	}
	h.peer.SetMatchIndex(h.log.CurrentIndex())
	atomic.AddInt32(h.voteCounter, 1)
}

func (h *appendEntryHandler) OnError(err error) {
	h.logger.Warn("append entry failed",
		zap.String("follower", h.receiver.String()),
		zap.Uint64("index", h.log.CurrentIndex()),
		zap.Error(err))
}

// inMemoryAsyncClient and inMemorySyncClient adapt followerState to the
// raft.AsyncClient/raft.SyncClient contracts, simulating network latency
// with a timer instead of an actual socket.

type inMemoryAsyncClient struct {
	follower *followerState
	logger   *zap.Logger
}

func (c *inMemoryAsyncClient) AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest, cb raft.AppendEntriesCallback) error {
	requestID := uuid.NewString()
	go func() {
		if err := c.follower.apply(ctx, req.PrevLogIndex, len(req.Entries)); err != nil {
			cb.OnError(err)
			return
		}
		c.logger.Debug("delivered batch", zap.String("request_id", requestID), zap.Int("entries", len(req.Entries)))
		cb.OnComplete(int64(req.Term))
	}()
	return nil
}

type inMemorySyncClient struct {
	follower *followerState
	logger   *zap.Logger
}

func (c *inMemorySyncClient) AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (int64, error) {
	requestID := uuid.NewString()
	if err := c.follower.apply(ctx, req.PrevLogIndex, len(req.Entries)); err != nil {
		return 0, err
	}
	c.logger.Debug("delivered batch", zap.String("request_id", requestID), zap.Int("entries", len(req.Entries)))
	return int64(req.Term), nil
}
