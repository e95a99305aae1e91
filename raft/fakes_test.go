package raft_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nimbusdb/raftdispatch/raft"
)

// fakeLog is a minimal raft.Log used by tests.
type fakeLog struct {
	index        uint64
	term         uint64
	createTime   int64
	data         []byte
	serializeErr error

	mu            sync.Mutex
	serializeCalls int
}

func newFakeLog(index uint64, data string) *fakeLog {
	return &fakeLog{index: index, term: 1, data: []byte(data)}
}

func (l *fakeLog) CurrentIndex() uint64 { return l.index }
func (l *fakeLog) Term() uint64         { return l.term }
func (l *fakeLog) CreateTime() int64    { return l.createTime }

func (l *fakeLog) Serialize() ([]byte, error) {
	l.mu.Lock()
	l.serializeCalls++
	l.mu.Unlock()
	if l.serializeErr != nil {
		return nil, l.serializeErr
	}
	return l.data, nil
}

func (l *fakeLog) SerializeCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.serializeCalls
}

// fakeEntryHandler is a raft.EntryCompletionHandler recording every call it
// receives, for asserting exactly-once fan-out.
type fakeEntryHandler struct {
	mu        sync.Mutex
	completes []int64
	errs      []error
}

func (h *fakeEntryHandler) OnComplete(result int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completes = append(h.completes, result)
}

func (h *fakeEntryHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *fakeEntryHandler) snapshot() (completes []int64, errs []error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.completes...), append([]error(nil), h.errs...)
}

// fakeMember is a hand-rolled raft.Member test double. Its
// NewAppendEntryHandler factory hands out one fakeEntryHandler per call and
// records them so tests can assert exactly-once delivery.
type fakeMember struct {
	name         string
	self         raft.Node
	nodes        []raft.Node
	header       raft.Header
	hasHeader    bool
	term         uint64
	commitIndex  uint64
	lastLogIndex uint64
	peers        *raft.PeerMap

	mu                sync.Mutex
	handlersByNode    map[uint64][]*fakeEntryHandler
	sendLogCalls      []*fakeLog
	asyncClients      map[uint64]raft.AsyncClient
	syncClients       map[uint64]raft.SyncClient
	syncClientReturns int32
	waitForPrevLogFn  func(ctx context.Context, peer *raft.Peer, log raft.Log) bool
	sendLogToFollower func(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, req *raft.AppendEntryRequest) error
}

func newFakeMember(name string, self raft.Node, nodes []raft.Node) *fakeMember {
	return &fakeMember{
		name:           name,
		self:           self,
		nodes:          nodes,
		term:           1,
		peers:          raft.NewPeerMap(),
		handlersByNode: make(map[uint64][]*fakeEntryHandler),
		asyncClients:   make(map[uint64]raft.AsyncClient),
		syncClients:    make(map[uint64]raft.SyncClient),
	}
}

func (m *fakeMember) Name() string          { return m.name }
func (m *fakeMember) AllNodes() []raft.Node { return m.nodes }
func (m *fakeMember) ThisNode() raft.Node   { return m.self }

func (m *fakeMember) Header() (raft.Header, bool) { return m.header, m.hasHeader }
func (m *fakeMember) TermSnapshot() uint64        { return m.term }
func (m *fakeMember) CommitIndex() uint64         { return m.commitIndex }
func (m *fakeMember) LastLogIndex() uint64        { return m.lastLogIndex }
func (m *fakeMember) Peers() *raft.PeerMap        { return m.peers }

func (m *fakeMember) SendLogAsyncClient(node raft.Node) (raft.AsyncClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.asyncClients[node.ID]
	if !ok {
		return nil, errors.New("no async client registered")
	}
	return c, nil
}

func (m *fakeMember) SyncClient(node raft.Node) (raft.SyncClient, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.syncClients[node.ID]
	if !ok {
		return nil, nil, errors.New("no sync client registered")
	}
	return c, func() { atomic.AddInt32(&m.syncClientReturns, 1) }, nil
}

func (m *fakeMember) SyncClientReturns() int32 {
	return atomic.LoadInt32(&m.syncClientReturns)
}

func (m *fakeMember) WaitForPrevLog(ctx context.Context, peer *raft.Peer, log raft.Log) bool {
	if m.waitForPrevLogFn != nil {
		return m.waitForPrevLogFn(ctx, peer, log)
	}
	return true
}

func (m *fakeMember) SendLogToFollower(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, req *raft.AppendEntryRequest) error {
	m.mu.Lock()
	m.sendLogCalls = append(m.sendLogCalls, log.(*fakeLog))
	m.mu.Unlock()
	if m.sendLogToFollower != nil {
		return m.sendLogToFollower(log, voteCounter, receiver, stale, newTerm, req)
	}
	handler := m.NewAppendEntryHandler(log, voteCounter, receiver, stale, newTerm, m.peers.GetOrInsert(receiver, m.lastLogIndex))
	handler.OnComplete(0)
	return nil
}

func (m *fakeMember) NewAppendEntryHandler(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, peer *raft.Peer) raft.EntryCompletionHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &fakeEntryHandler{}
	m.handlersByNode[receiver.ID] = append(m.handlersByNode[receiver.ID], h)
	return h
}

func (m *fakeMember) handlersFor(node raft.Node) []*fakeEntryHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeEntryHandler(nil), m.handlersByNode[node.ID]...)
}

// fakeAsyncClient records every AppendEntries call and immediately invokes
// the supplied callback with a configured result/error, simulating a
// same-goroutine "async" transport for deterministic tests.
type fakeAsyncClient struct {
	mu       sync.Mutex
	requests []*raft.AppendEntriesRequest

	result int64
	err    error

	onSend func(cb raft.AppendEntriesCallback)
}

func (c *fakeAsyncClient) AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest, cb raft.AppendEntriesCallback) error {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.onSend != nil {
		c.onSend(cb)
		return nil
	}
	if c.err != nil {
		cb.OnError(c.err)
		return nil
	}
	cb.OnComplete(c.result)
	return nil
}

func (c *fakeAsyncClient) sentRequests() []*raft.AppendEntriesRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*raft.AppendEntriesRequest(nil), c.requests...)
}

// fakeSyncClient records every call and returns a configured result/error.
type fakeSyncClient struct {
	mu       sync.Mutex
	requests []*raft.AppendEntriesRequest

	result int64
	err    error
}

func (c *fakeSyncClient) AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (int64, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.result, c.err
}

func (c *fakeSyncClient) sentRequests() []*raft.AppendEntriesRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*raft.AppendEntriesRequest(nil), c.requests...)
}

func newSendRequest(log *fakeLog) *raft.SendRequest {
	var votes int32
	var stale int32
	var newTerm int64
	return raft.NewSendRequest(log, &votes, &stale, &newTerm, &raft.AppendEntryRequest{PrevLogTerm: log.term})
}
