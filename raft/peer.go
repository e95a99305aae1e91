package raft

import "sync"

// Peer holds the leader's replication bookkeeping for a single follower:
// the highest index known to be replicated (match index) and the next
// index the leader intends to send. It is owned by the surrounding Member
// and only read by this package (WaitForPrevLog consults it).
type Peer struct {
	mu         sync.RWMutex
	matchIndex uint64
	nextIndex  uint64
}

// NewPeer returns a Peer initialized at the leader's current last-log-index.
func NewPeer(lastLogIndex uint64) *Peer {
	return &Peer{matchIndex: 0, nextIndex: lastLogIndex + 1}
}

// MatchIndex returns the highest index this peer is known to have replicated.
func (p *Peer) MatchIndex() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.matchIndex
}

// SetMatchIndex records a new known-replicated index for this peer.
func (p *Peer) SetMatchIndex(index uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index > p.matchIndex {
		p.matchIndex = index
	}
}

// NextIndex returns the next index the leader intends to send this peer.
func (p *Peer) NextIndex() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nextIndex
}

// SetNextIndex updates the next index to send this peer.
func (p *Peer) SetNextIndex(index uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextIndex = index
}

// PeerMap lazily creates and caches a Peer per Node, keyed by node identity.
type PeerMap struct {
	mu    sync.Mutex
	peers map[uint64]*Peer
}

// NewPeerMap returns an empty PeerMap.
func NewPeerMap() *PeerMap {
	return &PeerMap{peers: make(map[uint64]*Peer)}
}

// GetOrInsert returns the Peer for node, creating one initialized at
// initLastLogIndex if this is the first lookup for that node.
func (m *PeerMap) GetOrInsert(node Node, initLastLogIndex uint64) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[node.ID]; ok {
		return p
	}
	p := NewPeer(initLastLogIndex)
	m.peers[node.ID] = p
	return p
}
