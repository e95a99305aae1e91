package raft_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdb/raftdispatch/raft"
)

// TestThreeFollowers_TenEntries_AllReceiveInOrder exercises three
// followers, capacity 100, 10 offered entries: each follower must observe
// all ten in submitted order across no more than ten AppendEntries calls.
func TestThreeFollowers_TenEntries_AllReceiveInOrder(t *testing.T) {
	self := raft.Node{ID: 1}
	followers := []raft.Node{{ID: 2}, {ID: 3}, {ID: 4}}
	member := newFakeMember("g", self, append([]raft.Node{self}, followers...))

	clients := make(map[uint64]*fakeSyncClient, len(followers))
	for _, f := range followers {
		c := &fakeSyncClient{}
		clients[f.ID] = c
		member.syncClients[f.ID] = c
	}

	cfg := testConfig()
	cfg.MinLogsInMemory = 100
	cfg.UseAsyncServer = false
	dispatcher, err := raft.NewLogDispatcher(member, cfg)
	require.NoError(t, err)

	logs := make([]*fakeLog, 10)
	for i := range logs {
		logs[i] = newFakeLog(uint64(i+1), strconv.Itoa(i+1))
	}
	for _, l := range logs {
		dispatcher.Offer(newSendRequest(l))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	for _, f := range followers {
		client := clients[f.ID]
		require.Eventually(t, func() bool {
			total := 0
			for _, r := range client.sentRequests() {
				total += len(r.Entries)
			}
			return total == len(logs)
		}, time.Second, time.Millisecond)

		reqs := client.sentRequests()
		assert.LessOrEqual(t, len(reqs), len(logs), "must not exceed one AppendEntries call per entry")

		seen := 0
		for _, req := range reqs {
			for i, entry := range req.Entries {
				assert.Equal(t, []byte(logs[seen+i].data), entry)
			}
			seen += len(req.Entries)
		}
	}
}

// TestSingleFollower_CapacityFour_DropsOverflow exercises a capacity-4
// queue with the worker paused (never started): a producer offers 6
// requests, r5 and r6 must be dropped, and once the worker runs, r1..r4
// must arrive as a single batch of 4 with PrevLogIndex = r1.Index - 1.
func TestSingleFollower_CapacityFour_DropsOverflow(t *testing.T) {
	self := raft.Node{ID: 1}
	follower := raft.Node{ID: 2}
	member := newFakeMember("g", self, []raft.Node{self, follower})

	client := &fakeSyncClient{}
	member.syncClients[follower.ID] = client

	cfg := testConfig()
	cfg.MinLogsInMemory = 4
	cfg.UseAsyncServer = false
	dispatcher, err := raft.NewLogDispatcher(member, cfg)
	require.NoError(t, err)

	logs := make([]*fakeLog, 6)
	for i := range logs {
		logs[i] = newFakeLog(uint64(i+1), strconv.Itoa(i+1))
	}

	accepted := 0
	for _, l := range logs {
		req := newSendRequest(l)
		dispatcher.Offer(req)
		if req.EnqueueTime() != 0 {
			accepted++
		}
	}
	assert.Equal(t, 4, accepted, "only the first 4 of 6 offers should be accepted into the capacity-4 queue")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	require.Eventually(t, func() bool {
		total := 0
		for _, r := range client.sentRequests() {
			total += len(r.Entries)
		}
		return total == 4
	}, time.Second, time.Millisecond)

	reqs := client.sentRequests()
	require.Len(t, reqs, 1, "r1..r4 must be delivered as a single batch")
	assert.Equal(t, logs[0].index-1, reqs[0].PrevLogIndex)
	for i, entry := range reqs[0].Entries {
		assert.Equal(t, []byte(logs[i].data), entry)
	}
}

// TestFIFO_AcrossMultipleProducerGoroutines verifies the FIFO-per-follower
// property holds even when multiple goroutines call Offer concurrently: a
// follower always observes, for a single producer's submissions, the order
// that producer submitted in.
func TestFIFO_AcrossMultipleProducerGoroutines(t *testing.T) {
	self := raft.Node{ID: 1}
	follower := raft.Node{ID: 2}
	member := newFakeMember("g", self, []raft.Node{self, follower})
	client := &fakeSyncClient{}
	member.syncClients[follower.ID] = client

	cfg := testConfig()
	cfg.MinLogsInMemory = 256
	cfg.UseAsyncServer = false
	dispatcher, err := raft.NewLogDispatcher(member, cfg)
	require.NoError(t, err)

	// A batch of one takes the single-entry fast path; record it on the same
	// client so the follower's observed order covers both paths.
	member.sendLogToFollower = func(log raft.Log, voteCounter *int32, receiver raft.Node, stale *int32, newTerm *int64, req *raft.AppendEntryRequest) error {
		_, err := client.AppendEntries(context.Background(), &raft.AppendEntriesRequest{
			PrevLogIndex: log.CurrentIndex() - 1,
			Entries:      [][]byte{req.Entry},
		})
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	const perProducer = 20
	producers := 4
	done := make(chan struct{}, producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < perProducer; i++ {
				index := uint64(p*perProducer + i + 1)
				l := newFakeLog(index, strconv.FormatUint(index, 10))
				dispatcher.Offer(newSendRequest(l))
			}
		}()
	}
	for i := 0; i < producers; i++ {
		<-done
	}

	require.Eventually(t, func() bool {
		total := 0
		for _, r := range client.sentRequests() {
			total += len(r.Entries)
		}
		return total == perProducer*producers
	}, 2*time.Second, time.Millisecond)

	// Reconstruct the per-producer subsequence observed by the follower and
	// assert it is increasing, i.e. consistent with that producer's
	// submission order (indices were assigned in submission order above).
	seqByProducer := make(map[int][]uint64)
	for _, req := range client.sentRequests() {
		for _, entry := range req.Entries {
			index := decodeIndex(entry)
			producer := int((index - 1) / perProducer)
			seqByProducer[producer] = append(seqByProducer[producer], index)
		}
	}
	for p := 0; p < producers; p++ {
		seq := seqByProducer[p]
		require.Len(t, seq, perProducer)
		for i := 1; i < len(seq); i++ {
			assert.Less(t, seq[i-1], seq[i], "producer %d's entries must arrive in FIFO order", p)
		}
	}
}

func decodeIndex(data []byte) uint64 {
	index, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		panic(err)
	}
	return index
}
