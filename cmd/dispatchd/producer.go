package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/nimbusdb/raftdispatch/raft"
)

// runLogProducer appends one synthetic entry per tick, offering it to
// dispatcher and advancing member's own bookkeeping the way a leader's log
// manager would as it accepts client writes. It returns when stop is closed.
func runLogProducer(dispatcher *raft.LogDispatcher, member *inMemoryMember, logger *zap.Logger, stop <-chan struct{}) {
	producer := newLogProducer(member.TermSnapshot())
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log := producer.next("write")
			member.recordAppended(log.index)

			var votes int32
			var stale int32
			var newTerm int64
			req := raft.NewSendRequest(log, &votes, &stale, &newTerm, &raft.AppendEntryRequest{PrevLogTerm: log.term})
			dispatcher.Offer(req)

			logger.Debug("appended synthetic entry", zap.Uint64("index", log.index))
		}
	}
}
