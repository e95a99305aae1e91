package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

// demoLog is a trivial raft.Log implementation: a monotonically increasing
// index carrying a small string payload, used to drive the dispatcher in
// place of a real write-ahead log.
type demoLog struct {
	index      uint64
	term       uint64
	createTime int64
	payload    string
}

func (l *demoLog) CurrentIndex() uint64 { return l.index }
func (l *demoLog) Term() uint64         { return l.term }
func (l *demoLog) CreateTime() int64    { return l.createTime }

func (l *demoLog) Serialize() ([]byte, error) {
	return []byte(fmt.Sprintf("%d:%s", l.index, l.payload)), nil
}

// logProducer synthesizes one demoLog per tick and hands it to the
// dispatcher, simulating the stream of entries a real leader's log manager
// would append as it accepts client writes.
type logProducer struct {
	nextIndex uint64 // atomic
	term      uint64
}

func newLogProducer(term uint64) *logProducer {
	return &logProducer{term: term}
}

func (p *logProducer) next(payload string) *demoLog {
	index := atomic.AddUint64(&p.nextIndex, 1)
	return &demoLog{
		index:      index,
		term:       p.term,
		createTime: time.Now().UnixNano(),
		payload:    payload,
	}
}
