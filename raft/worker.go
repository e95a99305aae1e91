package raft

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DispatcherWorker is the long-lived, single-goroutine loop bound to one
// follower's queue. It takes one request, opportunistically drains its
// siblings, serializes each entry exactly once, and ships the resulting
// batch over the configured transport.
type DispatcherWorker struct {
	member   Member
	receiver Node
	peer     *Peer
	queue    *BoundedQueue[*SendRequest]
	cfg      Config
	logger   *zap.Logger
	metrics  *followerMetrics
	instr    *instrumentation

	batch []*SendRequest
}

func newDispatcherWorker(member Member, receiver Node, queue *BoundedQueue[*SendRequest], cfg Config, logger *zap.Logger, metrics *followerMetrics, clk clock.Clock) *DispatcherWorker {
	peer := member.Peers().GetOrInsert(receiver, member.LastLogIndex())
	return &DispatcherWorker{
		member:   member,
		receiver: receiver,
		peer:     peer,
		queue:    queue,
		cfg:      cfg,
		logger:   logger.With(zap.String("follower", receiver.String())),
		metrics:  metrics,
		instr:    newInstrumentation(cfg.EnableInstrumenting, clk, metrics),
		batch:    make([]*SendRequest, 0, cfg.MinLogsInMemory),
	}
}

// Run executes the worker loop until ctx is cancelled, at which point it
// exits cleanly and returns nil. Any other error is isolated: logged, and
// the loop continues.
func (w *DispatcherWorker) Run(ctx context.Context) error {
	w.logger.Info("dispatcher worker starting")

	for {
		req, err := w.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("dispatcher worker stopped", zap.Error(ErrWorkerStopped))
				return nil
			}
			return err
		}

		if err := w.handle(ctx, req); err != nil {
			w.logger.Error("unexpected error in log dispatcher", zap.Error(err))
		}

		w.metrics.queueDepth.Set(float64(w.queue.Len()))
	}
}

// handle opportunistically drains the taken request's siblings, serializes
// every request of the batch, and dispatches the result. A panic while
// dispatching is recovered and returned as an error.
func (w *DispatcherWorker) handle(ctx context.Context, first *SendRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic while dispatching: %v", r)
		}
	}()

	w.batch = append(w.batch[:0], first)
	w.queue.DrainTo(&w.batch)

	batch := make([]*SendRequest, 0, len(w.batch))
	for _, req := range w.batch {
		if err := w.serialize(req); err != nil {
			w.logger.Error("failed to serialize log entry", zap.Error(err))
			continue
		}
		batch = append(batch, req)
	}
	defer func() { w.batch = w.batch[:0] }()

	if len(batch) == 0 {
		return nil
	}

	w.metrics.batchSize.Observe(float64(len(batch)))

	if len(batch) == 1 {
		w.sendSingle(batch[0])
	} else {
		w.sendBatch(ctx, batch)
	}
	return nil
}

// serialize fills req.AppendEntryRequest.Entry exactly once, off any lock
// held by the Raft log manager.
func (w *DispatcherWorker) serialize(req *SendRequest) error {
	data, err := req.Log.Serialize()
	if err != nil {
		return fmt.Errorf("serialize log entry %d: %w", req.Log.CurrentIndex(), err)
	}
	req.AppendEntryRequest.Entry = data
	return nil
}

func (w *DispatcherWorker) sendSingle(req *SendRequest) {
	w.instr.observeLogInQueue(req.Log.CreateTime())
	if err := w.member.SendLogToFollower(
		req.Log, req.VoteCounter, w.receiver, req.LeadershipStale, req.NewLeaderTerm, req.AppendEntryRequest,
	); err != nil {
		w.logger.Warn("failed to send log to follower", zap.Error(err))
	}
	w.instr.observeFromCreateToEnd(req.Log.CreateTime())
}

func (w *DispatcherWorker) sendBatch(ctx context.Context, batch []*SendRequest) {
	for _, req := range batch {
		w.instr.observeLogInQueue(req.Log.CreateTime())
	}

	entries := make([][]byte, len(batch))
	for i, req := range batch {
		entries[i] = req.AppendEntryRequest.Entry
	}

	request := w.prepareRequest(entries, batch)

	if w.cfg.UseAsyncServer {
		w.sendBatchAsync(ctx, request, batch)
	} else {
		w.sendBatchSync(ctx, request, batch)
	}

	for _, req := range batch {
		w.instr.observeFromCreateToEnd(req.Log.CreateTime())
	}
}

func (w *DispatcherWorker) prepareRequest(entries [][]byte, batch []*SendRequest) *AppendEntriesRequest {
	req := &AppendEntriesRequest{
		Leader:       w.member.ThisNode(),
		LeaderCommit: w.member.CommitIndex(),
		Term:         w.member.TermSnapshot(),
		Entries:      entries,
		PrevLogIndex: batch[0].Log.CurrentIndex() - 1,
		PrevLogTerm:  batch[0].AppendEntryRequest.PrevLogTerm,
	}
	if header, ok := w.member.Header(); ok {
		req.Header = &header
	}
	return req
}

func (w *DispatcherWorker) sendBatchAsync(ctx context.Context, request *AppendEntriesRequest, batch []*SendRequest) {
	client, err := w.member.SendLogAsyncClient(w.receiver)
	if err != nil {
		w.logger.Warn("no async client available for follower", zap.Error(err))
		return
	}

	// Defensive copy: the caller's batch buffer is cleared right after this
	// call returns.
	batchCopy := append([]*SendRequest(nil), batch...)
	handler := NewBatchCompletionHandler(w.member, w.receiver, w.peer, batchCopy)

	if err := client.AppendEntries(ctx, request, handler); err != nil {
		w.logger.Warn("failed to send async append entries", zap.Error(err))
	}
}

func (w *DispatcherWorker) sendBatchSync(ctx context.Context, request *AppendEntriesRequest, batch []*SendRequest) {
	if !w.member.WaitForPrevLog(ctx, w.peer, batch[0].Log) {
		w.logger.Warn("timed out waiting for previous log entry to be acknowledged",
			zap.Uint64("prev_log_index", request.PrevLogIndex))
		return
	}

	client, done, err := w.member.SyncClient(w.receiver)
	if err != nil {
		w.logger.Warn("no sync client available for follower", zap.Error(err))
		return
	}
	defer done()

	handler := NewBatchCompletionHandler(w.member, w.receiver, w.peer, batch)

	result, err := client.AppendEntries(ctx, request)
	if err != nil {
		handler.OnError(err)
		w.logger.Warn("failed to append entries",
			zap.Error(err), zap.Uint64("first_index", request.PrevLogIndex+1))
		return
	}
	handler.OnComplete(result)
}
