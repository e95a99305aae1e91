package raft

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LogDispatcher owns one BoundedQueue and DispatcherWorker per follower and
// exposes the single producer-facing entry point, Offer.
type LogDispatcher struct {
	member Member
	cfg    Config
	logger *zap.Logger
	clock  clock.Clock

	metrics *dispatcherMetrics

	followers       []Node
	queues          []*BoundedQueue[*SendRequest]
	followerMetrics []*followerMetrics

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures a LogDispatcher at construction.
type Option func(*LogDispatcher)

// WithLogger overrides the dispatcher's logger. The default is a no-op
// logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *LogDispatcher) { d.logger = logger }
}

// WithClock overrides the dispatcher's clock, primarily for tests.
func WithClock(c clock.Clock) Option {
	return func(d *LogDispatcher) { d.clock = c }
}

// NewLogDispatcher enumerates member's peer nodes (excluding itself) and
// creates one fixed-capacity queue per follower. It starts no goroutines:
// Run spawns one worker per follower and Shutdown stops them.
func NewLogDispatcher(member Member, cfg Config, opts ...Option) (*LogDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &LogDispatcher{
		member:  member,
		cfg:     cfg,
		logger:  zap.NewNop(),
		clock:   clock.New(),
		metrics: newDispatcherMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("service", "log_dispatcher"), zap.String("member", member.Name()))

	self := member.ThisNode()
	for _, node := range member.AllNodes() {
		if node.ID == self.ID {
			continue
		}
		d.followers = append(d.followers, node)
		d.queues = append(d.queues, NewBoundedQueue[*SendRequest](cfg.MinLogsInMemory))
		d.followerMetrics = append(d.followerMetrics, d.metrics.forFollower(member.Name(), node))
	}

	return d, nil
}

// Run starts one goroutine per follower and blocks until ctx is cancelled
// or a worker returns a non-cancellation error, in which case every other
// worker is also stopped. Run is typically called in its own goroutine;
// use Shutdown for a coordinated stop from another goroutine.
func (d *LogDispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	d.cancel = cancel
	d.group = group

	for i, follower := range d.followers {
		worker := newDispatcherWorker(d.member, follower, d.queues[i], d.cfg, d.logger, d.followerMetrics[i], d.clock)
		group.Go(func() error { return worker.Run(ctx) })
	}

	return group.Wait()
}

// Offer multicasts req to every follower's queue via a non-blocking insert.
// The first successful enqueue stamps req's EnqueueTime. A queue that is
// currently full is skipped (logged at debug) rather than blocking or
// erroring; Offer never blocks and never returns an error.
func (d *LogDispatcher) Offer(req *SendRequest) {
	stamped := false
	for i, queue := range d.queues {
		if queue.TryOffer(req) {
			if !stamped {
				req.setEnqueueTime(d.clock.Now().UnixNano())
				stamped = true
			}
			continue
		}
		follower := d.followers[i]
		d.followerMetrics[i].dropped.Inc()
		d.logger.Debug("dropping log for this node",
			zap.String("follower", follower.String()), zap.Error(ErrQueueFull))
	}
}

// Shutdown cancels every worker's context and waits (bounded by ctx) for
// them to exit. Queued-but-unsent requests are discarded.
func (d *LogDispatcher) Shutdown(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatcherStats reports live per-follower queue depth for the debug
// surface.
type DispatcherStats struct {
	Followers []FollowerStats
}

// FollowerStats is one follower's entry in DispatcherStats.
type FollowerStats struct {
	Follower string `json:"follower"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}

// Stats returns a snapshot of every follower's queue depth.
func (d *LogDispatcher) Stats() DispatcherStats {
	stats := DispatcherStats{Followers: make([]FollowerStats, len(d.followers))}
	for i, follower := range d.followers {
		stats.Followers[i] = FollowerStats{
			Follower: follower.String(),
			Depth:    d.queues[i].Len(),
			Capacity: d.queues[i].Cap(),
		}
	}
	return stats
}

// Metrics returns the dispatcher's Prometheus collectors so the embedding
// binary can register them with its own registry.
func (d *LogDispatcher) Metrics() []prometheus.Collector {
	return d.metrics.Collectors()
}
