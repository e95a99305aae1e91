package raft

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "raft"
	metricsSubsystem = "log_dispatcher"
)

// dispatcherMetrics holds the Prometheus collectors shared by every
// DispatcherWorker owned by a LogDispatcher, labeled per follower. It
// mirrors the label-per-instance construction used elsewhere in this
// codebase's write path (see engineWriteMetrics).
type dispatcherMetrics struct {
	queueDepth *prometheus.GaugeVec
	dropped    *prometheus.CounterVec
	batchSize  *prometheus.HistogramVec
	logInQueue *prometheus.HistogramVec
	fromCreate *prometheus.HistogramVec
}

func newDispatcherMetrics() *dispatcherMetrics {
	labels := []string{"member", "follower"}
	return &dispatcherMetrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Number of send requests currently queued for a follower.",
		}, labels),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dropped_total",
			Help:      "Number of send requests dropped because a follower's queue was full.",
		}, labels),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "batch_size",
			Help:      "Number of entries shipped per AppendEntries call.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}, labels),
		logInQueue: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "log_in_queue_seconds",
			Help:      "Time an entry spent queued before being handed to a transport.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		fromCreate: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "from_create_to_end_seconds",
			Help:      "Time from entry creation to the end of its send attempt.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
}

// Collectors returns every collector so the embedding daemon can register
// them with its own registry.
func (m *dispatcherMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queueDepth, m.dropped, m.batchSize, m.logInQueue, m.fromCreate}
}

// followerMetrics pre-binds the label set for one follower so hot paths
// avoid repeated label lookups.
type followerMetrics struct {
	queueDepth prometheus.Gauge
	dropped    prometheus.Counter
	batchSize  prometheus.Observer
	logInQueue prometheus.Observer
	fromCreate prometheus.Observer
}

func (m *dispatcherMetrics) forFollower(member string, follower Node) *followerMetrics {
	labels := prometheus.Labels{"member": member, "follower": follower.String()}
	return &followerMetrics{
		queueDepth: m.queueDepth.With(labels),
		dropped:    m.dropped.With(labels),
		batchSize:  m.batchSize.With(labels),
		logInQueue: m.logInQueue.With(labels),
		fromCreate: m.fromCreate.With(labels),
	}
}
