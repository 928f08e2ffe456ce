// Package metrics exposes Prometheus collectors and health endpoints for a
// GlobalDB instance. All recording methods accept a nil receiver so
// components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes recorded by the dispatcher.
const (
	MutationMatched   = "matched"
	MutationUnmatched = "unmatched"
	MutationInactive  = "inactive"
	MutationRejected  = "rejected"
)

// Reasons a notification was not delivered.
const (
	DropOverflow = "overflow"
	DropShutdown = "shutdown"
	DropCanceled = "canceled"
)

// Metrics tracks cluster, dispatch and link metrics
type Metrics struct {
	// Registry metrics
	ClustersTotal prometheus.Gauge
	Members       *prometheus.GaugeVec
	Subscriptions *prometheus.GaugeVec

	// Dispatch metrics
	Mutations              *prometheus.CounterVec
	NotificationsQueued    prometheus.Counter
	NotificationsDelivered *prometheus.CounterVec
	NotificationsDropped   *prometheus.CounterVec
	SubscriberFailures     *prometheus.CounterVec
	DeliveryLatency        prometheus.Histogram
	QueueDepth             prometheus.Gauge
	WriterBlocks           prometheus.Counter

	// Link metrics
	LinkAssociations *prometheus.CounterVec

	// Health metrics
	HealthScore     prometheus.Gauge // 0-100 score
	LastHealthCheck prometheus.Gauge
}

// New creates and registers the collectors
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ClustersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "globaldb_clusters",
			Help: "Number of registered clusters",
		}),
		Members: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "globaldb_cluster_members",
			Help: "Number of explicit members per cluster",
		}, []string{"cluster"}),
		Subscriptions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "globaldb_cluster_subscriptions",
			Help: "Number of notification subscriptions per cluster",
		}, []string{"cluster"}),

		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "globaldb_mutations_total",
			Help: "Store mutations seen by the dispatcher, by outcome",
		}, []string{"result"}),
		NotificationsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "globaldb_notifications_queued_total",
			Help: "Notifications placed on a worker queue",
		}),
		NotificationsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "globaldb_notifications_delivered_total",
			Help: "Notifications delivered successfully, by cluster",
		}, []string{"cluster"}),
		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "globaldb_notifications_dropped_total",
			Help: "Notifications discarded before delivery, by reason",
		}, []string{"reason"}),
		SubscriberFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "globaldb_subscriber_failures_total",
			Help: "Subscriber callbacks that returned an error or panicked, by cluster",
		}, []string{"cluster"}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "globaldb_notification_latency_seconds",
			Help:    "Time from enqueue to completed delivery",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "globaldb_dispatch_queue_depth",
			Help: "Notifications waiting in worker queues",
		}),
		WriterBlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "globaldb_dispatch_writer_blocks_total",
			Help: "Times a writer waited for queue space under the block policy",
		}),

		LinkAssociations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "globaldb_link_associations_total",
			Help: "Network association attempts, by result",
		}, []string{"result"}),

		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "globaldb_health_score",
			Help: "Overall instance health score (0-100)",
		}),
		LastHealthCheck: factory.NewGauge(prometheus.GaugeOpts{
			Name: "globaldb_last_health_check_timestamp",
			Help: "Timestamp of last health check",
		}),
	}
}

func (m *Metrics) SetClusters(n int) {
	if m == nil {
		return
	}
	m.ClustersTotal.Set(float64(n))
}

func (m *Metrics) SetMembers(cluster string, n int) {
	if m == nil {
		return
	}
	m.Members.WithLabelValues(cluster).Set(float64(n))
}

func (m *Metrics) SetSubscriptions(cluster string, n int) {
	if m == nil {
		return
	}
	m.Subscriptions.WithLabelValues(cluster).Set(float64(n))
}

// ForgetCluster drops the per-cluster series.
func (m *Metrics) ForgetCluster(cluster string) {
	if m == nil {
		return
	}
	m.Members.DeleteLabelValues(cluster)
	m.Subscriptions.DeleteLabelValues(cluster)
	m.NotificationsDelivered.DeleteLabelValues(cluster)
	m.SubscriberFailures.DeleteLabelValues(cluster)
}

func (m *Metrics) ObserveMutation(result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(result).Inc()
}

func (m *Metrics) NotificationQueued() {
	if m == nil {
		return
	}
	m.NotificationsQueued.Inc()
}

func (m *Metrics) NotificationDelivered(cluster string, since time.Time) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.WithLabelValues(cluster).Inc()
	m.DeliveryLatency.Observe(time.Since(since).Seconds())
}

func (m *Metrics) NotificationDropped(reason string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SubscriberFailed(cluster string) {
	if m == nil {
		return
	}
	m.SubscriberFailures.WithLabelValues(cluster).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) WriterBlocked() {
	if m == nil {
		return
	}
	m.WriterBlocks.Inc()
}

func (m *Metrics) LinkAssociation(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "associated"
	}
	m.LinkAssociations.WithLabelValues(result).Inc()
}
