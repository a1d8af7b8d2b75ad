package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hypervisor_clusters_total",
			Help: "Total number of clusters",
		},
	)

	ClusterAllocatedRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hypervisor_cluster_allocated_ratio",
			Help: "Fraction of cluster capacity allocated, by cluster and resource",
		},
		[]string{"cluster_id", "resource"},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hypervisor_deployments_total",
			Help: "Total number of deployments by status",
		},
		[]string{"status"},
	)

	DeploymentAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypervisor_deployment_attempts",
			Help:    "Number of admission attempts a deployment needed before completing or failing",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
		},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypervisor_scheduling_latency_seconds",
			Help:    "Time taken by one deployment admission transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeploymentsAdmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypervisor_deployments_admitted_total",
			Help: "Total number of deployments admitted onto a cluster",
		},
		[]string{"cluster_id"},
	)

	DeploymentsPreemptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypervisor_deployments_preempted_total",
			Help: "Total number of deployments evicted to make room for a higher-priority admission",
		},
		[]string{"cluster_id"},
	)

	DeploymentsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypervisor_deployments_failed_total",
			Help: "Total number of deployments marked FAILED (retry budget exhausted or a dependency failed)",
		},
	)

	PreemptionPlanSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypervisor_preemption_plan_size",
			Help:    "Number of victims selected per preemption plan",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	// Job queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hypervisor_queue_depth",
			Help: "Number of jobs in the durable queue, by state",
		},
		[]string{"state"},
	)

	JobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypervisor_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
	)

	JobsAckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypervisor_jobs_acked_total",
			Help: "Total number of jobs acknowledged as complete",
		},
	)

	JobsNackedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypervisor_jobs_nacked_total",
			Help: "Total number of jobs negatively acknowledged and re-queued",
		},
	)

	JobLeaseExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypervisor_job_lease_expired_total",
			Help: "Total number of leases reclaimed by the sweep without an ack",
		},
	)

	// Event broker metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypervisor_events_published_total",
			Help: "Total number of lifecycle events published to the broker, by type",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypervisor_events_dropped_total",
			Help: "Total number of events dropped because a subscriber's buffer was full, by type",
		},
		[]string{"type"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypervisor_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypervisor_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ClusterAllocatedRatio)
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(DeploymentAttempts)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(DeploymentsAdmittedTotal)
	prometheus.MustRegister(DeploymentsPreemptedTotal)
	prometheus.MustRegister(DeploymentsFailedTotal)
	prometheus.MustRegister(PreemptionPlanSize)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsAckedTotal)
	prometheus.MustRegister(JobsNackedTotal)
	prometheus.MustRegister(JobLeaseExpiredTotal)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
