package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
)

const collectInterval = 15 * time.Second

// queueBacklogThreshold is the number of still-QUEUED jobs above which the
// "queue" health component is reported StateDegraded: the worker pool is
// running but visibly behind, which GetReadiness does not treat the same as
// a pool that is actually down.
const queueBacklogThreshold = 500

// Collector periodically samples storage.Store into the cluster/deployment/
// queue gauges.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a ticker, sampling immediately first.
func (c *Collector) Start() {
	ticker := time.NewTicker(collectInterval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectClusterMetrics()
	c.collectDeploymentMetrics()
	c.collectQueueMetrics()
}

func (c *Collector) collectClusterMetrics() {
	clusters, err := c.store.ListClusters()
	if err != nil {
		return
	}

	ClustersTotal.Set(float64(len(clusters)))

	for _, cluster := range clusters {
		id := strconv.FormatUint(cluster.ID, 10)
		ClusterAllocatedRatio.WithLabelValues(id, "ram").Set(ratio(cluster.AllocatedRAM, cluster.TotalRAM))
		ClusterAllocatedRatio.WithLabelValues(id, "cpu").Set(ratio(cluster.AllocatedCPU, cluster.TotalCPU))
		ClusterAllocatedRatio.WithLabelValues(id, "gpu").Set(ratio(cluster.AllocatedGPU, cluster.TotalGPU))
	}
}

func ratio(allocated, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(allocated) / float64(total)
}

func (c *Collector) collectDeploymentMetrics() {
	deployments, err := c.store.ListDeployments()
	if err != nil {
		return
	}

	counts := map[types.DeploymentStatus]int{
		types.DeploymentPending:   0,
		types.DeploymentRunning:   0,
		types.DeploymentCompleted: 0,
		types.DeploymentFailed:    0,
	}
	for _, d := range deployments {
		counts[d.Status]++
	}
	for status, count := range counts {
		DeploymentsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectQueueMetrics() {
	jobs, err := c.store.ListJobs()
	if err != nil {
		return
	}

	counts := map[types.JobState]int{
		types.JobQueued: 0,
		types.JobLeased: 0,
	}
	for _, j := range jobs {
		counts[j.State]++
	}
	for state, count := range counts {
		QueueDepth.WithLabelValues(string(state)).Set(float64(count))
	}

	queued := counts[types.JobQueued]
	if queued > queueBacklogThreshold {
		RegisterComponent("queue", StateDegraded, fmt.Sprintf("%d jobs queued, exceeds threshold of %d", queued, queueBacklogThreshold))
	} else {
		RegisterComponent("queue", StateHealthy, fmt.Sprintf("%d jobs queued", queued))
	}
}
