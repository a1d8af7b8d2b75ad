// Package metrics defines the Prometheus metrics exposed by the hypervisor:
// cluster capacity gauges, deployment/queue counters, and scheduling latency
// histograms. All metrics register at package init and are served by
// Handler() on /metrics.
package metrics
