/*
Package events provides an in-memory event broker used to fan out
deployment lifecycle notifications to interested subscribers (metrics,
audit logging, anything else) that want to observe scheduling decisions
without coupling to the scheduler directly.

# Event catalog

EventDeploymentAdmitted: published when the Scheduler Worker debits a
cluster and transitions a deployment to RUNNING.

EventDeploymentPreempted: published for each victim evicted to make room
for a higher-priority admission.

EventDeploymentCompleted: names a deployment reaching COMPLETED. No
publisher in this module emits it: the completion webhook in pkg/api
credits the cluster and enqueues each direct dependent's job itself,
without going through the broker.

EventDeploymentFailed: published when a deployment exhausts its retry
budget or a direct dependency fails.

EventClusterExhausted: published when an admission attempt finds no
preemption plan that would fit, even after considering every
lower-priority occupant.

Every Event carries typed DeploymentID/ClusterID fields rather than a
free-form metadata map, since every event this broker carries is about
exactly one deployment on exactly one cluster; Metadata remains for
whatever else a specific publisher wants to attach.

# Subscription filtering

Subscribe receives every event; SubscribeTo(types...) narrows delivery to
the named types, so a listener that only cares about terminal states
(completed, failed) isn't woken — or made to compete for its buffer slot —
by routine admission and preemption traffic on a busy cluster.

# Delivery guarantees

Publish is non-blocking and best-effort: a full subscriber buffer drops
the event (counted in hypervisor_events_dropped_total) rather than
blocking the publisher or every other subscriber. No scheduling work
depends on delivery (follow-up jobs go through the durable job queue, not
the broker), so a dropped event only costs metrics/audit consumers, which
tolerate gaps.
*/
package events
