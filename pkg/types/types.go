// Package types holds the data model shared by every hypervisor package:
// clusters, deployments, the dependency edge relation between deployments,
// and the durable job queue entries that drive them through scheduling.
package types

import "time"

// Cluster is a logical pool of RAM/CPU/GPU capacity with running-total
// accounting. Mutated only by the Scheduler Worker (debit/credit) or by a
// completion event.
type Cluster struct {
	ID        uint64
	Name      string
	CreatedBy uint64
	CreatedAt time.Time

	TotalRAM int64
	TotalCPU int64
	TotalGPU int64

	AllocatedRAM int64
	AllocatedCPU int64
	AllocatedGPU int64
}

// AvailableRAM returns the cluster's unallocated RAM, in GB.
func (c *Cluster) AvailableRAM() int64 { return c.TotalRAM - c.AllocatedRAM }

// AvailableCPU returns the cluster's unallocated CPU, in cores.
func (c *Cluster) AvailableCPU() int64 { return c.TotalCPU - c.AllocatedCPU }

// AvailableGPU returns the cluster's unallocated GPU, in devices.
func (c *Cluster) AvailableGPU() int64 { return c.TotalGPU - c.AllocatedGPU }

// DeploymentStatus is the runtime state of a Deployment.
type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "PENDING"
	DeploymentRunning   DeploymentStatus = "RUNNING"
	DeploymentCompleted DeploymentStatus = "COMPLETED"
	// DeploymentFailed is reached only through the scheduler worker, when
	// the bounded retry counter runs out or a direct dependency is FAILED;
	// it is never a status a caller may set directly.
	DeploymentFailed DeploymentStatus = "FAILED"
)

// Priority is the scheduling priority a Deployment is submitted with.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank returns the numeric rank used by the Preemption Planner: higher
// outranks lower. Unknown priorities rank below LOW so they never preempt
// anything and are always preemptable, rather than panicking.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the three declared priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Deployment is a declarative request to run a container image with
// specified resource needs, priority, and dependencies.
type Deployment struct {
	ID uint64

	DockerImagePath string
	RequiredRAM     int64
	RequiredCPU     int64
	RequiredGPU     int64
	Priority        Priority

	ClusterID uint64
	Status    DeploymentStatus

	CreatedBy uint64
	CreatedAt time.Time
	UpdatedAt time.Time

	// Attempts counts PENDING admission attempts on which the deployment
	// did not fit and no preemption plan fit, including attempts spent
	// waiting behind equal-or-higher-priority occupants; it bounds the
	// FAILED transition the scheduler worker applies. It is not
	// incremented while the deployment waits on unsatisfied dependencies.
	Attempts int
}

// DependencyEdge is a directed "must complete before" edge: Dependent may
// run only once Dependency (and its own transitive dependencies) has
// reached DeploymentCompleted.
type DependencyEdge struct {
	DependentID  uint64
	DependencyID uint64
}

// JobState is the lifecycle state of a queued process_deployment task.
type JobState string

const (
	JobQueued JobState = "QUEUED"
	JobLeased JobState = "LEASED"
)

// Job is one durable, at-least-once process_deployment(deployment_id) task.
type Job struct {
	ID           string
	DeploymentID uint64
	State        JobState

	EnqueuedAt time.Time
	NotBefore  time.Time

	// LeaseExpiresAt is set when State == JobLeased; a lease sweep
	// returns the job to JobQueued if it expires without an Ack.
	LeaseExpiresAt time.Time
}
