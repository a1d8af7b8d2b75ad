package storage

import (
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
)

// Tx is the set of mutations available inside a single Transact call. Every
// call made through a Tx commits or rolls back together with the rest of the
// closure, unlike the same-named methods on Store, which each run as their
// own independent transaction.
type Tx interface {
	GetCluster(id uint64) (*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	GetDeployment(id uint64) (*types.Deployment, error)
	UpdateDeployment(deployment *types.Deployment) error
	EnqueueJob(job *types.Job) error
}

// Store is the transactional persistence interface for clusters, deployments,
// the dependency edge relation between deployments, and the durable job
// queue. Implemented by BoltStore.
type Store interface {
	// Clusters
	CreateCluster(cluster *types.Cluster) error
	GetCluster(id uint64) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	DeleteCluster(id uint64) error

	// Deployments
	CreateDeployment(deployment *types.Deployment) error
	GetDeployment(id uint64) (*types.Deployment, error)
	ListDeployments() ([]*types.Deployment, error)
	ListDeploymentsByCluster(clusterID uint64) ([]*types.Deployment, error)
	ListDeploymentsByStatus(status types.DeploymentStatus) ([]*types.Deployment, error)
	UpdateDeployment(deployment *types.Deployment) error
	DeleteDeployment(id uint64) error

	// Dependency edges
	AddDependencyEdge(edge types.DependencyEdge) error
	RemoveDependencyEdge(edge types.DependencyEdge) error
	ListDependencyEdges() ([]types.DependencyEdge, error)
	ListDependenciesOf(deploymentID uint64) ([]uint64, error)
	ListDependentsOf(deploymentID uint64) ([]uint64, error)

	// Job queue
	EnqueueJob(job *types.Job) error
	DequeueJob() (*types.Job, error)
	AckJob(id string) error
	NackJob(id string, notBefore time.Time) error
	ReapExpiredLeases(now time.Time) (int, error)
	ListJobs() ([]*types.Job, error)

	// Transact acquires exclusive locks on clusterIDs then deploymentIDs, in
	// that fixed order (so concurrent callers naming the same rows in any
	// order never deadlock), then runs fn with every mutation made through
	// tx committed in one BoltDB write transaction: fn either takes effect
	// in full or, on a crash or returned error, not at all.
	Transact(clusterIDs, deploymentIDs []uint64, fn func(tx Tx) error) error

	Close() error
}
