package scheduler

import (
	"context"
	"testing"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/depgraph"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	resolver := depgraph.New(store)
	sched := New(store, resolver, nil)
	return sched, store
}

func mustPutCluster(t *testing.T, store storage.Store, c *types.Cluster) {
	t.Helper()
	require.NoError(t, store.CreateCluster(c))
}

func mustPutDeployment(t *testing.T, store storage.Store, d *types.Deployment) {
	t.Helper()
	require.NoError(t, store.CreateDeployment(d))
}

func TestProcessAdmitsDirectlyWhenItFits(t *testing.T) {
	sched, store := newTestScheduler(t)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 100, TotalCPU: 10}
	mustPutCluster(t, store, cluster)

	deployment := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 50, RequiredCPU: 5, Priority: types.PriorityMedium, Status: types.DeploymentPending}
	mustPutDeployment(t, store, deployment)

	require.NoError(t, sched.Process(context.Background(), 1))

	got, err := store.GetDeployment(1)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentRunning, got.Status)

	gotCluster, err := store.GetCluster(1)
	require.NoError(t, err)
	require.Equal(t, int64(50), gotCluster.AllocatedRAM)
}

func TestProcessRequeuesWhenDependencyPending(t *testing.T) {
	sched, store := newTestScheduler(t)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 100, TotalCPU: 10}
	mustPutCluster(t, store, cluster)

	dependency := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 10, RequiredCPU: 1, Priority: types.PriorityMedium, Status: types.DeploymentPending}
	dependent := &types.Deployment{ID: 2, ClusterID: 1, RequiredRAM: 10, RequiredCPU: 1, Priority: types.PriorityMedium, Status: types.DeploymentPending}
	mustPutDeployment(t, store, dependency)
	mustPutDeployment(t, store, dependent)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))

	require.NoError(t, sched.Process(context.Background(), 2))

	got, err := store.GetDeployment(2)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentPending, got.Status)
	require.Equal(t, 0, got.Attempts, "waiting on a pending dependency must not burn the retry budget")

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, uint64(2), jobs[0].DeploymentID)
}

func TestProcessFailsImmediatelyOnFailedDependency(t *testing.T) {
	sched, store := newTestScheduler(t)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 100, TotalCPU: 10}
	mustPutCluster(t, store, cluster)

	dependency := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 10, RequiredCPU: 1, Priority: types.PriorityMedium, Status: types.DeploymentFailed}
	dependent := &types.Deployment{ID: 2, ClusterID: 1, RequiredRAM: 10, RequiredCPU: 1, Priority: types.PriorityMedium, Status: types.DeploymentPending}
	mustPutDeployment(t, store, dependency)
	mustPutDeployment(t, store, dependent)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))

	require.NoError(t, sched.Process(context.Background(), 2))

	got, err := store.GetDeployment(2)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentFailed, got.Status)
	require.Equal(t, 0, got.Attempts, "a failed dependency fails immediately, without spending the retry budget")
}

func TestProcessPreemptsLowerPriorityToFit(t *testing.T) {
	sched, store := newTestScheduler(t)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 100, TotalCPU: 10, AllocatedRAM: 90, AllocatedCPU: 9}
	mustPutCluster(t, store, cluster)

	victim := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 90, RequiredCPU: 9, Priority: types.PriorityLow, Status: types.DeploymentRunning}
	candidate := &types.Deployment{ID: 2, ClusterID: 1, RequiredRAM: 50, RequiredCPU: 5, Priority: types.PriorityHigh, Status: types.DeploymentPending}
	mustPutDeployment(t, store, victim)
	mustPutDeployment(t, store, candidate)

	require.NoError(t, sched.Process(context.Background(), 2))

	gotCandidate, err := store.GetDeployment(2)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentRunning, gotCandidate.Status)

	gotVictim, err := store.GetDeployment(1)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentPending, gotVictim.Status)

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, uint64(1), jobs[0].DeploymentID, "the evicted victim should be re-enqueued")
}

func TestProcessNoOpOnRunningDeployment(t *testing.T) {
	sched, store := newTestScheduler(t)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 100, TotalCPU: 10, AllocatedRAM: 50, AllocatedCPU: 5}
	mustPutCluster(t, store, cluster)
	deployment := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 50, RequiredCPU: 5, Priority: types.PriorityMedium, Status: types.DeploymentRunning}
	mustPutDeployment(t, store, deployment)

	require.NoError(t, sched.Process(context.Background(), 1))

	got, err := store.GetDeployment(1)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentRunning, got.Status)

	gotCluster, err := store.GetCluster(1)
	require.NoError(t, err)
	require.Equal(t, int64(50), gotCluster.AllocatedRAM, "a no-op must not double-debit the cluster")
}

func TestProcessFailsAfterExhaustingRetryBudgetWithNoVictim(t *testing.T) {
	sched, store := newTestScheduler(t)
	sched.WithMaxAttempts(1)

	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 10, TotalCPU: 1}
	mustPutCluster(t, store, cluster)
	// Requires more than the cluster's total capacity: can never fit, and
	// there is no RUNNING occupant on the cluster to preempt.
	deployment := &types.Deployment{ID: 1, ClusterID: 1, RequiredRAM: 100, RequiredCPU: 10, Priority: types.PriorityHigh, Status: types.DeploymentPending}
	mustPutDeployment(t, store, deployment)

	require.NoError(t, sched.Process(context.Background(), 1))

	got, err := store.GetDeployment(1)
	require.NoError(t, err)
	require.Equal(t, types.DeploymentFailed, got.Status)
}

func TestProcessDropsJobForMissingDeployment(t *testing.T) {
	sched, store := newTestScheduler(t)
	cluster := &types.Cluster{ID: 1, Name: "c1", TotalRAM: 10, TotalCPU: 1}
	mustPutCluster(t, store, cluster)

	err := sched.Process(context.Background(), 999)
	require.NoError(t, err, "a missing deployment is a logical error: drop, don't retry")
}
