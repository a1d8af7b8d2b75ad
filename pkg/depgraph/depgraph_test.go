package depgraph

import (
	"testing"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreateDeployment(t *testing.T, store storage.Store, id uint64, status types.DeploymentStatus) {
	t.Helper()
	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID:              id,
		DockerImagePath: "registry/example:latest",
		RequiredRAM:     1,
		RequiredCPU:     1,
		Priority:        types.PriorityMedium,
		Status:          status,
	}))
}

func TestDependenciesSatisfiedNoDependencies(t *testing.T) {
	store := newTestStore(t)
	mustCreateDeployment(t, store, 1, types.DeploymentPending)

	resolver := New(store)
	satisfied, failed, err := resolver.DependenciesSatisfied(1)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.False(t, failed)
}

func TestDependenciesSatisfiedWaitsOnPending(t *testing.T) {
	store := newTestStore(t)
	mustCreateDeployment(t, store, 1, types.DeploymentPending)
	mustCreateDeployment(t, store, 2, types.DeploymentPending)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))

	resolver := New(store)
	satisfied, failed, err := resolver.DependenciesSatisfied(2)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.False(t, failed)
}

func TestDependenciesSatisfiedOnceCompleted(t *testing.T) {
	store := newTestStore(t)
	mustCreateDeployment(t, store, 1, types.DeploymentCompleted)
	mustCreateDeployment(t, store, 2, types.DeploymentPending)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))

	resolver := New(store)
	satisfied, failed, err := resolver.DependenciesSatisfied(2)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.False(t, failed)
}

func TestDependenciesSatisfiedFailedDependencyShortCircuits(t *testing.T) {
	store := newTestStore(t)
	mustCreateDeployment(t, store, 1, types.DeploymentFailed)
	mustCreateDeployment(t, store, 2, types.DeploymentPending)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))

	resolver := New(store)
	satisfied, failed, err := resolver.DependenciesSatisfied(2)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.True(t, failed)
}

func TestDirectDependents(t *testing.T) {
	store := newTestStore(t)
	mustCreateDeployment(t, store, 1, types.DeploymentCompleted)
	mustCreateDeployment(t, store, 2, types.DeploymentPending)
	mustCreateDeployment(t, store, 3, types.DeploymentPending)
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 2, DependencyID: 1}))
	require.NoError(t, store.AddDependencyEdge(types.DependencyEdge{DependentID: 3, DependencyID: 1}))

	resolver := New(store)
	dependents, err := resolver.DirectDependents(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 3}, dependents)
}

func TestValidateEdgeAdditionRejectsSelfLoop(t *testing.T) {
	store := newTestStore(t)
	resolver := New(store)

	err := resolver.ValidateEdgeAddition(1, 1)
	require.Error(t, err)
	assert.IsType(t, &hypervisor.CyclicDependency{}, err)
}

func TestValidateEdgeAdditionRejectsCycle(t *testing.T) {
	store := newTestStore(t)
	resolver := New(store)

	// 1 -> 2 -> 3 already exists; adding 3 -> 1 would close the cycle.
	require.NoError(t, resolver.AddEdge(1, 2))
	require.NoError(t, resolver.AddEdge(2, 3))

	err := resolver.ValidateEdgeAddition(3, 1)
	require.Error(t, err)
}

func TestAddEdgePersists(t *testing.T) {
	store := newTestStore(t)
	resolver := New(store)

	require.NoError(t, resolver.AddEdge(2, 1))

	deps, err := store.ListDependenciesOf(2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, deps)
}
