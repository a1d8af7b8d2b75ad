// Package depgraph implements the Dependency Resolver: checking whether a
// deployment's dependencies are satisfied, validating that a new edge
// would not introduce a cycle, and looking up direct dependents for the
// Scheduler Worker's completion fan-out.
package depgraph

import (
	"sync"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
)

// Resolver serializes edge-graph mutations behind a single coarse mutex:
// the cycle check and the edge insert must run as one unit, since two
// concurrent inserts could each individually pass a cycle check against a
// graph that, once both commit, does contain a cycle.
type Resolver struct {
	store storage.Store
	mu    sync.Mutex
}

// New creates a Resolver backed by store.
func New(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// DependenciesSatisfied reports whether every direct dependency of
// deploymentID has reached COMPLETED. It also reports failed=true if any
// direct dependency is FAILED, since a FAILED dependency can never become
// COMPLETED — the caller should treat this as grounds to fail the
// dependent immediately rather than retry up to MaxAttempts.
func (r *Resolver) DependenciesSatisfied(deploymentID uint64) (satisfied bool, failed bool, err error) {
	depIDs, err := r.store.ListDependenciesOf(deploymentID)
	if err != nil {
		return false, false, err
	}

	satisfied = true
	for _, depID := range depIDs {
		dep, err := r.store.GetDeployment(depID)
		if err != nil {
			return false, false, err
		}
		if dep.Status == types.DeploymentFailed {
			return false, true, nil
		}
		if dep.Status != types.DeploymentCompleted {
			satisfied = false
		}
	}
	return satisfied, false, nil
}

// DirectDependents returns the ids of deployments that directly depend on
// deploymentID, used to fan out process_deployment on completion.
func (r *Resolver) DirectDependents(deploymentID uint64) ([]uint64, error) {
	return r.store.ListDependentsOf(deploymentID)
}

// ValidateEdgeAddition checks that adding dependent -> dependency would not
// create a self-loop or a cycle in the dependency DAG. It does not persist
// the edge.
func (r *Resolver) ValidateEdgeAddition(dependentID, dependencyID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validateEdgeAdditionLocked(dependentID, dependencyID)
}

// validateEdgeAdditionLocked is the body of ValidateEdgeAddition without its
// own locking, so AddEdge can run the check and the insert under one
// acquisition of r.mu.
func (r *Resolver) validateEdgeAdditionLocked(dependentID, dependencyID uint64) error {
	if dependentID == dependencyID {
		return &hypervisor.CyclicDependency{DependentID: dependentID, DependencyID: dependencyID}
	}

	edges, err := r.store.ListDependencyEdges()
	if err != nil {
		return err
	}

	adjacency := make(map[uint64][]uint64, len(edges))
	for _, e := range edges {
		adjacency[e.DependentID] = append(adjacency[e.DependentID], e.DependencyID)
	}
	// The new edge means dependentID now depends on dependencyID; a cycle
	// exists iff dependencyID can already (transitively) reach dependentID.
	if reaches(adjacency, dependencyID, dependentID) {
		return &hypervisor.CyclicDependency{DependentID: dependentID, DependencyID: dependencyID}
	}
	return nil
}

// AddEdge validates then persists dependent -> dependency as one locked
// unit, so no concurrent insert can slip a cycle past the check.
func (r *Resolver) AddEdge(dependentID, dependencyID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateEdgeAdditionLocked(dependentID, dependencyID); err != nil {
		return err
	}
	return r.store.AddDependencyEdge(types.DependencyEdge{
		DependentID:  dependentID,
		DependencyID: dependencyID,
	})
}

// reaches runs a depth-first search from start over the dependent ->
// dependency adjacency, reporting whether target is reachable.
func reaches(adjacency map[uint64][]uint64, start, target uint64) bool {
	visited := make(map[uint64]bool)
	var dfs func(uint64) bool
	dfs = func(node uint64) bool {
		if node == target {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adjacency[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}
