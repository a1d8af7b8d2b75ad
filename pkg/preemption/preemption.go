// Package preemption implements the Preemption Planner: given a cluster
// that cannot currently fit a candidate deployment, it decides which
// lower-priority running deployments would have to be evicted to make room.
// Plan is a pure decision function — it never mutates the cluster or store;
// the Scheduler Worker applies the plan (credit + re-enqueue the victims,
// then debit + admit the candidate) under the cluster's row lock.
package preemption

import (
	"sort"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/accountant"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/samber/lo"
)

// Plan is the outcome of a preemption attempt: Victims lists the running
// deployments to evict, in the order they should be credited back, and Fits
// reports whether evicting all of them actually frees enough capacity for
// candidate. A Plan with Fits == false carries no side effect obligation —
// the caller must not evict anything.
type Plan struct {
	Victims []*types.Deployment
	Fits    bool
}

// Plan greedily picks lower-priority RUNNING deployments on cluster whose
// eviction would let candidate fit: it evicts the lowest-priority
// deployments first and, within a priority tier, the lowest-id deployment
// first, stopping as soon as candidate fits, for a deterministic outcome
// independent of slice order. The chosen set is the shortest prefix of that
// order that fits, not necessarily the smallest possible set of victims. running must contain only deployments currently placed on
// cluster with status RUNNING; candidate is not included in running.
func Plan(cluster *types.Cluster, candidate *types.Deployment, running []*types.Deployment) Plan {
	candidates := lo.Filter(running, func(d *types.Deployment, _ int) bool {
		return d.Priority.Rank() < candidate.Priority.Rank()
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority.Rank() != candidates[j].Priority.Rank() {
			return candidates[i].Priority.Rank() < candidates[j].Priority.Rank()
		}
		return candidates[i].ID < candidates[j].ID
	})

	// Work against a scratch copy of the cluster's ledger so Plan never
	// mutates the caller's cluster, even transiently.
	scratch := *cluster
	if accountant.CanFit(&scratch, candidate) {
		return Plan{Fits: true}
	}

	victims := make([]*types.Deployment, 0)
	for _, v := range candidates {
		accountant.Credit(&scratch, v)
		victims = append(victims, v)
		if accountant.CanFit(&scratch, candidate) {
			return Plan{Victims: victims, Fits: true}
		}
	}
	return Plan{Victims: victims, Fits: false}
}
