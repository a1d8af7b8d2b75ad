// Package accountant implements the Resource Accountant: pure functions
// over a Cluster's RAM/CPU/GPU ledger that the Scheduler Worker calls while
// holding the cluster's row lock. None of these functions touch storage —
// the caller is responsible for persisting the mutated Cluster.
package accountant

import "github.com/RajatKothariN1NN/Hypervisor/pkg/types"

// CanFit reports whether cluster has enough unallocated RAM, CPU, and GPU
// to admit deployment without exceeding its totals.
func CanFit(cluster *types.Cluster, deployment *types.Deployment) bool {
	return cluster.AvailableRAM() >= deployment.RequiredRAM &&
		cluster.AvailableCPU() >= deployment.RequiredCPU &&
		cluster.AvailableGPU() >= deployment.RequiredGPU
}

// Debit reserves deployment's resources against cluster. Callers must have
// already confirmed CanFit; Debit does not check capacity itself so that a
// preemption plan's released capacity can be debited in the same step it
// frees up, without re-deriving CanFit against an intermediate state.
func Debit(cluster *types.Cluster, deployment *types.Deployment) {
	cluster.AllocatedRAM += deployment.RequiredRAM
	cluster.AllocatedCPU += deployment.RequiredCPU
	cluster.AllocatedGPU += deployment.RequiredGPU
}

// Credit releases deployment's resources back to cluster, e.g. on
// completion or preemption.
func Credit(cluster *types.Cluster, deployment *types.Deployment) {
	cluster.AllocatedRAM -= deployment.RequiredRAM
	cluster.AllocatedCPU -= deployment.RequiredCPU
	cluster.AllocatedGPU -= deployment.RequiredGPU
}
