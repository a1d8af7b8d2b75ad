package accountant

import (
	"testing"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCanFit(t *testing.T) {
	cluster := &types.Cluster{TotalRAM: 100, TotalCPU: 10, TotalGPU: 2, AllocatedRAM: 40, AllocatedCPU: 4, AllocatedGPU: 1}

	assert.True(t, CanFit(cluster, &types.Deployment{RequiredRAM: 60, RequiredCPU: 6, RequiredGPU: 1}))
	assert.False(t, CanFit(cluster, &types.Deployment{RequiredRAM: 61, RequiredCPU: 6, RequiredGPU: 1}))
	assert.False(t, CanFit(cluster, &types.Deployment{RequiredRAM: 60, RequiredCPU: 7, RequiredGPU: 1}))
	assert.False(t, CanFit(cluster, &types.Deployment{RequiredRAM: 60, RequiredCPU: 6, RequiredGPU: 2}))
}

func TestCanFitExactBoundary(t *testing.T) {
	cluster := &types.Cluster{TotalRAM: 100, TotalCPU: 10, TotalGPU: 0}
	assert.True(t, CanFit(cluster, &types.Deployment{RequiredRAM: 100, RequiredCPU: 10, RequiredGPU: 0}))
}

func TestDebitThenCredit(t *testing.T) {
	cluster := &types.Cluster{TotalRAM: 100, TotalCPU: 10, TotalGPU: 2}
	deployment := &types.Deployment{RequiredRAM: 50, RequiredCPU: 5, RequiredGPU: 1}

	Debit(cluster, deployment)
	assert.Equal(t, int64(50), cluster.AllocatedRAM)
	assert.Equal(t, int64(50), cluster.AvailableRAM())

	Credit(cluster, deployment)
	assert.Equal(t, int64(0), cluster.AllocatedRAM)
	assert.Equal(t, int64(100), cluster.AvailableRAM())
}

func TestDebitMultipleDeployments(t *testing.T) {
	cluster := &types.Cluster{TotalRAM: 100, TotalCPU: 10, TotalGPU: 4}
	a := &types.Deployment{RequiredRAM: 30, RequiredCPU: 3, RequiredGPU: 1}
	b := &types.Deployment{RequiredRAM: 40, RequiredCPU: 4, RequiredGPU: 1}

	Debit(cluster, a)
	Debit(cluster, b)
	assert.Equal(t, int64(70), cluster.AllocatedRAM)
	assert.False(t, CanFit(cluster, &types.Deployment{RequiredRAM: 31, RequiredCPU: 1, RequiredGPU: 0}))
	assert.True(t, CanFit(cluster, &types.Deployment{RequiredRAM: 30, RequiredCPU: 1, RequiredGPU: 0}))
}
