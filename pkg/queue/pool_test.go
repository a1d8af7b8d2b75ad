package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed []uint64
	failN     int32 // number of remaining calls that should return a transient error
}

func (f *fakeProcessor) Process(ctx context.Context, deploymentID uint64) error {
	if atomic.AddInt32(&f.failN, -1) >= 0 {
		return &hypervisor.TransientStoreError{Op: "test", Err: assert.AnError}
	}
	f.mu.Lock()
	f.processed = append(f.processed, deploymentID)
	f.mu.Unlock()
	return nil
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPoolProcessesEnqueuedJob(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnqueueJob(&types.Job{DeploymentID: 42}))

	proc := &fakeProcessor{}
	pool := NewPool(store, proc, 2)
	pool.emptyPollDelay = 10 * time.Millisecond
	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 5*time.Millisecond)

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs, "a successfully processed job should be acked (deleted)")
}

func TestPoolRetriesTransientFailureThenNacksAfterExhaustion(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnqueueJob(&types.Job{DeploymentID: 7}))

	proc := &fakeProcessor{failN: 100} // always transient
	pool := NewPool(store, proc, 1)
	pool.emptyPollDelay = 10 * time.Millisecond
	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool {
		jobs, err := store.ListJobs()
		require.NoError(t, err)
		return len(jobs) == 1 && jobs[0].State == types.JobQueued
	}, time.Second, 5*time.Millisecond, "job should be nacked back to QUEUED after retries are exhausted")
}

func TestReconcileOnceReEnqueuesOrphanedPendingDeployment(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateDeployment(&types.Deployment{ID: 1, Status: types.DeploymentPending}))

	pool := NewPool(store, &fakeProcessor{}, 1)
	pool.reconcileOnce()

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, uint64(1), jobs[0].DeploymentID)
}

func TestReconcileOnceSkipsDeploymentWithExistingJob(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateDeployment(&types.Deployment{ID: 1, Status: types.DeploymentPending}))
	require.NoError(t, store.EnqueueJob(&types.Job{DeploymentID: 1}))

	pool := NewPool(store, &fakeProcessor{}, 1)
	pool.reconcileOnce()

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1, "should not double-enqueue a deployment that already has a queue entry")
}
