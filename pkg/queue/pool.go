package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/log"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	retry "github.com/avast/retry-go/v4"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers         = 4
	defaultJobTimeout      = time.Hour
	defaultReapInterval    = 10 * time.Second
	defaultReconcileTick   = 30 * time.Second
	defaultEmptyPollDelay  = 250 * time.Millisecond
	defaultInFlightTTL     = 2 * time.Minute
	defaultStoreRetries    = 3
	defaultStoreRetryDelay = 50 * time.Millisecond
)

// Processor runs one process_deployment step. *hypervisor.TransientStoreError
// returns cause the job to be nacked and retried; any other error (or nil)
// causes the job to be acked.
type Processor interface {
	Process(ctx context.Context, deploymentID uint64) error
}

// Pool runs N goroutines consuming storage.Store's job queue.
type Pool struct {
	store     storage.Store
	processor Processor
	logger    zerolog.Logger

	workers        int
	jobTimeout     time.Duration
	reapInterval   time.Duration
	reconcileTick  time.Duration
	emptyPollDelay time.Duration

	// inFlight prevents two leased jobs that reference the same deployment
	// (a self-re-enqueue racing a completion fan-out) from being processed
	// by two goroutines at once.
	inFlight *cache.Cache

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a Pool of workers goroutines over store, dispatching to
// processor. workers <= 0 uses the default of 4.
func NewPool(store storage.Store, processor Processor, workers int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pool{
		store:          store,
		processor:      processor,
		logger:         log.WithComponent("queue"),
		workers:        workers,
		jobTimeout:     defaultJobTimeout,
		reapInterval:   defaultReapInterval,
		reconcileTick:  defaultReconcileTick,
		emptyPollDelay: defaultEmptyPollDelay,
		inFlight:       cache.New(defaultInFlightTTL, defaultInFlightTTL/2),
		stopCh:         make(chan struct{}),
	}
}

// WithJobTimeout overrides the per-job context timeout (default 1h).
func (p *Pool) WithJobTimeout(d time.Duration) *Pool {
	p.jobTimeout = d
	return p
}

// WithReconcileTick overrides the orphaned-PENDING sweep interval (default 30s).
func (p *Pool) WithReconcileTick(d time.Duration) *Pool {
	p.reconcileTick = d
	return p
}

// Start launches the worker goroutines plus the lease-reaper and
// reconciliation sweeps.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.wg.Add(2)
	go p.reapLoop()
	go p.reconcileLoop()
}

// Stop signals all goroutines to exit and waits for them.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		job, err := p.store.DequeueJob()
		if err != nil {
			p.logger.Error().Err(err).Msg("dequeue failed")
			time.Sleep(p.emptyPollDelay)
			continue
		}
		if job == nil {
			time.Sleep(p.emptyPollDelay)
			continue
		}
		p.handle(job)
	}
}

func (p *Pool) handle(job *types.Job) {
	key := jobDeploymentKey(job.DeploymentID)
	if _, inFlight := p.inFlight.Get(key); inFlight {
		// Another leased job for this same deployment is already running;
		// give it back to the queue rather than process it twice.
		if err := p.store.NackJob(job.ID, time.Now().Add(p.emptyPollDelay)); err != nil {
			p.logger.Error().Err(err).Str("job_id", job.ID).Msg("nack (in-flight collision) failed")
		}
		metrics.JobsNackedTotal.Inc()
		return
	}
	p.inFlight.SetDefault(key, struct{}{})
	defer p.inFlight.Delete(key)

	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	logger := log.WithJobID(job.ID)

	// retry-go's default DelayType already applies exponential backoff
	// between attempts, starting from defaultStoreRetryDelay; these bounded,
	// short retries absorb a brief store hiccup before falling back to a full
	// queue-level nack.
	err := retry.Do(
		func() error { return p.processor.Process(ctx, job.DeploymentID) },
		retry.Attempts(defaultStoreRetries),
		retry.Delay(defaultStoreRetryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)

	if err == nil {
		if ackErr := p.store.AckJob(job.ID); ackErr != nil {
			logger.Error().Err(ackErr).Msg("ack failed")
			return
		}
		metrics.JobsAckedTotal.Inc()
		return
	}

	if !isTransient(err) {
		// A logical error the processor already decided not to retry
		// (e.g. the deployment vanished). Drop the job.
		if ackErr := p.store.AckJob(job.ID); ackErr != nil {
			logger.Error().Err(ackErr).Msg("ack (logical drop) failed")
		}
		return
	}

	logger.Warn().Err(err).Msg("process_deployment failed after retries, nacking")
	if nackErr := p.store.NackJob(job.ID, time.Now().Add(p.emptyPollDelay)); nackErr != nil {
		logger.Error().Err(nackErr).Msg("nack failed")
		return
	}
	metrics.JobsNackedTotal.Inc()
}

func (p *Pool) reapLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := p.store.ReapExpiredLeases(time.Now())
			if err != nil {
				p.logger.Error().Err(err).Msg("reap expired leases failed")
				continue
			}
			if n > 0 {
				metrics.JobLeaseExpiredTotal.Add(float64(n))
				p.logger.Info().Int("count", n).Msg("reclaimed expired leases")
			}
		case <-p.stopCh:
			return
		}
	}
}

// reconcileLoop re-enqueues any PENDING deployment that has no matching
// queue entry, bounding the window between a commit that leaves a
// deployment PENDING and a crash before its follow-up job was enqueued.
func (p *Pool) reconcileLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reconcileTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reconcileOnce()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) reconcileOnce() {
	pending, err := p.store.ListDeploymentsByStatus(types.DeploymentPending)
	if err != nil {
		p.logger.Error().Err(err).Msg("reconcile: list pending deployments failed")
		return
	}
	if len(pending) == 0 {
		return
	}

	jobs, err := p.store.ListJobs()
	if err != nil {
		p.logger.Error().Err(err).Msg("reconcile: list jobs failed")
		return
	}
	queued := make(map[uint64]bool, len(jobs))
	for _, j := range jobs {
		queued[j.DeploymentID] = true
	}

	for _, d := range pending {
		if queued[d.ID] {
			continue
		}
		job := &types.Job{DeploymentID: d.ID}
		if err := p.store.EnqueueJob(job); err != nil {
			p.logger.Error().Err(err).Uint64("deployment_id", d.ID).Msg("reconcile: enqueue failed")
			continue
		}
		metrics.JobsEnqueuedTotal.Inc()
		p.logger.Warn().Uint64("deployment_id", d.ID).Msg("reconcile: re-enqueued orphaned pending deployment")
	}
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*hypervisor.TransientStoreError)
	return ok
}

func jobDeploymentKey(deploymentID uint64) string {
	return "deployment:" + strconv.FormatUint(deploymentID, 10)
}
