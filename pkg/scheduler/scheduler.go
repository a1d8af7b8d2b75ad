package scheduler

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/accountant"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/depgraph"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/events"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/log"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/preemption"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 50
	defaultBackoffBase = 200 * time.Millisecond
	defaultBackoffCap  = 30 * time.Second
)

// Scheduler turns process_deployment jobs into PENDING -> RUNNING/FAILED
// transitions. It holds no goroutines of its own; pkg/queue.Pool drives it
// from the job queue.
type Scheduler struct {
	store    storage.Store
	resolver *depgraph.Resolver
	broker   *events.Broker
	logger   zerolog.Logger

	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// New creates a Scheduler over store, using resolver for dependency checks
// and broker to publish admission, preemption, failure, and
// capacity-exhausted events. broker may be nil, in
// which case events are silently dropped.
func New(store storage.Store, resolver *depgraph.Resolver, broker *events.Broker) *Scheduler {
	return &Scheduler{
		store:       store,
		resolver:    resolver,
		broker:      broker,
		logger:      log.WithComponent("scheduler"),
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
	}
}

// WithMaxAttempts overrides the retry cap applied to structurally-stuck
// deployments (default 50).
func (s *Scheduler) WithMaxAttempts(n int) *Scheduler {
	s.maxAttempts = n
	return s
}

// WithBackoffCap overrides the ceiling on re-enqueue backoff (default 30s).
func (s *Scheduler) WithBackoffCap(d time.Duration) *Scheduler {
	s.backoffCap = d
	return s
}

// Process runs one process_deployment(deploymentID) step to completion. A
// nil return means the caller should Ack the originating job: either the
// step succeeded, was a no-op on an already-RUNNING/COMPLETED deployment, or
// failed for a logical reason (deployment missing) that a retry cannot fix.
// A *hypervisor.TransientStoreError return means the caller should Nack and
// let the queue retry.
func (s *Scheduler) Process(ctx context.Context, deploymentID uint64) error {
	deployment, err := s.store.GetDeployment(deploymentID)
	if err != nil {
		if _, ok := err.(*hypervisor.NotFound); ok {
			s.logger.Warn().Uint64("deployment_id", deploymentID).Msg("process_deployment: deployment missing, dropping job")
			return nil
		}
		return &hypervisor.TransientStoreError{Op: "GetDeployment", Err: err}
	}

	switch deployment.Status {
	case types.DeploymentRunning, types.DeploymentCompleted:
		// Idempotent no-op: a duplicate delivery of an already-handled job.
		return nil
	case types.DeploymentFailed:
		return nil
	}

	logger := log.WithDeploymentID(deploymentID)
	timer := metrics.NewTimer()

	txErr := s.store.Transact([]uint64{deployment.ClusterID}, []uint64{deployment.ID}, func(tx storage.Tx) error {
		return s.admit(tx, deployment, logger)
	})
	timer.ObserveDuration(metrics.SchedulingLatency)

	if txErr == nil {
		return nil
	}
	if _, ok := txErr.(*hypervisor.NotFound); ok {
		logger.Warn().Err(txErr).Msg("process_deployment: row vanished mid-admission, dropping job")
		return nil
	}
	return &hypervisor.TransientStoreError{Op: "Transact", Err: txErr}
}

// admit runs one admission attempt inside the Transact closure, with the
// cluster and deployment row locks already held and every write it makes
// through tx bound for the same BoltDB commit: it re-reads the deployment's
// current state, checks dependencies, tries to fit it directly or via
// preemption, and either admits it, re-enqueues it with backoff, or marks it
// FAILED — as one atomic step.
func (s *Scheduler) admit(tx storage.Tx, deployment *types.Deployment, logger zerolog.Logger) error {
	// Re-read under lock: the copy from before Transact may be stale.
	deployment, err := tx.GetDeployment(deployment.ID)
	if err != nil {
		return err
	}
	if deployment.Status != types.DeploymentPending {
		return nil
	}

	cluster, err := tx.GetCluster(deployment.ClusterID)
	if err != nil {
		return err
	}

	satisfied, depFailed, err := s.resolver.DependenciesSatisfied(deployment.ID)
	if err != nil {
		return err
	}
	if depFailed {
		// A FAILED dependency can never become COMPLETED, so there is no
		// point spending the retry budget waiting on it.
		return s.fail(tx, deployment, logger, "a direct dependency failed")
	}
	if !satisfied {
		return s.requeue(tx, deployment, logger, "dependencies not yet satisfied", true)
	}

	if accountant.CanFit(cluster, deployment) {
		return s.admitDirect(tx, cluster, deployment, logger)
	}

	running, err := s.runningOnCluster(cluster.ID, deployment.ID)
	if err != nil {
		return err
	}
	plan := preemption.Plan(cluster, deployment, running)
	if plan.Fits {
		return s.admitWithPreemption(tx, cluster, deployment, plan, logger)
	}

	s.publish(events.EventClusterExhausted, deployment, "no preemption plan fits")
	return s.failOrRetry(tx, deployment, cluster, logger, "no preemption plan fits")
}

func (s *Scheduler) runningOnCluster(clusterID, excludeID uint64) ([]*types.Deployment, error) {
	all, err := s.store.ListDeploymentsByCluster(clusterID)
	if err != nil {
		return nil, err
	}
	running := make([]*types.Deployment, 0, len(all))
	for _, d := range all {
		if d.ID == excludeID || d.Status != types.DeploymentRunning {
			continue
		}
		running = append(running, d)
	}
	return running, nil
}

func (s *Scheduler) admitDirect(tx storage.Tx, cluster *types.Cluster, deployment *types.Deployment, logger zerolog.Logger) error {
	accountant.Debit(cluster, deployment)
	if err := tx.UpdateCluster(cluster); err != nil {
		return err
	}

	deployment.Status = types.DeploymentRunning
	deployment.UpdatedAt = time.Now()
	if err := tx.UpdateDeployment(deployment); err != nil {
		return err
	}

	logger.Info().Uint64("cluster_id", cluster.ID).Msg("deployment admitted")
	metrics.DeploymentsAdmittedTotal.WithLabelValues(clusterLabel(cluster.ID)).Inc()
	metrics.DeploymentAttempts.Observe(float64(deployment.Attempts + 1))
	s.publish(events.EventDeploymentAdmitted, deployment, "deployment admitted directly")
	return nil
}

// admitWithPreemption credits every victim, debits and admits the
// candidate, and enqueues each victim's follow-up job, all through tx: a
// crash partway through never leaves a victim credited without the
// candidate admitted, or vice versa, because every write here lands in the
// same Transact commit.
func (s *Scheduler) admitWithPreemption(tx storage.Tx, cluster *types.Cluster, deployment *types.Deployment, plan preemption.Plan, logger zerolog.Logger) error {
	for _, victim := range plan.Victims {
		accountant.Credit(cluster, victim)
		victim.Status = types.DeploymentPending
		victim.UpdatedAt = time.Now()
		if err := tx.UpdateDeployment(victim); err != nil {
			return err
		}
		if err := tx.EnqueueJob(&types.Job{ID: uuid.New().String(), DeploymentID: victim.ID}); err != nil {
			return err
		}
		logger.Info().Uint64("victim_id", victim.ID).Msg("deployment preempted")
		metrics.DeploymentsPreemptedTotal.WithLabelValues(clusterLabel(cluster.ID)).Inc()
		s.publish(events.EventDeploymentPreempted, victim, "preempted to admit a higher-priority deployment")
	}
	metrics.PreemptionPlanSize.Observe(float64(len(plan.Victims)))

	accountant.Debit(cluster, deployment)
	if err := tx.UpdateCluster(cluster); err != nil {
		return err
	}

	deployment.Status = types.DeploymentRunning
	deployment.UpdatedAt = time.Now()
	if err := tx.UpdateDeployment(deployment); err != nil {
		return err
	}

	logger.Info().Uint64("cluster_id", cluster.ID).Int("victims", len(plan.Victims)).Msg("deployment admitted via preemption")
	metrics.DeploymentsAdmittedTotal.WithLabelValues(clusterLabel(cluster.ID)).Inc()
	metrics.DeploymentAttempts.Observe(float64(deployment.Attempts + 1))
	s.publish(events.EventDeploymentAdmitted, deployment, "deployment admitted via preemption")
	return nil
}

// failOrRetry decides between re-enqueuing deployment with backoff and
// marking it FAILED: FAILED requires the retry budget to be exhausted AND
// no RUNNING deployment on its cluster that could ever be preempted for it
// on a later attempt.
func (s *Scheduler) failOrRetry(tx storage.Tx, deployment *types.Deployment, cluster *types.Cluster, logger zerolog.Logger, reason string) error {
	deployment.Attempts++

	if deployment.Attempts < s.maxAttempts {
		return s.requeue(tx, deployment, logger, reason, true)
	}

	running, err := s.runningOnCluster(cluster.ID, deployment.ID)
	if err != nil {
		return err
	}
	hasPreemptableVictim := false
	for _, d := range running {
		if d.Priority.Rank() < deployment.Priority.Rank() {
			hasPreemptableVictim = true
			break
		}
	}
	if hasPreemptableVictim {
		return s.requeue(tx, deployment, logger, reason, true)
	}

	return s.fail(tx, deployment, logger, reason)
}

// fail marks deployment FAILED unconditionally: either its retry budget is
// exhausted with nothing left to preempt, or a direct dependency can never
// complete.
func (s *Scheduler) fail(tx storage.Tx, deployment *types.Deployment, logger zerolog.Logger, reason string) error {
	deployment.Status = types.DeploymentFailed
	deployment.UpdatedAt = time.Now()
	if err := tx.UpdateDeployment(deployment); err != nil {
		return err
	}
	logger.Warn().Str("reason", reason).Int("attempts", deployment.Attempts).Msg("deployment failed")
	metrics.DeploymentsFailedTotal.Inc()
	metrics.DeploymentAttempts.Observe(float64(deployment.Attempts))
	s.publish(events.EventDeploymentFailed, deployment, reason)
	return nil
}

// requeue persists the (possibly attempt-incremented) deployment as still
// PENDING and enqueues a fresh process_deployment job for it, both through
// tx so the state flip and its follow-up job land in the same commit.
// withBackoff applies jittered exponential backoff keyed off Attempts; a
// plain "dependencies not satisfied" wait isn't counted against the retry
// budget, so its delay stays at the first backoff step.
func (s *Scheduler) requeue(tx storage.Tx, deployment *types.Deployment, logger zerolog.Logger, reason string, withBackoff bool) error {
	deployment.UpdatedAt = time.Now()
	if err := tx.UpdateDeployment(deployment); err != nil {
		return err
	}

	var notBefore time.Time
	if withBackoff {
		notBefore = time.Now().Add(s.backoffDelay(deployment.Attempts))
	}
	job := &types.Job{ID: uuid.New().String(), DeploymentID: deployment.ID, NotBefore: notBefore}
	if err := tx.EnqueueJob(job); err != nil {
		return err
	}
	metrics.JobsEnqueuedTotal.Inc()

	logger.Debug().Str("reason", reason).Bool("backoff", withBackoff).Msg("deployment re-enqueued, still pending")
	return nil
}

// backoffDelay computes a jittered exponential delay from the attempt
// count, capped at backoffCap. A standalone calculator is used here rather
// than a blocking retry loop, since re-enqueue must return immediately —
// the delay is stored as a job's NotBefore, not waited out in place.
func (s *Scheduler) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.backoffBase << uint(attempt-1) //nolint:gosec // attempt is bounded by maxAttempts
	if delay <= 0 || delay > s.backoffCap {
		delay = s.backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return delay/2 + jitter
}

func (s *Scheduler) publish(eventType events.EventType, deployment *types.Deployment, message string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		ID:           uuid.New().String(),
		Type:         eventType,
		DeploymentID: deployment.ID,
		ClusterID:    deployment.ClusterID,
		Message:      message,
	})
}

func clusterLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}
