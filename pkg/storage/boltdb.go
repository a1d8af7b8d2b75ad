package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketClusters    = []byte("clusters")
	bucketDeployments = []byte("deployments")
	bucketDepEdges    = []byte("dependency_edges")
	bucketJobs        = []byte("jobs")
)

const defaultLeaseDuration = 30 * time.Second

// BoltStore implements Store using a single BoltDB file. Multi-step
// mutations run through Transact, which acquires every row lock before
// opening the BoltDB write transaction and runs the whole closure inside it;
// BoltDB itself only guarantees one writer at a time; the rowLocker layered
// on top gives the cluster-then-deployment lock ordering independent of
// that, and the shared db.Update call gives the closure's writes all-or-
// nothing commit.
type BoltStore struct {
	db            *bolt.DB
	locks         *rowLocker
	leaseDuration time.Duration
}

// NewBoltStore creates a new BoltDB-backed store rooted at dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "hypervisor.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketClusters, bucketDeployments, bucketDepEdges, bucketJobs}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:            db,
		locks:         newRowLocker(),
		leaseDuration: defaultLeaseDuration,
	}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// --- Clusters ---

func putClusterTx(tx *bolt.Tx, cluster *types.Cluster) error {
	b := tx.Bucket(bucketClusters)
	data, err := json.Marshal(cluster)
	if err != nil {
		return err
	}
	return b.Put(idKey(cluster.ID), data)
}

func getClusterTx(tx *bolt.Tx, id uint64) (*types.Cluster, error) {
	b := tx.Bucket(bucketClusters)
	data := b.Get(idKey(id))
	if data == nil {
		return nil, &hypervisor.NotFound{Kind: "cluster", ID: id}
	}
	var cluster types.Cluster
	if err := json.Unmarshal(data, &cluster); err != nil {
		return nil, err
	}
	return &cluster, nil
}

func (s *BoltStore) CreateCluster(cluster *types.Cluster) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putClusterTx(tx, cluster)
	})
}

func (s *BoltStore) GetCluster(id uint64) (*types.Cluster, error) {
	var cluster *types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		cluster, err = getClusterTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cluster, nil
}

func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		return b.ForEach(func(k, v []byte) error {
			var cluster types.Cluster
			if err := json.Unmarshal(v, &cluster); err != nil {
				return err
			}
			clusters = append(clusters, &cluster)
			return nil
		})
	})
	return clusters, err
}

func (s *BoltStore) UpdateCluster(cluster *types.Cluster) error {
	return s.CreateCluster(cluster)
}

func (s *BoltStore) DeleteCluster(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).Delete(idKey(id))
	})
}

// --- Deployments ---

func putDeploymentTx(tx *bolt.Tx, deployment *types.Deployment) error {
	b := tx.Bucket(bucketDeployments)
	data, err := json.Marshal(deployment)
	if err != nil {
		return err
	}
	return b.Put(idKey(deployment.ID), data)
}

func getDeploymentTx(tx *bolt.Tx, id uint64) (*types.Deployment, error) {
	b := tx.Bucket(bucketDeployments)
	data := b.Get(idKey(id))
	if data == nil {
		return nil, &hypervisor.NotFound{Kind: "deployment", ID: id}
	}
	var deployment types.Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

func (s *BoltStore) CreateDeployment(deployment *types.Deployment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putDeploymentTx(tx, deployment)
	})
}

func (s *BoltStore) GetDeployment(id uint64) (*types.Deployment, error) {
	var deployment *types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		deployment, err = getDeploymentTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deployment, nil
}

func (s *BoltStore) ListDeployments() ([]*types.Deployment, error) {
	var deployments []*types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployments)
		return b.ForEach(func(k, v []byte) error {
			var deployment types.Deployment
			if err := json.Unmarshal(v, &deployment); err != nil {
				return err
			}
			deployments = append(deployments, &deployment)
			return nil
		})
	})
	return deployments, err
}

func (s *BoltStore) ListDeploymentsByCluster(clusterID uint64) ([]*types.Deployment, error) {
	all, err := s.ListDeployments()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Deployment
	for _, d := range all {
		if d.ClusterID == clusterID {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (s *BoltStore) ListDeploymentsByStatus(status types.DeploymentStatus) ([]*types.Deployment, error) {
	all, err := s.ListDeployments()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Deployment
	for _, d := range all {
		if d.Status == status {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateDeployment(deployment *types.Deployment) error {
	return s.CreateDeployment(deployment)
}

func (s *BoltStore) DeleteDeployment(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).Delete(idKey(id))
	})
}

// --- Dependency edges ---

func edgeKey(edge types.DependencyEdge) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], edge.DependentID)
	binary.BigEndian.PutUint64(buf[8:], edge.DependencyID)
	return buf
}

func (s *BoltStore) AddDependencyEdge(edge types.DependencyEdge) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDepEdges)
		data, err := json.Marshal(edge)
		if err != nil {
			return err
		}
		return b.Put(edgeKey(edge), data)
	})
}

func (s *BoltStore) RemoveDependencyEdge(edge types.DependencyEdge) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDepEdges).Delete(edgeKey(edge))
	})
}

func (s *BoltStore) ListDependencyEdges() ([]types.DependencyEdge, error) {
	var edges []types.DependencyEdge
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDepEdges)
		return b.ForEach(func(k, v []byte) error {
			var edge types.DependencyEdge
			if err := json.Unmarshal(v, &edge); err != nil {
				return err
			}
			edges = append(edges, edge)
			return nil
		})
	})
	return edges, err
}

func (s *BoltStore) ListDependenciesOf(deploymentID uint64) ([]uint64, error) {
	edges, err := s.ListDependencyEdges()
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, e := range edges {
		if e.DependentID == deploymentID {
			ids = append(ids, e.DependencyID)
		}
	}
	return ids, nil
}

func (s *BoltStore) ListDependentsOf(deploymentID uint64) ([]uint64, error) {
	edges, err := s.ListDependencyEdges()
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, e := range edges {
		if e.DependencyID == deploymentID {
			ids = append(ids, e.DependentID)
		}
	}
	return ids, nil
}

// --- Job queue ---

func enqueueJobTx(tx *bolt.Tx, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	job.State = types.JobQueued
	b := tx.Bucket(bucketJobs)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return b.Put([]byte(job.ID), data)
}

func (s *BoltStore) EnqueueJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return enqueueJobTx(tx, job)
	})
}

// DequeueJob leases the oldest eligible QUEUED job (NotBefore <= now) and
// returns it, or (nil, nil) if none are eligible.
func (s *BoltStore) DequeueJob() (*types.Job, error) {
	var leased *types.Job
	now := time.Now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		var candidate *types.Job

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.State != types.JobQueued {
				continue
			}
			if job.NotBefore.After(now) {
				continue
			}
			if candidate == nil || job.EnqueuedAt.Before(candidate.EnqueuedAt) {
				j := job
				candidate = &j
			}
		}

		if candidate == nil {
			return nil
		}

		candidate.State = types.JobLeased
		candidate.LeaseExpiresAt = now.Add(s.leaseDuration)
		data, err := json.Marshal(candidate)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(candidate.ID), data); err != nil {
			return err
		}
		leased = candidate
		return nil
	})

	return leased, err
}

func (s *BoltStore) AckJob(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete([]byte(id))
	})
}

func (s *BoltStore) NackJob(id string, notBefore time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			return &hypervisor.NotFound{Kind: "job", ID: id}
		}
		var job types.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		job.State = types.JobQueued
		job.NotBefore = notBefore
		job.LeaseExpiresAt = time.Time{}
		out, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

// ReapExpiredLeases returns any LEASED job whose lease expired without an
// ack back to QUEUED, eligible immediately. Intended to run from a periodic
// sweep alongside the worker pool (pkg/queue.Pool's reaper ticker), so a
// crashed or hung worker's lease is eventually reclaimed.
func (s *BoltStore) ReapExpiredLeases(now time.Time) (int, error) {
	reaped := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.State != types.JobLeased {
				continue
			}
			if job.LeaseExpiresAt.After(now) {
				continue
			}
			job.State = types.JobQueued
			job.NotBefore = now
			job.LeaseExpiresAt = time.Time{}
			data, err := json.Marshal(job)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			reaped++
		}
		return nil
	})
	return reaped, err
}

func (s *BoltStore) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

// --- Row locking ---

// rowLocker hands out per-row mutexes keyed by a "cluster:<id>" or
// "deployment:<id>" string, created lazily and kept for the process
// lifetime (clusters/deployments are not expected to number in the
// millions within one hypervisor instance).
type rowLocker struct {
	mu    sync.Mutex
	rows  map[string]*sync.Mutex
}

func newRowLocker() *rowLocker {
	return &rowLocker{rows: make(map[string]*sync.Mutex)}
}

func (l *rowLocker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.rows[key]
	if !ok {
		m = &sync.Mutex{}
		l.rows[key] = m
	}
	return m
}

// Transact acquires exclusive locks on clusterIDs then deploymentIDs, each
// group sorted ascending to give a total order across concurrent callers
// regardless of the order they name rows in, then runs fn inside a single
// db.Update call. Every write fn makes through tx lands in that one BoltDB
// write transaction, so they commit together or — on a returned error, or a
// crash before Update's internal commit — not at all; the row locks alone
// only prevented two callers' reads and writes from interleaving, they never
// gave multi-step mutations crash atomicity on their own. Locks release in
// reverse acquisition order once fn (and the commit) returns.
func (s *BoltStore) Transact(clusterIDs, deploymentIDs []uint64, fn func(tx Tx) error) error {
	clusterIDs = append([]uint64(nil), clusterIDs...)
	deploymentIDs = append([]uint64(nil), deploymentIDs...)
	sort.Slice(clusterIDs, func(i, j int) bool { return clusterIDs[i] < clusterIDs[j] })
	sort.Slice(deploymentIDs, func(i, j int) bool { return deploymentIDs[i] < deploymentIDs[j] })

	var locked []*sync.Mutex
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}()

	for _, id := range clusterIDs {
		m := s.locks.get(fmt.Sprintf("cluster:%d", id))
		m.Lock()
		locked = append(locked, m)
	}
	for _, id := range deploymentIDs {
		m := s.locks.get(fmt.Sprintf("deployment:%d", id))
		m.Lock()
		locked = append(locked, m)
	}

	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// boltTx implements Tx against one in-flight bbolt write transaction, so
// every call made through it participates in that transaction's single
// commit.
type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) GetCluster(id uint64) (*types.Cluster, error) {
	return getClusterTx(t.tx, id)
}

func (t *boltTx) UpdateCluster(cluster *types.Cluster) error {
	return putClusterTx(t.tx, cluster)
}

func (t *boltTx) GetDeployment(id uint64) (*types.Deployment, error) {
	return getDeploymentTx(t.tx, id)
}

func (t *boltTx) UpdateDeployment(deployment *types.Deployment) error {
	return putDeploymentTx(t.tx, deployment)
}

func (t *boltTx) EnqueueJob(job *types.Job) error {
	return enqueueJobTx(t.tx, job)
}
