/*
Package storage provides BoltDB-backed state persistence for the hypervisor's
control plane: clusters, deployments, the dependency edge relation between
deployments, and the durable job queue that drives deployments through
scheduling.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/hypervisor.db            │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  clusters          (Cluster ID, big-endian) │          │
	│  │  deployments       (Deployment ID)          │          │
	│  │  dependency_edges  (Dependent|Dependency ID)│          │
	│  │  jobs              (Job ID, uuid string)    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Row Locking (rowLocker)              │          │
	│  │  - striped sync.Mutex per "cluster:<id>" /  │          │
	│  │    "deployment:<id>" key                     │          │
	│  │  - Transact acquires clusters then            │          │
	│  │    deployments, both id-sorted ascending,    │          │
	│  │    then runs the closure inside one           │          │
	│  │    db.Update call                             │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Why a lock layer on top of BoltDB

BoltDB already serializes all writers through a single db.Update() mutex, so
two transactions can never interleave — but that alone only protects a
single call to Update. A multi-step operation (credit a preemption victim,
debit the incoming deployment, admit it, fan out follow-up jobs) needs every
one of those writes to land in the *same* Update call, or a crash between
two of them leaves the store in a state the rest of the code never expects
(a victim PENDING with its resources never credited back, say). Transact
gives both pieces at once: the rowLocker enforces a fixed
cluster-before-deployment lock order so two such operations touching the
same rows can never interleave their reads and writes, and the single
db.Update wrapping the whole closure means the operation's writes commit or
don't commit as one unit — a crash mid-closure leaves the prior committed
state untouched, never a partially-applied one.

# Job queue semantics

Jobs move QUEUED -> LEASED (DequeueJob) -> deleted (AckJob) or back to
QUEUED (NackJob, ReapExpiredLeases). DequeueJob always returns the oldest
eligible job (by EnqueuedAt) whose NotBefore has passed, giving FIFO-within-
eligibility rather than arbitrary bucket iteration order. ReapExpiredLeases
is meant to run from a ticker alongside the worker pool so a crashed worker's
lease is eventually reclaimed without operator intervention.

See pkg/queue for the worker pool built on top of this interface, and
pkg/scheduler for the state machine each leased job drives forward.
*/
package storage
