// Package scheduler implements the Scheduler Worker: the state machine that
// turns a process_deployment(deployment_id) job into a PENDING -> RUNNING
// (or PENDING -> FAILED) transition. Every decision runs inside a single
// storage.Store.Transact call over the cluster's then the deployment's row
// lock, so concurrent workers never race the same cluster's capacity ledger
// and every write the decision makes commits as one BoltDB transaction.
package scheduler
