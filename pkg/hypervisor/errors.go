// Package hypervisor holds the cross-cutting error types, authorization
// rules, and deployment-creation validation shared by the scheduler, queue,
// and API layers.
package hypervisor

import "fmt"

// ValidationError means the caller supplied a deployment or cluster that
// fails the creation-time invariants. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// CyclicDependency means inserting an edge would create a cycle in the
// dependency DAG. It is never retried.
type CyclicDependency struct {
	DependentID  uint64
	DependencyID uint64
}

func (e *CyclicDependency) Error() string {
	return fmt.Sprintf("dependency edge %d -> %d would create a cycle", e.DependentID, e.DependencyID)
}

// NotFound means the named entity does not exist. It is never retried.
type NotFound struct {
	Kind string
	ID   interface{}
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Kind, e.ID)
}

// TransientStoreError wraps an underlying storage failure (disk I/O,
// lock contention timeout) that is safe to retry. Callers that see this
// error should Nack the job rather than fail the deployment outright.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}
