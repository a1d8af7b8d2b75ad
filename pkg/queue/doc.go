// Package queue drives storage.Store's durable job queue with a pool of
// worker goroutines: each loop dequeues a lease, hands the deployment id to
// a Processor, and acks or nacks depending on the outcome. A background
// sweep reclaims expired leases and a slower reconciliation tick re-enqueues
// any PENDING deployment that has fallen out of the queue entirely (the
// crash window between committing a state change and enqueueing its
// follow-up job).
package queue
