// Package api exposes the hypervisor's HTTP surface over gorilla/mux:
// deployment and cluster CRUD, the completion webhook, and the ambient
// health/readiness/metrics routes. Role enforcement on mutating routes is
// a single header read (X-Role) mapped through hypervisor.Authorize — full
// authentication is out of scope and left to the collaborator that issues
// that header.
package api
