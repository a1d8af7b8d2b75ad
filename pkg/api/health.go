package api

import (
	"net/http"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
)

// healthz is a bare liveness probe: if this handler runs at all, the
// process is up. Component-level detail lives at /health.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	metrics.LivenessHandler()(w, r)
}

// readyz checks that the store this server depends on is actually
// reachable and records the result in the shared component registry. Its
// response depends only on that one check, not on whatever else has
// registered components process-wide, so readiness here always reflects
// the storage dependency this handler itself can observe.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.ListClusters()
	if err != nil {
		metrics.RegisterComponent("storage", metrics.StateUnhealthy, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "store unreachable",
		})
		return
	}
	metrics.RegisterComponent("storage", metrics.StateHealthy, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// health exposes the full component breakdown tracked by the metrics
// package's registry, populated by cmd/hypervisord at startup.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	metrics.HealthHandler()(w, r)
}
