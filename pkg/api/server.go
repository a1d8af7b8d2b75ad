package api

import (
	"context"
	"net/http"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/depgraph"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/log"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server is the HTTP surface over a storage.Store and a depgraph.Resolver.
type Server struct {
	store    storage.Store
	resolver *depgraph.Resolver
	logger   zerolog.Logger
	router   *mux.Router
	limiter  *rateLimiter
	httpSrv  *http.Server
}

// NewServer builds the router and registers every route.
func NewServer(store storage.Store, resolver *depgraph.Resolver) *Server {
	s := &Server{
		store:    store,
		resolver: resolver,
		logger:   log.WithComponent("api"),
		router:   mux.NewRouter(),
		limiter:  newRateLimiter(defaultRateLimitPerSecond, defaultRateLimitBurst),
	}
	s.routes()
	return s
}

// WithRateLimit overrides the per-client-address token bucket (default 50
// req/s, burst 100).
func (s *Server) WithRateLimit(requestsPerSecond float64, burst int) *Server {
	s.limiter = newRateLimiter(requestsPerSecond, burst)
	return s
}

// Handler returns the server's http.Handler, e.g. to embed in an
// http.Server or a test httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server on addr, blocking until it stops.
// A concurrent call to Shutdown causes it to return http.ErrServerClosed.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server started by ListenAndServe. It is a
// no-op if ListenAndServe was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(s.instrument)
	s.router.Use(s.rateLimit)

	s.router.HandleFunc("/deployments", s.createDeployment).Methods(http.MethodPost)
	s.router.HandleFunc("/deployments/{id}", s.getDeployment).Methods(http.MethodGet)
	s.router.HandleFunc("/deployments/{id}/dependencies", s.addDependency).Methods(http.MethodPost)
	s.router.HandleFunc("/deployments/{id}/complete", s.completeDeployment).Methods(http.MethodPost)

	s.router.HandleFunc("/clusters", s.createCluster).Methods(http.MethodPost)
	s.router.HandleFunc("/clusters", s.listClusters).Methods(http.MethodGet)
	s.router.HandleFunc("/clusters/{id}", s.getCluster).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.registerStubs()
}

// instrument wraps every handler with request-count and latency metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := routeTemplate(r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
		metrics.APIRequestsTotal.WithLabelValues(route, statusClass(sw.status)).Inc()
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// roleFromRequest reads the caller's role from the X-Role header, standing
// in for the authentication collaborator this module doesn't own. An
// absent or unrecognized header is treated as RoleViewer, the least
// privileged role.
func roleFromRequest(r *http.Request) hypervisor.Role {
	switch hypervisor.Role(r.Header.Get("X-Role")) {
	case hypervisor.RoleAdmin:
		return hypervisor.RoleAdmin
	case hypervisor.RoleDeveloper:
		return hypervisor.RoleDeveloper
	default:
		return hypervisor.RoleViewer
	}
}

