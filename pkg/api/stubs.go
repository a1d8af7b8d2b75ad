package api

import "net/http"

// registerStubs answers the routes this module names but does not own:
// account/org/invite management belongs to the authentication collaborator
// that issues the X-Role header consumed by roleFromRequest, not to the
// scheduler control plane.
func (s *Server) registerStubs() {
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotImplemented, "owned by the authentication service, not the hypervisor")
	})

	s.router.Handle("/auth/login", stub).Methods(http.MethodPost)
	s.router.Handle("/orgs", stub).Methods(http.MethodPost, http.MethodGet)
	s.router.Handle("/orgs/{id}/invites", stub).Methods(http.MethodPost)
}
