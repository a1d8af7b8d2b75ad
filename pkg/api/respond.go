package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/accountant"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
)

var errNotRunning = errors.New("deployment is not RUNNING")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError always answers 400: a ValidationError is a caller
// mistake, never a server condition.
func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err.Error())
}

// writeStoreError maps the store's typed errors to HTTP status codes,
// falling back to 500 for anything unrecognized.
func writeStoreError(w http.ResponseWriter, err error) {
	var notFound *hypervisor.NotFound
	var validation *hypervisor.ValidationError
	var cyclic *hypervisor.CyclicDependency

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cyclic):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// creditCluster releases deployment's resources back to cluster on
// completion. Only called while holding the cluster's row lock.
func creditCluster(cluster *types.Cluster, deployment *types.Deployment) {
	accountant.Credit(cluster, deployment)
}
