package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
)

type createClusterRequest struct {
	Name      string `json:"name"`
	TotalRAM  int64  `json:"total_ram"`
	TotalCPU  int64  `json:"total_cpu"`
	TotalGPU  int64  `json:"total_gpu"`
	CreatedBy uint64 `json:"created_by,omitempty"`
}

// createCluster handles POST /clusters. Admin-only: clusters are shared
// capacity pools, so only an admin may declare a new one.
func (s *Server) createCluster(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionCreateCluster) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cluster := &types.Cluster{
		Name:      req.Name,
		TotalRAM:  req.TotalRAM,
		TotalCPU:  req.TotalCPU,
		TotalGPU:  req.TotalGPU,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now(),
	}

	if err := hypervisor.ValidateCluster(cluster); err != nil {
		writeValidationError(w, err)
		return
	}

	cluster.ID = nextID()
	if err := s.store.CreateCluster(cluster); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, cluster)
}

// listClusters handles GET /clusters.
func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionViewCluster) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	clusters, err := s.store.ListClusters()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

// getCluster handles GET /clusters/{id}.
func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionViewCluster) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	cluster, err := s.store.GetCluster(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}
