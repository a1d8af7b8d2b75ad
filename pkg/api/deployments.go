package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/hypervisor"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/types"
	"github.com/gorilla/mux"
)

type createDeploymentRequest struct {
	DockerImagePath string         `json:"docker_image_path"`
	RequiredRAM     int64          `json:"required_ram"`
	RequiredCPU     int64          `json:"required_cpu"`
	RequiredGPU     int64          `json:"required_gpu"`
	Priority        types.Priority `json:"priority,omitempty"`
	ClusterID       uint64         `json:"cluster"`
	CreatedBy       uint64         `json:"created_by,omitempty"`
}

// createDeployment handles POST /deployments: validates the body, inserts a
// PENDING row, and enqueues the first process_deployment job for it.
func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionCreateDeployment) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	deployment := &types.Deployment{
		DockerImagePath: req.DockerImagePath,
		RequiredRAM:     req.RequiredRAM,
		RequiredCPU:     req.RequiredCPU,
		RequiredGPU:     req.RequiredGPU,
		Priority:        req.Priority,
		ClusterID:       req.ClusterID,
		CreatedBy:       req.CreatedBy,
		Status:          types.DeploymentPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := hypervisor.ValidateDeployment(deployment); err != nil {
		writeValidationError(w, err)
		return
	}
	if _, err := s.store.GetCluster(deployment.ClusterID); err != nil {
		if _, ok := err.(*hypervisor.NotFound); ok {
			writeValidationError(w, &hypervisor.ValidationError{
				Field:  "cluster",
				Reason: fmt.Sprintf("cluster %d does not exist", deployment.ClusterID),
			})
			return
		}
		writeStoreError(w, err)
		return
	}

	deployment.ID = nextID()
	if err := s.store.CreateDeployment(deployment); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.EnqueueJob(&types.Job{DeploymentID: deployment.ID}); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, deployment)
}

// getDeployment handles GET /deployments/{id}.
func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionViewDeployment) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deployment, err := s.store.GetDeployment(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployment)
}

type addDependencyRequest struct {
	DependsOn uint64 `json:"depends_on"`
}

// addDependency handles POST /deployments/{id}/dependencies.
func (s *Server) addDependency(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionCreateDeployment) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := s.store.GetDeployment(id); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.store.GetDeployment(req.DependsOn); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.resolver.AddEdge(id, req.DependsOn); err != nil {
		if _, ok := err.(*hypervisor.CyclicDependency); ok {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, types.DependencyEdge{DependentID: id, DependencyID: req.DependsOn})
}

// completeDeployment handles POST /deployments/{id}/complete: the webhook
// the original system never had, transitioning a RUNNING deployment to
// COMPLETED, crediting its cluster, and fanning out to direct dependents.
func (s *Server) completeDeployment(w http.ResponseWriter, r *http.Request) {
	if !hypervisor.Authorize(roleFromRequest(r), hypervisor.ActionCompleteWebhook) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	seed, err := s.store.GetDeployment(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var result error
	txErr := s.store.Transact([]uint64{seed.ClusterID}, []uint64{id}, func(tx storage.Tx) error {
		// Re-read under lock: seed may be stale by the time the lock lands.
		deployment, err := tx.GetDeployment(id)
		if err != nil {
			return err
		}
		if deployment.Status != types.DeploymentRunning {
			result = errNotRunning
			return nil
		}

		cluster, err := tx.GetCluster(deployment.ClusterID)
		if err != nil {
			return err
		}
		creditCluster(cluster, deployment)
		if err := tx.UpdateCluster(cluster); err != nil {
			return err
		}

		deployment.Status = types.DeploymentCompleted
		deployment.UpdatedAt = time.Now()
		if err := tx.UpdateDeployment(deployment); err != nil {
			return err
		}

		// DirectDependents reads the edge relation as it stood when this
		// Transact call started, which is fine here: a dependency edge
		// added concurrently on a still-RUNNING deployment will be picked
		// up whenever that dependent's own admission attempt runs.
		dependents, err := s.resolver.DirectDependents(deployment.ID)
		if err != nil {
			return err
		}
		for _, depID := range dependents {
			if err := tx.EnqueueJob(&types.Job{DeploymentID: depID}); err != nil {
				return err
			}
		}
		return nil
	})

	if txErr != nil {
		writeStoreError(w, txErr)
		return
	}
	if result == errNotRunning {
		writeError(w, http.StatusConflict, "deployment is not RUNNING")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)[name], 10, 64)
}
