package hypervisor

import "github.com/RajatKothariN1NN/Hypervisor/pkg/types"

// ValidateDeployment enforces the creation-time invariants on a deployment
// before it reaches the store: RAM and CPU must be strictly positive, GPU
// may be zero but not negative, and Priority defaults to MEDIUM when unset.
func ValidateDeployment(d *types.Deployment) error {
	if d.Priority == "" {
		d.Priority = types.PriorityMedium
	}
	if !d.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be LOW, MEDIUM, or HIGH"}
	}
	if d.RequiredRAM <= 0 {
		return &ValidationError{Field: "required_ram", Reason: "must be strictly positive"}
	}
	if d.RequiredCPU <= 0 {
		return &ValidationError{Field: "required_cpu", Reason: "must be strictly positive"}
	}
	if d.RequiredGPU < 0 {
		return &ValidationError{Field: "required_gpu", Reason: "must not be negative"}
	}
	if d.DockerImagePath == "" {
		return &ValidationError{Field: "docker_image_path", Reason: "must not be empty"}
	}
	return nil
}

// ValidateCluster enforces the creation-time invariants on a cluster: total
// capacity must be non-negative in every resource dimension.
func ValidateCluster(c *types.Cluster) error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if c.TotalRAM < 0 || c.TotalCPU < 0 || c.TotalGPU < 0 {
		return &ValidationError{Field: "total_capacity", Reason: "must not be negative"}
	}
	return nil
}
