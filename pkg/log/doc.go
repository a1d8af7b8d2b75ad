// Package log wraps zerolog with the component/id-scoped child loggers used
// across the hypervisor: WithComponent, WithClusterID, WithDeploymentID,
// WithJobID. Call Init once at process startup before anything logs.
package log
