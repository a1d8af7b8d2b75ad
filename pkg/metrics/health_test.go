package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealthChecker(t *testing.T) {
	t.Helper()
	prev := healthChecker
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
	t.Cleanup(func() { healthChecker = prev })
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("test-component", StateHealthy, "running")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["test-component"]
	assert.Equal(t, StateHealthy, comp.State)
	assert.Equal(t, "running", comp.Message)
}

func TestRegisterComponentOverwritesPriorState(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("test", StateHealthy, "ok")
	RegisterComponent("test", StateUnhealthy, "broke")

	comp := healthChecker.components["test"]
	assert.Equal(t, StateUnhealthy, comp.State)
	assert.Equal(t, "broke", comp.Message)
}

func TestGetHealthAllHealthy(t *testing.T) {
	resetHealthChecker(t)
	healthChecker.version = "1.0.0"

	RegisterComponent("api", StateHealthy, "")
	RegisterComponent("storage", StateHealthy, "")

	health := GetHealth()

	assert.Equal(t, string(StateHealthy), health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealthDegradedDoesNotOutrankUnhealthy(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("api", StateHealthy, "")
	RegisterComponent("queue", StateDegraded, "backlog high")
	RegisterComponent("storage", StateUnhealthy, "not connected")

	health := GetHealth()

	assert.Equal(t, string(StateUnhealthy), health.Status)
	assert.Equal(t, StateUnhealthy, health.Components["storage"].State)
	assert.Equal(t, StateDegraded, health.Components["queue"].State)
}

func TestGetHealthDegradedWithNoUnhealthyComponent(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("api", StateHealthy, "")
	RegisterComponent("queue", StateDegraded, "backlog high")

	health := GetHealth()

	assert.Equal(t, string(StateDegraded), health.Status)
}

func TestGetReadinessAllReady(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("storage", StateHealthy, "")
	RegisterComponent("queue", StateHealthy, "")
	RegisterComponent("api", StateHealthy, "")

	readiness := GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
}

func TestGetReadinessDegradedQueueStillReady(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("storage", StateHealthy, "")
	RegisterComponent("queue", StateDegraded, "600 jobs queued, exceeds threshold of 500")
	RegisterComponent("api", StateHealthy, "")

	readiness := GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
}

func TestGetReadinessMissingCriticalComponent(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("api", StateHealthy, "")
	// storage and queue not registered

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)
}

func TestGetReadinessCriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("storage", StateUnhealthy, "boltdb not opened")
	RegisterComponent("queue", StateHealthy, "")
	RegisterComponent("api", StateHealthy, "")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker(t)
	healthChecker.version = "test"

	RegisterComponent("test", StateHealthy, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, string(StateHealthy), health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("test", StateUnhealthy, "broken")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, string(StateUnhealthy), health.Status)
}

func TestReadyHandler(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("storage", StateHealthy, "")
	RegisterComponent("queue", StateHealthy, "")
	RegisterComponent("api", StateHealthy, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestReadyHandlerNotReady(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent("api", StateHealthy, "")
	// storage not registered

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	resetHealthChecker(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}
