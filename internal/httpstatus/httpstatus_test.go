package httpstatus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/eagerclean/pkg/cleanup"
	"github.com/flowforge/eagerclean/pkg/cleanup/cleanuptest"
	"github.com/flowforge/eagerclean/pkg/models"
)

func newTestEngine(t *testing.T) *cleanup.CleanupEngine {
	t.Helper()
	engine := cleanup.NewCleanupEngine(
		cleanuptest.NewRecordingDeleter(),
		cleanuptest.NewRecordingCache(),
		cleanuptest.NewRecordingLogger(),
	)
	engine.WorkflowBegin(&models.SimpleDAG{
		VertexList: []models.Vertex{{Name: "A", Kind: models.VertexProcess, Config: &models.ProcessConfig{Name: "A"}}},
	})
	require.NoError(t, engine.TaskPending(&models.SimpleTask{TaskID: "t1", TaskHash: "h1", ProcessName: "A", TaskWorkDir: "/work/t1"}))
	return engine
}

func TestHealthz(t *testing.T) {
	router := NewRouter(newTestEngine(t))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReportEndpoint(t *testing.T) {
	router := NewRouter(newTestEngine(t))
	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report cleanup.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Processes)
	assert.Equal(t, 1, report.Tasks)
}

func TestTaskEndpointFound(t *testing.T) {
	router := NewRouter(newTestEngine(t))
	req := httptest.NewRequest(http.MethodGet, "/tasks/t1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap cleanup.TaskSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "t1", snap.ID)
	assert.Equal(t, "A", snap.Process)
}

func TestTaskEndpointNotFound(t *testing.T) {
	router := NewRouter(newTestEngine(t))
	req := httptest.NewRequest(http.MethodGet, "/tasks/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessesEndpoint(t *testing.T) {
	router := NewRouter(newTestEngine(t))
	req := httptest.NewRequest(http.MethodGet, "/processes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var procs []cleanup.ProcessSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &procs))
	require.Len(t, procs, 1)
	assert.Equal(t, "A", procs[0].Name)
}
