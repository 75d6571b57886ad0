package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/scheduler"
	testingpkg "github.com/aristath/assetflow/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

type fixedCounts map[string]int64

func (c fixedCounts) Count(context.Context) (map[string]int64, error) { return c, nil }

type stubJob struct {
	scheduler.JobBase
	err error
}

func (j *stubJob) Name() string { return "stub" }
func (j *stubJob) Run() error   { return j.err }

func newTestServer(t *testing.T, jobErr error) (*Server, map[string]*database.DB) {
	t.Helper()
	portfolio, cleanupP := testingpkg.NewTestDB(t, database.NamePortfolio)
	t.Cleanup(cleanupP)
	history, cleanupH := testingpkg.NewTestDB(t, database.NameHistory)
	t.Cleanup(cleanupH)

	dbs := map[string]*database.DB{
		database.NamePortfolio: portfolio,
		database.NameHistory:   history,
	}

	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("@daily", &stubJob{err: jobErr}))

	srv := New(Config{
		Log:        zerolog.Nop(),
		Port:       0,
		DevMode:    true,
		Databases:  dbs,
		Scheduler:  sched,
		Hub:        events.NewHub(zerolog.Nop()),
		Handlers:   []RouteRegistrar{pingHandler{}},
		ClientData: fixedCounts{"quotes": 4, "exchangerate": 1},
	})
	srv.systemHandlers.systemStats = func() (float64, float64) { return 12.5, 40 }
	return srv, dbs
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, dbs := newTestServer(t, nil)

	rec := do(srv, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, "ok", resp.Databases[database.NamePortfolio])

	require.NoError(t, dbs[database.NameHistory].Close())
	rec = do(srv, "GET", "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp = HealthResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.NotEqual(t, "ok", resp.Databases[database.NameHistory])
}

func TestHandleJobs(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, "POST", "/api/system/jobs/stub/run")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(srv, "GET", "/api/system/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []scheduler.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "stub", jobs[0].Name)
	assert.False(t, jobs[0].LastRun.IsZero())

	rec = do(srv, "POST", "/api/system/jobs/nope/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunJob_Failure(t *testing.T) {
	srv, _ := newTestServer(t, errors.New("provider down"))

	rec := do(srv, "POST", "/api/system/jobs/stub/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider down")
}

func TestHandleDatabaseStats(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, "GET", "/api/system/database/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Databases, 2)
	assert.Equal(t, database.NameHistory, resp.Databases[0].Name)
	assert.Positive(t, resp.Databases[0].PageCount)
	assert.Equal(t, map[string]int64{"quotes": 4, "exchangerate": 1}, resp.CacheEntries)
}

func TestModuleRoutesMountedUnderAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusNoContent, do(srv, "GET", "/api/ping").Code)
	assert.Equal(t, http.StatusNotFound, do(srv, "GET", "/ping").Code)
	assert.NotEqual(t, http.StatusNotFound, do(srv, "GET", "/api/events/ws").Code)
}
