package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duewatch/internal/metrics"
	"duewatch/internal/queue"
)

type fakeEngine struct {
	stats  metrics.Stats
	health metrics.Health
	alerts []metrics.Alert
}

func (f *fakeEngine) Stats(ctx context.Context) metrics.Stats        { return f.stats }
func (f *fakeEngine) HealthCheck(ctx context.Context) metrics.Health { return f.health }
func (f *fakeEngine) Recent() []metrics.Alert                        { return f.alerts }

type fakeForcer struct {
	ids []string
	err error
	got string
}

func (f *fakeForcer) Force(ctx context.Context, which string) ([]string, error) {
	f.got = which
	return f.ids, f.err
}

func newRouter(e Engine, f Forcer) http.Handler {
	ops := &OpsHandler{Engine: e, Forcer: f}
	r := chi.NewRouter()
	r.Get("/health", ops.Health)
	r.Get("/stats", ops.Stats)
	r.Get("/alerts", ops.Alerts)
	r.Post("/force/{policy}", ops.Force)
	return r
}

func TestHealthEndpoint(t *testing.T) {
	e := &fakeEngine{health: metrics.Health{Status: "healthy", Checks: map[string]bool{"initialized": true}}}
	srv := newRouter(e, &fakeForcer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	e.health.Status = "degraded"
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	e := &fakeEngine{stats: metrics.Stats{
		Snapshot: metrics.Snapshot{JobsCompleted: 12},
		Queues:   map[string]queue.Counts{"scans": {Waiting: 3}},
	}}
	srv := newRouter(e, &fakeForcer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got metrics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(12), got.JobsCompleted)
	assert.Equal(t, int64(3), got.Queues["scans"].Waiting)
}

func TestForceEndpoint(t *testing.T) {
	f := &fakeForcer{ids: []string{"force:scan-corporate:abc"}}
	srv := newRouter(&fakeEngine{}, f)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/force/corporate", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "corporate", f.got)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, f.ids, body["job_ids"])
}

func TestForceEndpointRejectsUnknownPolicy(t *testing.T) {
	f := &fakeForcer{err: errors.New(`unknown policy "weekly"`)}
	srv := newRouter(&fakeEngine{}, f)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/force/weekly", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsEndpointEmptyIsArray(t *testing.T) {
	srv := newRouter(&fakeEngine{}, &fakeForcer{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts":[]}`, rec.Body.String())
}
