package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/warden/internal/supervisor"
)

type fakePool struct {
	status supervisor.PoolStatus
}

func (f *fakePool) Snapshot() supervisor.PoolStatus {
	return f.status
}

func newTestHandler(status supervisor.PoolStatus) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStatusHandler(&fakePool{status: status}, logger).Router()
}

func TestStatusHandler_Health(t *testing.T) {
	t.Parallel()

	router := newTestHandler(supervisor.PoolStatus{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatusHandler_Status(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	router := newTestHandler(supervisor.PoolStatus{
		BindAddr:  "0.0.0.0:8000",
		PoolSize:  17,
		StartedAt: started,
		Restarts:  3,
		Workers: []supervisor.WorkerStatus{
			{PID: 4321, StartedAt: started, MaxRequests: 512},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status supervisor.PoolStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "0.0.0.0:8000", status.BindAddr)
	assert.Equal(t, 17, status.PoolSize)
	assert.Equal(t, 3, status.Restarts)
	require.Len(t, status.Workers, 1)
	assert.Equal(t, 4321, status.Workers[0].PID)
	assert.Equal(t, 512, status.Workers[0].MaxRequests)
}

func TestStatusHandler_UnknownRoute(t *testing.T) {
	t.Parallel()

	router := newTestHandler(supervisor.PoolStatus{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
