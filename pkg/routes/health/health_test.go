package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping() error {
	return f.err
}

type fakeConsumer struct {
	healthy bool
}

func (f *fakeConsumer) Health() bool {
	return f.healthy
}

func doRequest(t *testing.T, handler echo.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name           string
		db             Pinger
		consumer       Alive
		expectedCode   int
		expectedStatus string
	}{
		{
			name:           "all healthy",
			db:             &fakePinger{},
			consumer:       &fakeConsumer{healthy: true},
			expectedCode:   http.StatusOK,
			expectedStatus: "healthy",
		},
		{
			name:           "database down",
			db:             &fakePinger{err: errors.New("connection refused")},
			consumer:       &fakeConsumer{healthy: true},
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: "unhealthy",
		},
		{
			name:           "consumer stopped",
			db:             &fakePinger{},
			consumer:       &fakeConsumer{healthy: false},
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: "unhealthy",
		},
		{
			name:           "no consumer configured is fine",
			db:             &fakePinger{},
			consumer:       nil,
			expectedCode:   http.StatusOK,
			expectedStatus: "healthy",
		},
		{
			name:           "no database configured",
			db:             nil,
			consumer:       nil,
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(tt.db, tt.consumer, "test")
			rec := doRequest(t, checker.Health, "/api/v1/health")

			assert.Equal(t, tt.expectedCode, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.expectedStatus, status.Status)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestReady(t *testing.T) {
	checker := NewChecker(&fakePinger{}, nil, "test")

	rec := doRequest(t, checker.Ready, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetReady(true)
	rec = doRequest(t, checker.Ready, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLive(t *testing.T) {
	checker := NewChecker(nil, nil, "test")
	rec := doRequest(t, checker.Live, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}
