package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdillenkofer/blobshift/internal/storage/database"
	sqliteDatabase "github.com/jdillenkofer/blobshift/internal/storage/database/sqlite"
	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func get(t *testing.T, handler http.Handler, path string) (int, string) {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(recorder.Result().Body)
	assert.Nil(t, err)
	return recorder.Code, string(body)
}

func TestMonitoringServer(t *testing.T) {
	testutils.SkipIfIntegration(t)
	db, err := sqliteDatabase.OpenDatabase(filepath.Join(t.TempDir(), "blobshift.db"))
	assert.Nil(t, err)

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "blobshift_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	handler := SetupMonitoringServer([]database.Database{db}, registry)

	code, body := get(t, handler, "/health")
	assert.Equal(t, 200, code)
	assert.Equal(t, "Healthy", body)

	code, body = get(t, handler, "/metrics")
	assert.Equal(t, 200, code)
	assert.True(t, strings.Contains(body, "blobshift_test_total 1"))

	assert.Nil(t, db.Close())
	code, body = get(t, handler, "/health")
	assert.Equal(t, 503, code)
	assert.Equal(t, "Unhealthy", body)
}
