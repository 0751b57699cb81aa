package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Collectors are usable after repeated Init calls.
	ObserveCycle("testdorp", "ok", 250*time.Millisecond, 1024)
	ObserveCycle("testdorp", "error", time.Second, 0)
	SetConsecutiveErrors("testdorp", 2)
	SetLastSuccess("testdorp", time.Unix(1700000000, 0))
	ObservePublish("testdorp", "memory")
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	ObserveCycle("metricsdorp", "ok", 100*time.Millisecond, 512)
	SetConsecutiveErrors("metricsdorp", 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "weerwacht_scrape_cycles_total")
	require.Contains(t, body, "weerwacht_scrape_duration_seconds")
	require.Contains(t, body, "weerwacht_consecutive_errors")
	require.Contains(t, body, `location="metricsdorp"`)
}
