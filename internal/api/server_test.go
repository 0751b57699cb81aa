package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/config"
	"github.com/weerwacht/weerwacht/internal/manager"
	"github.com/weerwacht/weerwacht/internal/publisher/memory"
	"github.com/weerwacht/weerwacht/internal/weather"
)

type stubFetcher struct {
	fail bool
}

func (f *stubFetcher) Fetch(_ context.Context, locationPath string) (weather.Page, error) {
	if f.fail {
		return weather.Page{}, fmt.Errorf("%w: unreachable", weather.ErrFetch)
	}
	return weather.Page{
		URL:        "https://www.weerplaza.nl/" + locationPath + "/",
		StatusCode: 200,
		Body:       []byte("<html>14,2</html>"),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ []byte, fetchedAt time.Time) (*weather.Snapshot, error) {
	temp := 14.2
	return &weather.Snapshot{
		CurrentTemperature: &temp,
		Hourly:             []weather.HourlyEntry{{Hour: "14:00", Temperature: &temp}},
		Astro:              map[string]string{},
		FetchedAt:          fetchedAt,
	}, nil
}

type stubHasher struct{}

func (stubHasher) Hash(b []byte) (string, error) { return string(b), nil }

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Now().UTC() }

type stubIDs struct{}

func (stubIDs) NewID() (string, error) { return "cycle", nil }

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Scrape: config.ScrapeConfig{DefaultIntervalSec: 300, MinIntervalSec: 60},
		Locations: []config.Location{
			{Name: "Testdorp", Path: "nederland/testdorp"},
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config, fetcher weather.Fetcher) (*Server, *manager.Manager) {
	t.Helper()
	mgr := manager.New(cfg, fetcher, stubExtractor{}, stubHasher{}, stubClock{}, stubIDs{}, memory.New(), zap.NewNop())
	return NewServer(mgr, cfg, zap.NewNop()), mgr
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig(), &stubFetcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzBeforeAndAfterFirstCycle(t *testing.T) {
	t.Parallel()

	srv, mgr := newTestServer(t, testConfig(), &stubFetcher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	coord, ok := mgr.Lookup("testdorp")
	require.True(t, ok)
	coord.Refresh(context.Background())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListLocations(t *testing.T) {
	t.Parallel()

	srv, mgr := newTestServer(t, testConfig(), &stubFetcher{})
	coord, _ := mgr.Lookup("testdorp")
	coord.Refresh(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	locations, ok := body["locations"].([]any)
	require.True(t, ok)
	require.Len(t, locations, 1)

	loc := locations[0].(map[string]any)
	require.Equal(t, "testdorp", loc["slug"])
	require.Equal(t, "Testdorp", loc["name"])
	require.Equal(t, true, loc["has_data"])
	require.Equal(t, "OK", loc["last_update_status"])
	require.Equal(t, float64(0), loc["consecutive_errors"])
}

func TestGetLocationEntities(t *testing.T) {
	t.Parallel()

	srv, mgr := newTestServer(t, testConfig(), &stubFetcher{})
	coord, _ := mgr.Lookup("testdorp")
	coord.Refresh(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations/testdorp", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "testdorp", body["slug"])
	entities, ok := body["entities"].([]any)
	require.True(t, ok)
	require.Len(t, entities, 8)
}

func TestGetUnknownLocation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig(), &stubFetcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations/rotterdam", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "unknown location", decodeBody(t, rec)["error"])
}

func TestRefreshLocation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig(), &stubFetcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/locations/testdorp/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "OK", body["last_update_status"])
	require.Equal(t, true, body["has_data"])
}

func TestRefreshLocationRecordsFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig(), &stubFetcher{fail: true})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/locations/testdorp/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "Error", body["last_update_status"])
	require.Equal(t, float64(1), body["consecutive_errors"])
	require.Equal(t, false, body["has_data"])
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "geheim"}
	srv, _ := newTestServer(t, cfg, &stubFetcher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/locations", nil)
	req.Header.Set("X-API-Key", "geheim")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations?api_key=geheim", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, mgr := newTestServer(t, testConfig(), &stubFetcher{})
	coord, _ := mgr.Lookup("testdorp")
	coord.Refresh(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "weerwacht_scrape_cycles_total")
}
