package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
)

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/routes.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(routesFixture))
	})
	mux.HandleFunc("/airports.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(airportsFixture))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testLoader(t *testing.T, srv *httptest.Server) *Loader {
	t.Helper()
	cfg := config.DatasetConfig{
		RoutesURL:    srv.URL + "/routes.csv",
		AirportsURL:  srv.URL + "/airports.geojson",
		FetchTimeout: 5 * time.Second,
		RetryMax:     1,
	}
	return NewLoader(cfg, logger.New(logger.Config{Level: "error", Format: "text"}))
}

func TestLoader_Load(t *testing.T) {
	srv := fixtureServer(t)
	loader := testLoader(t, srv)

	dataset, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, dataset.RouteCount())
	assert.Equal(t, 2, dataset.AirportCount())
	assert.Equal(t, []string{"ATL", "ORD"}, dataset.SourceCodes())
	assert.NotEmpty(t, dataset.Version)
}

func TestLoader_LoadRoutesFetchError(t *testing.T) {
	srv := fixtureServer(t)
	cfg := config.DatasetConfig{
		RoutesURL:    srv.URL + "/missing.csv",
		AirportsURL:  srv.URL + "/airports.geojson",
		FetchTimeout: 5 * time.Second,
		RetryMax:     0,
	}
	loader := NewLoader(cfg, logger.New(logger.Config{Level: "error", Format: "text"}))

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading routes")
}

func TestLoader_ContextCancellation(t *testing.T) {
	srv := fixtureServer(t)
	loader := testLoader(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx)
	assert.Error(t, err)
}
