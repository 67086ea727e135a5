package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/pkg/health"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/pkg/worker_registry"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func apiDataset() *routedata.Dataset {
	return routedata.NewDataset(
		[]routedata.Route{
			{SrcAirport: "ATL", DstAirport: "JFK", SrcLat: 33.64, SrcLon: -84.43, DstLat: 40.64, DstLon: -73.78},
			{SrcAirport: "ATL", DstAirport: "LAX", SrcLat: 33.64, SrcLon: -84.43, DstLat: 33.94, DstLon: -118.41},
			{SrcAirport: "GRU", DstAirport: "JFK", SrcLat: -23.43, SrcLon: -46.47, DstLat: 40.64, DstLon: -73.78},
		},
		[]routedata.Airport{
			{Code: "ATL", Name: "Hartsfield-Jackson", Country: "US", Lon: -84.43, Lat: 33.64},
			{Code: "JFK", Name: "John F Kennedy Intl", Country: "US", Lon: -73.78, Lat: 40.64},
			{Code: "LAX", Name: "Los Angeles Intl", Country: "US", Lon: -118.41, Lat: 33.94},
			{Code: "GRU", Name: "São Paulo-Guarulhos Intl", Country: "BR", Lon: -46.47, Lat: -23.43},
		},
	)
}

type apiOptions struct {
	loaded    bool
	queue     queue.Queue
	refresher worker.RefreshRunner
	registry  *worker_registry.Registry
}

func testRouter(t *testing.T, opts apiOptions) (*gin.Engine, *routedata.Store) {
	t.Helper()

	store := routedata.NewStore()
	if opts.loaded {
		store.Swap(apiDataset())
	}

	log := logger.New(logger.Config{Level: "error", Format: "text"})
	checker := health.NewHealthChecker("test")
	checker.AddChecker(&health.DatasetChecker{Store: store, Name: "dataset"})

	cfg := config.TestConfig()

	router := gin.New()
	RegisterRoutes(router, Deps{
		Store:     store,
		Config:    cfg,
		Queue:     opts.queue,
		Refresher: opts.refresher,
		Hub:       NewHub(log),
		Health:    checker,
		Registry:  opts.registry,
		Log:       log,
	})
	return router, store
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetSources(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int           `json:"count"`
		Sources []sourceEntry `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "ATL", resp.Sources[0].Code)
	assert.Equal(t, "Hartsfield-Jackson", resp.Sources[0].Name)
	assert.Equal(t, "GRU", resp.Sources[1].Code)
}

func TestEndpointsBeforeInitialLoad(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: false})

	for _, path := range []string{"/api/v1/sources", "/api/v1/airports", "/api/v1/view"} {
		w := doRequest(router, http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	// Readiness reflects the missing dataset.
	w := doRequest(router, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetAirports_QueryIsAccentInsensitive(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/airports?q=sao+paulo")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count    int                 `json:"count"`
		Airports []routedata.Airport `json:"airports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "GRU", resp.Airports[0].Code)
}

func TestGetAirports_InvalidLimit(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/airports?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoutes(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/routes")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// JFK only appears as a destination, never a source.
	w = doRequest(router, http.MethodGet, "/api/v1/routes?src=JFK")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/routes?src=atl")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Src    string            `json:"src"`
		Count  int               `json:"count"`
		Routes []routedata.Route `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ATL", resp.Src)
	assert.Equal(t, 2, resp.Count)
}

func TestGetView_DefaultSelection(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/view")
	require.Equal(t, http.StatusOK, w.Code)

	var view routedata.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "ATL", view.Selection.AirportCode)
	assert.Equal(t, []string{"ATL", "JFK", "LAX"}, view.ConnectedCodes)
	assert.Len(t, view.Arcs, 2)
	assert.Len(t, view.Points, 3)
}

func TestGetView_LayerToggles(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/view?src=ATL&routes=false&airports=false")
	require.Equal(t, http.StatusOK, w.Code)

	var view routedata.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Empty(t, view.Arcs)
	assert.Empty(t, view.Points)
	// Connected set is independent of layer visibility.
	assert.Equal(t, []string{"ATL", "JFK", "LAX"}, view.ConnectedCodes)
}

func TestGetView_UnknownSource(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/view?src=ZZZ")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSummary(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/summary?src=GRU")
	require.Equal(t, http.StatusOK, w.Code)

	var summary routedata.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "GRU", summary.Code)
	assert.Equal(t, "São Paulo-Guarulhos Intl", summary.Name)
	assert.Equal(t, 1, summary.RouteCount)
	assert.Equal(t, 1, summary.DestinationCount)
	assert.Greater(t, summary.TotalDistanceKm, 7000.0)
}

func TestGetVersion(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/version")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "version")
	assert.Contains(t, resp, "dataset")
}

func TestGetMapPage(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Flight Explorer")
}

func TestGraphConnections_Disabled(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/graph/connections?origin=ATL")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type inlineRefresher struct {
	called bool
	err    error
}

func (r *inlineRefresher) Refresh(ctx context.Context, payload worker.RefreshPayload) error {
	r.called = true
	return r.err
}

func TestRefreshDataset_Inline(t *testing.T) {
	refresher := &inlineRefresher{}
	router, _ := testRouter(t, apiOptions{loaded: true, refresher: refresher})

	w := doRequest(router, http.MethodPost, "/api/v1/admin/refresh")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, refresher.called)
}

func TestRefreshDataset_Enqueued(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := queue.NewRedisQueueWithClient(client, config.RedisConfig{
		QueueGroup:             "test_workers",
		QueueStreamPrefix:      "test",
		QueueBlockTimeout:      10 * time.Millisecond,
		QueueVisibilityTimeout: time.Minute,
	}, 3)

	router, _ := testRouter(t, apiOptions{loaded: true, queue: q})

	w := doRequest(router, http.MethodPost, "/api/v1/admin/refresh")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Status string `json:"status"`
		JobID  string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "enqueued", resp.Status)

	status, err := q.GetJobStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, status)

	// Job details are exposed on the admin surface.
	w = doRequest(router, http.MethodGet, "/api/v1/admin/jobs/"+resp.JobID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/admin/queue")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetWorkers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := worker_registry.New(client, "test")
	require.NoError(t, reg.Publish(context.Background(), worker_registry.WorkerHeartbeat{
		ID:       "worker-1",
		Hostname: "host-a",
		Status:   "idle",
	}, 30*time.Second))

	router, _ := testRouter(t, apiOptions{loaded: true, registry: reg})

	w := doRequest(router, http.MethodGet, "/api/v1/admin/workers")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int                               `json:"count"`
		Workers []worker_registry.WorkerHeartbeat `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "worker-1", resp.Workers[0].ID)
	assert.Equal(t, "host-a", resp.Workers[0].Hostname)
}

func TestGetWorkers_Unavailable(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodGet, "/api/v1/admin/workers")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRefreshDataset_Unavailable(t *testing.T) {
	router, _ := testRouter(t, apiOptions{loaded: true})

	w := doRequest(router, http.MethodPost, "/api/v1/admin/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
