// Package api exposes the route explorer over HTTP: dataset queries, the
// derived view endpoints, the interactive map page, and the admin refresh
// surface.
package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	anyascii "github.com/anyascii/go"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/db"
	"github.com/edgeoinnovations-resources/Flight/pkg/buildinfo"
	"github.com/edgeoinnovations-resources/Flight/pkg/cache"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/pkg/worker_registry"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/webmap"
	"github.com/edgeoinnovations-resources/Flight/worker"
)

const maxAirportResults = 1000

// sourceEntry is one dropdown option: a source airport code and its display
// name.
type sourceEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// currentDataset resolves the live snapshot or writes the 503 that all
// dataset endpoints share before the initial load completes.
func currentDataset(c *gin.Context, store *routedata.Store) (*routedata.Dataset, bool) {
	ds, err := store.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dataset not loaded yet"})
		return nil, false
	}
	return ds, true
}

// normalizeQuery folds a free-text query to lowercase ASCII so "São Paulo"
// matches "sao paulo".
func normalizeQuery(q string) string {
	return strings.ToLower(anyascii.Transliterate(strings.TrimSpace(q)))
}

// GetSources returns a handler listing the source-airport dropdown options.
func GetSources(store *routedata.Store, cacheMgr *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := currentDataset(c, store)
		if !ok {
			return
		}

		key := cache.SourcesKey(ds.Version)
		if cacheMgr != nil {
			var cached gin.H
			if err := cacheMgr.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		codes := ds.SourceCodes()
		sources := make([]sourceEntry, 0, len(codes))
		for _, code := range codes {
			sources = append(sources, sourceEntry{Code: code, Name: ds.AirportName(code)})
		}

		response := gin.H{"count": len(sources), "sources": sources}
		if cacheMgr != nil {
			_ = cacheMgr.SetJSON(c.Request.Context(), key, response, cache.MediumTTL)
		}
		c.JSON(http.StatusOK, response)
	}
}

// GetAirports returns a handler listing airports, optionally filtered by a
// free-text query against code and name.
func GetAirports(store *routedata.Store, cacheMgr *cache.Manager) gin.HandlerFunc {
	collator := collate.New(language.English, collate.IgnoreCase)

	return func(c *gin.Context) {
		ds, ok := currentDataset(c, store)
		if !ok {
			return
		}

		query := normalizeQuery(c.Query("q"))
		limit := maxAirportResults
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			if n < limit {
				limit = n
			}
		}

		key := cache.AirportsKey(ds.Version, query)
		if cacheMgr != nil && limit == maxAirportResults {
			var cached gin.H
			if err := cacheMgr.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		matched := make([]routedata.Airport, 0)
		for _, ap := range ds.Airports() {
			if query == "" ||
				strings.Contains(strings.ToLower(ap.Code), query) ||
				strings.Contains(normalizeQuery(ap.Name), query) {
				matched = append(matched, ap)
			}
		}

		sort.Slice(matched, func(i, j int) bool {
			if cmp := collator.CompareString(matched[i].Name, matched[j].Name); cmp != 0 {
				return cmp < 0
			}
			return matched[i].Code < matched[j].Code
		})

		total := len(matched)
		if len(matched) > limit {
			matched = matched[:limit]
		}

		response := gin.H{"count": total, "airports": matched}
		if cacheMgr != nil && limit == maxAirportResults {
			_ = cacheMgr.SetJSON(c.Request.Context(), key, response, cache.MediumTTL)
		}
		c.JSON(http.StatusOK, response)
	}
}

// GetRoutes returns a handler listing all routes out of a source airport.
func GetRoutes(store *routedata.Store, cacheMgr *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := currentDataset(c, store)
		if !ok {
			return
		}

		src := strings.ToUpper(strings.TrimSpace(c.Query("src")))
		if src == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "src query parameter is required"})
			return
		}
		if !ds.HasSource(src) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown source airport: " + src})
			return
		}

		key := cache.RoutesKey(ds.Version, src)
		if cacheMgr != nil {
			var cached gin.H
			if err := cacheMgr.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		routes := ds.RoutesFrom(src)
		response := gin.H{"src": src, "count": len(routes), "routes": routes}
		if cacheMgr != nil {
			_ = cacheMgr.SetJSON(c.Request.Context(), key, response, cache.MediumTTL)
		}
		c.JSON(http.StatusOK, response)
	}
}

// resolveSelection builds the selection for view and summary requests. A
// missing src falls back to the configured default airport; an explicit but
// unknown src is a 404.
func resolveSelection(c *gin.Context, ds *routedata.Dataset, cfg config.DatasetConfig) (routedata.Selection, bool) {
	sel := routedata.DefaultSelection(ds, cfg.DefaultAirport)

	if src := strings.ToUpper(strings.TrimSpace(c.Query("src"))); src != "" {
		if !ds.HasSource(src) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown source airport: " + src})
			return routedata.Selection{}, false
		}
		sel = sel.WithAirport(ds, src)
	}

	sel = sel.WithRouteLayer(boolQuery(c, "routes", true))
	sel = sel.WithAirportLayer(boolQuery(c, "airports", true))
	return sel, true
}

func boolQuery(c *gin.Context, name string, fallback bool) bool {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// GetView returns a handler computing the derived map view for a selection.
func GetView(store *routedata.Store, cacheMgr *cache.Manager, cfg config.DatasetConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := currentDataset(c, store)
		if !ok {
			return
		}

		sel, ok := resolveSelection(c, ds, cfg)
		if !ok {
			return
		}

		key := cache.ViewKey(ds.Version, sel.AirportCode, sel.ShowRoutes, sel.ShowAirports)
		if cacheMgr != nil {
			var cached routedata.View
			if err := cacheMgr.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		view := routedata.ComputeView(ds, sel)
		if cacheMgr != nil {
			_ = cacheMgr.SetJSON(c.Request.Context(), key, view, cache.ShortTTL)
		}
		c.JSON(http.StatusOK, view)
	}
}

// GetSummary returns a handler computing the textual panel summary for a
// source airport.
func GetSummary(store *routedata.Store, cacheMgr *cache.Manager, cfg config.DatasetConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := currentDataset(c, store)
		if !ok {
			return
		}

		sel, ok := resolveSelection(c, ds, cfg)
		if !ok {
			return
		}

		key := cache.SummaryKey(ds.Version, sel.AirportCode)
		if cacheMgr != nil {
			var cached routedata.Summary
			if err := cacheMgr.GetJSON(c.Request.Context(), key, &cached); err == nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		summary := routedata.ComputeView(ds, sel).Summary
		if cacheMgr != nil {
			_ = cacheMgr.SetJSON(c.Request.Context(), key, summary, cache.ShortTTL)
		}
		c.JSON(http.StatusOK, summary)
	}
}

// GetVersion returns build and dataset version information.
func GetVersion(store *routedata.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"version":    buildinfo.Version,
			"commit":     buildinfo.Commit,
			"build_time": buildinfo.Date,
		}
		if ds, err := store.Current(); err == nil {
			response["dataset"] = gin.H{
				"version":   ds.Version,
				"loaded_at": ds.LoadedAt.Format(time.RFC3339),
				"routes":    ds.RouteCount(),
				"airports":  ds.AirportCount(),
			}
		}
		c.JSON(http.StatusOK, response)
	}
}

// GetMapPage returns a handler rendering the interactive map page.
func GetMapPage(store *routedata.Store, cfg config.DatasetConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := store.Current()
		if err != nil {
			c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8",
				[]byte("<!DOCTYPE html><html><body><p>Dataset is still loading, try again shortly.</p></body></html>"))
			return
		}

		sel := routedata.DefaultSelection(ds, cfg.DefaultAirport)
		page, err := webmap.Page(ds, sel)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render map page: " + err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	}
}

// GetGraphConnections returns a handler for multi-hop reachability queries
// backed by Neo4j.
func GetGraphConnections(graph db.Neo4jDatabase) gin.HandlerFunc {
	return func(c *gin.Context) {
		if graph == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph database not enabled"})
			return
		}

		origin := strings.ToUpper(strings.TrimSpace(c.Query("origin")))
		if origin == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "origin query parameter is required"})
			return
		}

		maxHops := 2
		if raw := c.Query("max_hops"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 4 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "max_hops must be between 1 and 4"})
				return
			}
			maxHops = n
		}

		connections, err := graph.ConnectedAirports(c.Request.Context(), origin, maxHops)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "graph query failed: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"origin":      origin,
			"max_hops":    maxHops,
			"count":       len(connections),
			"connections": connections,
		})
	}
}

// RefreshDataset returns the admin handler that triggers a dataset refresh.
// With a queue the job runs on the worker pool; without one the refresh runs
// inline.
func RefreshDataset(q queue.Queue, refresher worker.RefreshRunner, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := worker.RefreshPayload{Reason: "manual", RequestedBy: c.ClientIP()}

		if q != nil {
			jobID, err := q.Enqueue(c.Request.Context(), worker.QueueDatasetRefresh, payload)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue refresh: " + err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"status": "enqueued", "job_id": jobID})
			return
		}

		if refresher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh is not available"})
			return
		}

		if err := refresher.Refresh(c.Request.Context(), payload); err != nil {
			log.Error(err, "Inline dataset refresh failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	}
}

// GetQueueStatus returns refresh queue statistics.
func GetQueueStatus(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not enabled"})
			return
		}

		stats, err := q.GetQueueStats(c.Request.Context(), worker.QueueDatasetRefresh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue stats: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"queue": worker.QueueDatasetRefresh, "stats": stats})
	}
}

// GetJobByID returns details for a single refresh job.
func GetJobByID(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not enabled"})
			return
		}

		job, err := q.GetJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// GetWorkers lists refresh workers with a recent heartbeat.
func GetWorkers(reg *worker_registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reg == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker registry not enabled"})
			return
		}

		workers, err := reg.ListActive(c.Request.Context(), 45*time.Second, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workers: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(workers), "workers": workers})
	}
}
