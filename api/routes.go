package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/db"
	"github.com/edgeoinnovations-resources/Flight/pkg/cache"
	"github.com/edgeoinnovations-resources/Flight/pkg/health"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/pkg/middleware"
	"github.com/edgeoinnovations-resources/Flight/pkg/worker_registry"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/worker"
)

// Deps bundles everything the HTTP layer needs. Cache, Queue, Refresher,
// Graph, and Registry are optional and may be nil.
type Deps struct {
	Store     *routedata.Store
	Config    *config.Config
	Cache     *cache.Manager
	Queue     queue.Queue
	Refresher worker.RefreshRunner
	Graph     db.Neo4jDatabase
	Hub       *Hub
	Health    *health.HealthChecker
	Registry  *worker_registry.Registry
	Log       *logger.Logger
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())

	// Map page
	router.GET("/", GetMapPage(deps.Store, deps.Config.DatasetConfig))

	// Health endpoints
	router.GET("/healthz", healthHandler(deps.Health))
	router.GET("/readyz", readinessHandler(deps.Health))
	router.GET("/livez", livenessHandler(deps.Health))
	router.GET("/version", GetVersion(deps.Store))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/sources", GetSources(deps.Store, deps.Cache))
		v1.GET("/airports", GetAirports(deps.Store, deps.Cache))
		v1.GET("/routes", GetRoutes(deps.Store, deps.Cache))
		v1.GET("/view", GetView(deps.Store, deps.Cache, deps.Config.DatasetConfig))
		v1.GET("/summary", GetSummary(deps.Store, deps.Cache, deps.Config.DatasetConfig))

		v1.GET("/events", GetEvents(deps.Hub))

		// Graph traversal routes
		graph := v1.Group("/graph")
		if deps.Cache != nil {
			graph.Use(middleware.ResponseCache(deps.Cache, middleware.CacheConfig{
				TTL:       deps.Config.RedisConfig.ResponseCacheTTL,
				KeyPrefix: "graph",
			}))
		}
		graph.GET("/connections", GetGraphConnections(deps.Graph))

		// Admin routes
		admin := v1.Group("/admin")
		if deps.Config.AdminAuthConfig.Enabled {
			admin.Use(middleware.AdminAuth(deps.Config.AdminAuthConfig))
		}
		{
			admin.POST("/refresh", RefreshDataset(deps.Queue, deps.Refresher, deps.Log))
			admin.GET("/queue", GetQueueStatus(deps.Queue))
			admin.GET("/jobs/:id", GetJobByID(deps.Queue))
			admin.GET("/workers", GetWorkers(deps.Registry))
		}
	}
}

func healthHandler(h *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if report.Status == health.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

func readinessHandler(h *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.CheckReadiness(c.Request.Context())
		status := http.StatusOK
		if report.Status == health.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

func livenessHandler(h *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.CheckLiveness(c.Request.Context()))
	}
}
