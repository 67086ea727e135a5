package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeoinnovations-resources/Flight/api"
	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/db"
	"github.com/edgeoinnovations-resources/Flight/ingest"
	"github.com/edgeoinnovations-resources/Flight/pkg/buildinfo"
	"github.com/edgeoinnovations-resources/Flight/pkg/cache"
	"github.com/edgeoinnovations-resources/Flight/pkg/health"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/pkg/notify"
	"github.com/edgeoinnovations-resources/Flight/pkg/worker_registry"
	"github.com/edgeoinnovations-resources/Flight/queue"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Config{Level: "info", Format: "text"})
		logger.Fatal(err, "Failed to load configuration")
	}

	logger.Init(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	log := logger.New(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	log.Info("Starting route explorer",
		"version", buildinfo.Version,
		"environment", cfg.Environment,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	healthChecker := health.NewHealthChecker(buildinfo.Version)

	// Redis backs both the refresh queue and the response cache. The server
	// runs without it, with inline refreshes and no caching.
	var (
		redisQueue *queue.RedisQueue
		cacheMgr   *cache.Manager
	)
	if cfg.RedisConfig.Enabled {
		redisQueue, err = queue.NewRedisQueue(cfg.RedisConfig, cfg.WorkerConfig.MaxRetries)
		if err != nil {
			log.Warn("Redis unavailable, continuing without queue and cache", "error", err)
		} else {
			healthChecker.AddChecker(&health.RedisChecker{Client: redisQueue.GetClient(), Name: "redis"})
			healthChecker.AddChecker(&health.QueueChecker{Queue: redisQueue, Name: "queue"})
			if cfg.CacheEnabled {
				cacheMgr = cache.NewManager(cache.NewRedisCache(redisQueue.GetClient(), "routemap"))
			}
		}
	}

	var postgresDB *db.PostgresDB
	if cfg.PostgresConfig.Enabled {
		postgresDB, err = db.NewPostgresDB(cfg.PostgresConfig)
		if err != nil {
			log.Fatal(err, "Failed to connect to PostgreSQL")
		}
		defer postgresDB.Close()

		if cfg.InitSchema {
			if err := postgresDB.InitSchema(); err != nil {
				log.Fatal(err, "Failed to initialize PostgreSQL schema")
			}
		}
		healthChecker.AddChecker(&health.PostgresChecker{DB: postgresDB, Name: "postgres"})
	}

	var neo4jDB *db.Neo4jDB
	if cfg.Neo4jConfig.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		neo4jDB, err = db.NewNeo4jDB(ctx, cfg.Neo4jConfig)
		cancel()
		if err != nil {
			log.Fatal(err, "Failed to connect to Neo4j")
		}
		defer neo4jDB.Close(context.Background())

		if cfg.InitSchema {
			if err := neo4jDB.InitSchema(context.Background()); err != nil {
				log.Fatal(err, "Failed to initialize Neo4j schema")
			}
		}
		healthChecker.AddChecker(&health.Neo4jChecker{DB: neo4jDB, Name: "neo4j"})
	}

	store := routedata.NewStore()
	healthChecker.AddChecker(&health.DatasetChecker{Store: store, Name: "dataset"})

	loader := ingest.NewLoader(cfg.DatasetConfig, log)
	hub := api.NewHub(log)

	var (
		saver  worker.SnapshotSaver
		seeder worker.GraphSeeder
	)
	if postgresDB != nil {
		saver = postgresDB
	}
	if neo4jDB != nil {
		seeder = neo4jDB
	}
	refresher := worker.NewRefresher(loader, store, saver, seeder, hub, log)

	if cfg.NTFYConfig.Enabled {
		refresher.SetAlerts(notify.NewNTFYClient(notify.NTFYConfig{
			ServerURL: cfg.NTFYConfig.ServerURL,
			Topic:     cfg.NTFYConfig.Topic,
			Username:  cfg.NTFYConfig.Username,
			Password:  cfg.NTFYConfig.Password,
			Enabled:   true,
		}))
	}

	// Initial load: upstream first, persisted snapshot as fallback. An empty
	// store is not fatal; readiness stays down until the first refresh lands.
	if err := initialLoad(refresher, postgresDB, store, log); err != nil {
		log.Warn("Starting without a dataset snapshot", "error", err)
	}

	var queueForAPI queue.Queue
	if redisQueue != nil {
		queueForAPI = redisQueue
	}

	var (
		workerManager *worker.Manager
		registry      *worker_registry.Registry
	)
	if cfg.WorkerEnabled && redisQueue != nil {
		registry = worker_registry.New(redisQueue.GetClient(), "routemap")
		workerManager = worker.NewManager(redisQueue, refresher, cfg.WorkerConfig, log)
		workerManager.SetRegistry(registry, store, buildinfo.Version)
		workerManager.Start()
		defer workerManager.Stop()
	}

	router := gin.New()
	api.RegisterRoutes(router, api.Deps{
		Store:     store,
		Config:    cfg,
		Cache:     cacheMgr,
		Queue:     queueForAPI,
		Refresher: refresher,
		Graph:     graphOrNil(neo4jDB),
		Hub:       hub,
		Health:    healthChecker,
		Registry:  registry,
		Log:       log,
	})

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.HTTPBindAddr, cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}

// initialLoad installs the first dataset snapshot: a fresh load when the
// upstream sources are reachable, otherwise the last snapshot persisted in
// PostgreSQL.
func initialLoad(refresher *worker.Refresher, postgresDB *db.PostgresDB, store *routedata.Store, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	loadErr := refresher.Refresh(ctx, worker.RefreshPayload{Reason: "startup"})
	if loadErr == nil {
		return nil
	}
	log.Warn("Initial dataset load failed", "error", loadErr)

	if postgresDB == nil {
		return loadErr
	}

	ds, err := postgresDB.LoadSnapshot(ctx)
	if err != nil {
		return loadErr
	}

	store.Swap(ds)
	log.Info("Restored dataset snapshot from PostgreSQL",
		"version", ds.Version,
		"loaded_at", ds.LoadedAt,
		"routes", ds.RouteCount(),
		"airports", ds.AirportCount(),
	)
	return nil
}

func graphOrNil(neo4jDB *db.Neo4jDB) db.Neo4jDatabase {
	if neo4jDB == nil {
		return nil
	}
	return neo4jDB
}
