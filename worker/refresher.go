// Package worker runs dataset refresh jobs: a pool of queue consumers, a
// cron scheduler that enqueues periodic refreshes, and the refresher that
// reloads the dataset and swaps it into the live store.
package worker

import (
	"context"
	"fmt"

	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// QueueDatasetRefresh is the queue name for dataset refresh jobs.
const QueueDatasetRefresh = "dataset_refresh"

// RefreshPayload describes a dataset refresh request.
type RefreshPayload struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// DatasetLoader fetches and parses a fresh dataset. Implemented by
// ingest.Loader.
type DatasetLoader interface {
	Load(ctx context.Context) (*routedata.Dataset, error)
}

// SnapshotSaver persists a dataset snapshot. Implemented by db.PostgresDB.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, ds *routedata.Dataset) error
}

// GraphSeeder mirrors a dataset into the graph database. Implemented by
// db.Neo4jDB.
type GraphSeeder interface {
	SeedSnapshot(ctx context.Context, ds *routedata.Dataset) error
}

// Notifier is told when a new dataset becomes live. Implemented by the SSE
// hub.
type Notifier interface {
	DatasetRefreshed(version string, routeCount, airportCount int)
}

// Alerter sends operational alerts about refresh outcomes. Implemented by
// notify.NTFYClient.
type Alerter interface {
	AlertRefreshComplete(version string, routeCount, airportCount int) error
	AlertRefreshFailed(reason string, err error) error
}

// Refresher reloads the dataset from its upstream sources and installs the
// result as the live snapshot.
type Refresher struct {
	loader   DatasetLoader
	store    *routedata.Store
	postgres SnapshotSaver // optional
	graph    GraphSeeder   // optional
	notifier Notifier      // optional
	alerts   Alerter       // optional
	log      *logger.Logger
}

// NewRefresher creates a refresher. postgres, graph, and notifier may be nil.
func NewRefresher(loader DatasetLoader, store *routedata.Store, postgres SnapshotSaver, graph GraphSeeder, notifier Notifier, log *logger.Logger) *Refresher {
	return &Refresher{
		loader:   loader,
		store:    store,
		postgres: postgres,
		graph:    graph,
		notifier: notifier,
		log:      log,
	}
}

// SetAlerts attaches an operational alert client. Alert delivery is
// best-effort and never fails a refresh.
func (r *Refresher) SetAlerts(alerts Alerter) {
	r.alerts = alerts
}

// Refresh performs one refresh cycle. The in-memory swap is the unit of
// success: persistence failures after the swap are logged but do not fail
// the job, since the live dataset is already up to date.
func (r *Refresher) Refresh(ctx context.Context, payload RefreshPayload) error {
	r.log.Info("Starting dataset refresh", "reason", payload.Reason)

	ds, err := r.loader.Load(ctx)
	if err != nil {
		if r.alerts != nil {
			if alertErr := r.alerts.AlertRefreshFailed(payload.Reason, err); alertErr != nil {
				r.log.Warn("Failed to send refresh failure alert", "error", alertErr)
			}
		}
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	prev := r.store.Swap(ds)

	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	r.log.Info("Dataset refreshed",
		"version", ds.Version,
		"previous_version", prevVersion,
		"routes", ds.RouteCount(),
		"airports", ds.AirportCount(),
	)

	if r.postgres != nil {
		if err := r.postgres.SaveSnapshot(ctx, ds); err != nil {
			r.log.Warn("Failed to persist dataset snapshot", "error", err)
		}
	}
	if r.graph != nil {
		if err := r.graph.SeedSnapshot(ctx, ds); err != nil {
			r.log.Warn("Failed to seed graph database", "error", err)
		}
	}

	if r.notifier != nil {
		r.notifier.DatasetRefreshed(ds.Version, ds.RouteCount(), ds.AirportCount())
	}
	if r.alerts != nil {
		if alertErr := r.alerts.AlertRefreshComplete(ds.Version, ds.RouteCount(), ds.AirportCount()); alertErr != nil {
			r.log.Warn("Failed to send refresh alert", "error", alertErr)
		}
	}

	return nil
}
