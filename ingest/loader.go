package ingest

import (
	"context"
	"fmt"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// Loader fetches both datasets and builds routedata snapshots.
// It is safe for concurrent use.
type Loader struct {
	cfg    config.DatasetConfig
	client httpClient
	log    *logger.Logger
}

// NewLoader creates a loader with a retrying HTTP client per the dataset
// configuration.
func NewLoader(cfg config.DatasetConfig, log *logger.Logger) *Loader {
	return &Loader{
		cfg:    cfg,
		client: newClient(cfg),
		log:    log,
	}
}

// Load fetches the route CSV and the airport GeoJSON and assembles a
// dataset snapshot.
func (l *Loader) Load(ctx context.Context) (*routedata.Dataset, error) {
	routesRaw, err := fetch(ctx, l.client, l.cfg.RoutesURL)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}

	routes, skippedRoutes, err := ParseRoutesCSV(routesRaw)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}

	airportsRaw, err := fetch(ctx, l.client, l.cfg.AirportsURL)
	if err != nil {
		return nil, fmt.Errorf("loading airports: %w", err)
	}

	airports, skippedAirports, err := ParseAirportsGeoJSON(airportsRaw)
	if err != nil {
		return nil, fmt.Errorf("loading airports: %w", err)
	}

	dataset := routedata.NewDataset(routes, airports)

	l.log.Info("dataset loaded",
		"version", dataset.Version,
		"routes", dataset.RouteCount(),
		"airports", dataset.AirportCount(),
		"sources", len(dataset.SourceCodes()),
		"skipped_routes", skippedRoutes,
		"skipped_airports", skippedAirports,
	)

	return dataset, nil
}
