// Command genmap generates a standalone interactive route map: it fetches
// the datasets and writes a single HTML file with the data embedded, usable
// without the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/ingest"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/routedata"
	"github.com/edgeoinnovations-resources/Flight/webmap"
)

func main() {
	var (
		outFile     = flag.String("out", "index.html", "output HTML file")
		airport     = flag.String("airport", "", "initial airport selection (defaults to DEFAULT_AIRPORT)")
		routesURL   = flag.String("routes-url", "", "routes CSV URL (defaults to ROUTES_URL)")
		airportsURL = flag.String("airports-url", "", "airports GeoJSON URL (defaults to AIRPORTS_URL)")
		timeout     = flag.Duration("timeout", 5*time.Minute, "fetch timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	dsCfg := cfg.DatasetConfig
	if *routesURL != "" {
		dsCfg.RoutesURL = *routesURL
	}
	if *airportsURL != "" {
		dsCfg.AirportsURL = *airportsURL
	}
	if *airport != "" {
		dsCfg.DefaultAirport = strings.ToUpper(*airport)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: "text",
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ds, err := ingest.NewLoader(dsCfg, log).Load(ctx)
	if err != nil {
		log.Fatal(err, "Failed to load dataset")
	}

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatal(err, "Failed to create output file")
	}
	defer f.Close()

	sel := routedata.DefaultSelection(ds, dsCfg.DefaultAirport)
	if err := webmap.Render(f, ds, sel); err != nil {
		log.Fatal(err, "Failed to render map page")
	}

	info, err := f.Stat()
	if err == nil {
		log.Info("Generated map page",
			"file", *outFile,
			"size_mb", fmt.Sprintf("%.2f", float64(info.Size())/1024/1024),
			"routes", ds.RouteCount(),
			"airports", ds.AirportCount(),
			"initial_airport", sel.AirportCode,
		)
	}
}
