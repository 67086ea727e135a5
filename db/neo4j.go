package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/pkg/geo"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// Neo4jDatabase defines the interface for graph operations over the route
// network.
type Neo4jDatabase interface {
	InitSchema(ctx context.Context) error
	SeedSnapshot(ctx context.Context, ds *routedata.Dataset) error
	ConnectedAirports(ctx context.Context, origin string, maxHops int) ([]Connection, error)
	Close(ctx context.Context) error
}

// Connection represents a reachable destination from an origin airport.
type Connection struct {
	Airport    string  `json:"airport"`
	Name       string  `json:"name"`
	Country    string  `json:"country,omitempty"`
	Hops       int     `json:"hops"`
	DistanceKm float64 `json:"distance_km"`
}

// Neo4jDB represents a Neo4j database connection.
// It implicitly implements the Neo4jDatabase interface.
type Neo4jDB struct {
	driver neo4j.DriverWithContext
}

var _ Neo4jDatabase = (*Neo4jDB)(nil)

// NewNeo4jDB creates a new Neo4j database connection
func NewNeo4jDB(ctx context.Context, cfg config.Neo4jConfig) (*Neo4jDB, error) {
	uri := strings.TrimSpace(cfg.URI)
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	// Test the connection
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	return &Neo4jDB{driver: driver}, nil
}

// Close closes the database connection
func (n *Neo4jDB) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// Ping verifies connectivity. Used by health checks.
func (n *Neo4jDB) Ping(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}

// InitSchema creates the uniqueness constraint for airport nodes.
func (n *Neo4jDB) InitSchema(ctx context.Context) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		"CREATE CONSTRAINT airport_code IF NOT EXISTS FOR (a:Airport) REQUIRE a.code IS UNIQUE",
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create airport code constraint: %w", err)
	}

	return nil
}

// seedBatchSize bounds the UNWIND batches sent to Neo4j during seeding.
const seedBatchSize = 500

// SeedSnapshot replaces the graph with the given dataset: one Airport node
// per code referenced by a route, FLIES_TO relationships carrying the great
// circle distance in kilometers.
func (n *Neo4jDB) SeedSnapshot(ctx context.Context, ds *routedata.Dataset) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, "MATCH (a:Airport) DETACH DELETE a", nil); err != nil {
		return fmt.Errorf("failed to clear previous graph: %w", err)
	}

	nodes := airportNodes(ds)
	for start := 0; start < len(nodes); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		_, err := session.Run(ctx, `
			UNWIND $airports AS ap
			MERGE (a:Airport {code: ap.code})
			SET a.name = ap.name, a.country = ap.country,
			    a.longitude = ap.lon, a.latitude = ap.lat`,
			map[string]any{"airports": nodes[start:end]},
		)
		if err != nil {
			return fmt.Errorf("failed to seed airport nodes: %w", err)
		}
	}

	rels := routeRels(ds)
	for start := 0; start < len(rels); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(rels) {
			end = len(rels)
		}
		_, err := session.Run(ctx, `
			UNWIND $routes AS rt
			MATCH (src:Airport {code: rt.src})
			MATCH (dst:Airport {code: rt.dst})
			MERGE (src)-[r:FLIES_TO]->(dst)
			SET r.distance_km = rt.distance_km, r.snapshot = $version`,
			map[string]any{"routes": rels[start:end], "version": ds.Version},
		)
		if err != nil {
			return fmt.Errorf("failed to seed route relationships: %w", err)
		}
	}

	return nil
}

// ConnectedAirports returns the airports reachable from origin within maxHops
// FLIES_TO relationships, with the shortest-path hop count and total distance.
func (n *Neo4jDB) ConnectedAirports(ctx context.Context, origin string, maxHops int) ([]Connection, error) {
	if maxHops < 1 {
		maxHops = 1
	}

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Relationship bounds cannot be parameterized in Cypher.
	query := fmt.Sprintf(`
		MATCH path = (src:Airport {code: $origin})-[:FLIES_TO*1..%d]->(dst:Airport)
		WHERE dst.code <> $origin
		WITH dst, min(length(path)) AS hops,
		     min(reduce(total = 0.0, r IN relationships(path) | total + r.distance_km)) AS distance
		RETURN dst.code AS code, dst.name AS name, dst.country AS country,
		       hops, distance
		ORDER BY hops, distance`, maxHops)

	result, err := session.Run(ctx, query, map[string]any{"origin": origin})
	if err != nil {
		return nil, fmt.Errorf("failed to run connections query: %w", err)
	}

	var connections []Connection
	for result.Next(ctx) {
		rec := result.Record()
		conn := Connection{
			Airport:    stringValue(rec, "code"),
			Name:       stringValue(rec, "name"),
			Country:    stringValue(rec, "country"),
			Hops:       int(intValue(rec, "hops")),
			DistanceKm: floatValue(rec, "distance"),
		}
		if conn.Name == "" {
			conn.Name = conn.Airport
		}
		connections = append(connections, conn)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}

	return connections, nil
}

// airportNodes builds node parameters for every code referenced by a route,
// falling back to route endpoint coordinates when the airport has no feature.
func airportNodes(ds *routedata.Dataset) []map[string]any {
	seen := make(map[string]struct{})
	var nodes []map[string]any

	add := func(code string, lon, lat float64) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}

		name, country := code, ""
		if ap, ok := ds.Airport(code); ok {
			name, country = ap.Name, ap.Country
			lon, lat = ap.Lon, ap.Lat
		}
		nodes = append(nodes, map[string]any{
			"code":    code,
			"name":    name,
			"country": country,
			"lon":     lon,
			"lat":     lat,
		})
	}

	for _, rt := range ds.Routes() {
		add(rt.SrcAirport, rt.SrcLon, rt.SrcLat)
		add(rt.DstAirport, rt.DstLon, rt.DstLat)
	}

	return nodes
}

func routeRels(ds *routedata.Dataset) []map[string]any {
	routes := ds.Routes()
	rels := make([]map[string]any, 0, len(routes))
	for _, rt := range routes {
		rels = append(rels, map[string]any{
			"src":         rt.SrcAirport,
			"dst":         rt.DstAirport,
			"distance_km": geo.HaversineKm(rt.SrcLat, rt.SrcLon, rt.DstLat, rt.DstLon),
		})
	}
	return rels
}

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intValue(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok {
		if i, ok := v.(int64); ok {
			return i
		}
	}
	return 0
}

func floatValue(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch f := v.(type) {
		case float64:
			return f
		case int64:
			return float64(f)
		}
	}
	return 0
}
