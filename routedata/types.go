// Package routedata holds the in-memory flight route dataset and the
// derived-view computation that drives the route explorer panel.
package routedata

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Route is a single directed flight connection. Immutable once loaded.
type Route struct {
	SrcAirport string  `json:"src_airport"`
	DstAirport string  `json:"dst_airport"`
	SrcLat     float64 `json:"src_lat"`
	SrcLon     float64 `json:"src_lon"`
	DstLat     float64 `json:"dst_lat"`
	DstLon     float64 `json:"dst_lon"`
}

// Airport is a geographic airport record keyed by IATA code.
type Airport struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
}

// Dataset is an immutable snapshot of the loaded route and airport sets.
// All fields are built once by NewDataset and never mutated afterwards, so a
// Dataset can be shared freely between goroutines.
type Dataset struct {
	Version  string
	LoadedAt time.Time

	routes   []Route
	airports map[string]Airport
	bySource map[string][]Route
	sources  []string
}

// NewDataset builds a snapshot from parsed routes and airports.
func NewDataset(routes []Route, airports []Airport) *Dataset {
	d := &Dataset{
		Version:  uuid.New().String(),
		LoadedAt: time.Now().UTC(),
		routes:   routes,
		airports: make(map[string]Airport, len(airports)),
		bySource: make(map[string][]Route),
	}

	for _, a := range airports {
		d.airports[a.Code] = a
	}

	for _, r := range routes {
		d.bySource[r.SrcAirport] = append(d.bySource[r.SrcAirport], r)
	}

	d.sources = make([]string, 0, len(d.bySource))
	for code := range d.bySource {
		d.sources = append(d.sources, code)
	}
	sort.Strings(d.sources)

	return d
}

// RestoreDataset rebuilds a snapshot from persisted routes and airports,
// preserving the original version and load time.
func RestoreDataset(version string, loadedAt time.Time, routes []Route, airports []Airport) *Dataset {
	d := NewDataset(routes, airports)
	d.Version = version
	d.LoadedAt = loadedAt
	return d
}

// Routes returns all routes in the snapshot.
func (d *Dataset) Routes() []Route {
	return d.routes
}

// RoutesFrom returns all routes whose source airport equals code.
// The returned slice must not be modified by callers.
func (d *Dataset) RoutesFrom(code string) []Route {
	return d.bySource[code]
}

// Airport looks up an airport by code.
func (d *Dataset) Airport(code string) (Airport, bool) {
	a, ok := d.airports[code]
	return a, ok
}

// AirportName returns the display name for a code, falling back to the code
// itself when the airport is not in the feature collection.
func (d *Dataset) AirportName(code string) string {
	if a, ok := d.airports[code]; ok && a.Name != "" {
		return a.Name
	}
	return code
}

// Airports returns all airports in the snapshot in unspecified order.
func (d *Dataset) Airports() []Airport {
	out := make([]Airport, 0, len(d.airports))
	for _, a := range d.airports {
		out = append(out, a)
	}
	return out
}

// SourceCodes returns the sorted list of distinct source-airport codes.
// This is the option list for the panel dropdown.
func (d *Dataset) SourceCodes() []string {
	return d.sources
}

// HasSource reports whether code appears as a source airport in any route.
func (d *Dataset) HasSource(code string) bool {
	_, ok := d.bySource[code]
	return ok
}

// RouteCount returns the total number of routes in the snapshot.
func (d *Dataset) RouteCount() int {
	return len(d.routes)
}

// AirportCount returns the total number of airports in the snapshot.
func (d *Dataset) AirportCount() int {
	return len(d.airports)
}
