package routedata

import (
	"sort"

	"github.com/edgeoinnovations-resources/Flight/pkg/geo"
)

// Selection is the panel state: the chosen source airport and the two layer
// visibility flags. It is an immutable value; every user event produces a new
// Selection rather than mutating the old one, which keeps ComputeView a pure
// function of (dataset, selection).
type Selection struct {
	AirportCode  string `json:"airport_code"`
	ShowRoutes   bool   `json:"show_routes"`
	ShowAirports bool   `json:"show_airports"`
}

// DefaultSelection returns the initial panel state for a dataset. If the
// preferred code is not a known source airport it falls back to the first
// source code in sorted order, or to the preferred code verbatim when the
// dataset has no routes at all.
func DefaultSelection(d *Dataset, preferred string) Selection {
	code := preferred
	if !d.HasSource(code) {
		if sources := d.SourceCodes(); len(sources) > 0 {
			code = sources[0]
		}
	}
	return Selection{AirportCode: code, ShowRoutes: true, ShowAirports: true}
}

// WithAirport returns a copy of the selection pointing at code, but only when
// code is a valid source-airport option in the dataset; otherwise the
// selection is returned unchanged. This is the map-point click behavior.
func (s Selection) WithAirport(d *Dataset, code string) Selection {
	if !d.HasSource(code) {
		return s
	}
	s.AirportCode = code
	return s
}

// WithRouteLayer returns a copy with the route-arc layer visibility set.
func (s Selection) WithRouteLayer(visible bool) Selection {
	s.ShowRoutes = visible
	return s
}

// WithAirportLayer returns a copy with the airport-point layer visibility set.
func (s Selection) WithAirportLayer(visible bool) Selection {
	s.ShowAirports = visible
	return s
}

// Arc is one rendered route in the arc overlay layer.
type Arc struct {
	SrcAirport string  `json:"src_airport"`
	DstAirport string  `json:"dst_airport"`
	SrcLat     float64 `json:"src_lat"`
	SrcLon     float64 `json:"src_lon"`
	DstLat     float64 `json:"dst_lat"`
	DstLon     float64 `json:"dst_lon"`
	DistanceKm float64 `json:"distance_km"`
}

// Point is one rendered airport in the point overlay layer.
type Point struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Country  string  `json:"country,omitempty"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Selected bool    `json:"selected"`
}

// Summary is the textual panel summary for a selection.
type Summary struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	RouteCount       int     `json:"route_count"`
	DestinationCount int     `json:"destination_count"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	MeanDistanceKm   float64 `json:"mean_distance_km"`
}

// View is the derived, never-persisted result of applying a Selection to a
// Dataset: the filtered routes, the connected airports, and the summary. The
// Arcs and Points layers are present only when the corresponding visibility
// flag is set; ConnectedCodes is always populated regardless of layer flags.
type View struct {
	Selection      Selection `json:"selection"`
	Summary        Summary   `json:"summary"`
	ConnectedCodes []string  `json:"connected_codes"`
	Arcs           []Arc     `json:"arcs,omitempty"`
	Points         []Point   `json:"points,omitempty"`
}

// ComputeView recomputes the derived view for a selection. A selection with
// zero outgoing routes is not an error: the summary reports zero routes and
// zero destinations, and the connected set still contains the selected code.
func ComputeView(d *Dataset, sel Selection) View {
	filtered := d.RoutesFrom(sel.AirportCode)

	// Connected set: destinations of the filtered routes plus the selection
	// itself, even when filtered is empty.
	connected := make(map[string]struct{}, len(filtered)+1)
	connected[sel.AirportCode] = struct{}{}
	var totalKm float64
	for _, r := range filtered {
		connected[r.DstAirport] = struct{}{}
		totalKm += geo.HaversineKm(r.SrcLat, r.SrcLon, r.DstLat, r.DstLon)
	}

	codes := make([]string, 0, len(connected))
	for code := range connected {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	summary := Summary{
		Code:             sel.AirportCode,
		Name:             d.AirportName(sel.AirportCode),
		RouteCount:       len(filtered),
		DestinationCount: len(connected) - 1,
		TotalDistanceKm:  totalKm,
	}
	if summary.RouteCount > 0 {
		summary.MeanDistanceKm = totalKm / float64(summary.RouteCount)
	}

	view := View{
		Selection:      sel,
		Summary:        summary,
		ConnectedCodes: codes,
	}

	if sel.ShowRoutes {
		view.Arcs = make([]Arc, 0, len(filtered))
		for _, r := range filtered {
			view.Arcs = append(view.Arcs, Arc{
				SrcAirport: r.SrcAirport,
				DstAirport: r.DstAirport,
				SrcLat:     r.SrcLat,
				SrcLon:     r.SrcLon,
				DstLat:     r.DstLat,
				DstLon:     r.DstLon,
				DistanceKm: geo.HaversineKm(r.SrcLat, r.SrcLon, r.DstLat, r.DstLon),
			})
		}
	}

	if sel.ShowAirports {
		view.Points = make([]Point, 0, len(codes))
		for _, code := range codes {
			a, ok := d.Airport(code)
			if !ok {
				// Route destinations without a matching airport feature are
				// still part of the connected set but cannot be rendered.
				continue
			}
			view.Points = append(view.Points, Point{
				Code:     a.Code,
				Name:     a.Name,
				Country:  a.Country,
				Lon:      a.Lon,
				Lat:      a.Lat,
				Selected: a.Code == sel.AirportCode,
			})
		}
	}

	return view
}
