package routedata

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset() *Dataset {
	routes := []Route{
		{SrcAirport: "ATL", DstAirport: "JFK", SrcLat: 33.6367, SrcLon: -84.4281, DstLat: 40.6398, DstLon: -73.7789},
		{SrcAirport: "ATL", DstAirport: "LAX", SrcLat: 33.6367, SrcLon: -84.4281, DstLat: 33.9416, DstLon: -118.4085},
		{SrcAirport: "ORD", DstAirport: "DFW", SrcLat: 41.9742, SrcLon: -87.9073, DstLat: 32.8998, DstLon: -97.0403},
	}
	airports := []Airport{
		{Code: "ATL", Name: "Hartsfield-Jackson Atlanta International Airport", Country: "United States", Lon: -84.4281, Lat: 33.6367},
		{Code: "JFK", Name: "John F. Kennedy International Airport", Country: "United States", Lon: -73.7789, Lat: 40.6398},
		{Code: "LAX", Name: "Los Angeles International Airport", Country: "United States", Lon: -118.4085, Lat: 33.9416},
		{Code: "ORD", Name: "O'Hare International Airport", Country: "United States", Lon: -87.9073, Lat: 41.9742},
		{Code: "DFW", Name: "Dallas/Fort Worth International Airport", Country: "United States", Lon: -97.0403, Lat: 32.8998},
		// Airport with no outgoing routes at all.
		{Code: "XNA", Name: "Northwest Arkansas National Airport", Country: "United States", Lon: -94.3068, Lat: 36.2819},
	}
	return NewDataset(routes, airports)
}

func TestComputeView_WorkedExample(t *testing.T) {
	d := testDataset()
	sel := Selection{AirportCode: "ATL", ShowRoutes: true, ShowAirports: true}

	view := ComputeView(d, sel)

	assert.Equal(t, 2, view.Summary.RouteCount)
	assert.Equal(t, 2, view.Summary.DestinationCount)
	assert.Equal(t, "ATL", view.Summary.Code)
	assert.Equal(t, "Hartsfield-Jackson Atlanta International Airport", view.Summary.Name)

	if diff := deep.Equal([]string{"ATL", "JFK", "LAX"}, view.ConnectedCodes); diff != nil {
		t.Error(diff)
	}

	require.Len(t, view.Arcs, 2)
	for _, arc := range view.Arcs {
		assert.Equal(t, "ATL", arc.SrcAirport, "filter must yield only routes out of the selection")
		assert.Greater(t, arc.DistanceKm, 0.0)
	}

	require.Len(t, view.Points, 3)
	selected := 0
	for _, p := range view.Points {
		if p.Selected {
			selected++
			assert.Equal(t, "ATL", p.Code)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestComputeView_FilterHasNoFalsePositives(t *testing.T) {
	d := testDataset()
	for _, code := range d.SourceCodes() {
		view := ComputeView(d, Selection{AirportCode: code, ShowRoutes: true})
		for _, arc := range view.Arcs {
			assert.Equal(t, code, arc.SrcAirport)
		}
		// No false negatives either: arc count matches the raw index.
		assert.Len(t, view.Arcs, len(d.RoutesFrom(code)))
	}
}

func TestComputeView_ConnectedSetAlwaysIncludesSelection(t *testing.T) {
	d := testDataset()

	// XNA exists in the airport set but has no outgoing routes.
	view := ComputeView(d, Selection{AirportCode: "XNA", ShowRoutes: true, ShowAirports: true})

	assert.Equal(t, 0, view.Summary.RouteCount)
	assert.Equal(t, 0, view.Summary.DestinationCount)
	assert.Equal(t, []string{"XNA"}, view.ConnectedCodes)
	assert.Empty(t, view.Arcs)
	require.Len(t, view.Points, 1)
	assert.True(t, view.Points[0].Selected)
	assert.Equal(t, 0.0, view.Summary.TotalDistanceKm)
	assert.Equal(t, 0.0, view.Summary.MeanDistanceKm)
}

func TestComputeView_UnknownCodeIsNotAnError(t *testing.T) {
	d := testDataset()

	view := ComputeView(d, Selection{AirportCode: "ZZZ", ShowRoutes: true, ShowAirports: true})

	assert.Equal(t, 0, view.Summary.RouteCount)
	assert.Equal(t, 0, view.Summary.DestinationCount)
	assert.Equal(t, "ZZZ", view.Summary.Name, "display name falls back to the code")
	assert.Equal(t, []string{"ZZZ"}, view.ConnectedCodes)
	assert.Empty(t, view.Points, "no airport feature to render")
}

func TestComputeView_VisibilityToggles(t *testing.T) {
	d := testDataset()

	base := Selection{AirportCode: "ATL", ShowRoutes: true, ShowAirports: true}
	full := ComputeView(d, base)

	noArcs := ComputeView(d, base.WithRouteLayer(false))
	assert.Empty(t, noArcs.Arcs)
	if diff := deep.Equal(full.Points, noArcs.Points); diff != nil {
		t.Error("point layer changed by route toggle:", diff)
	}
	if diff := deep.Equal(full.Summary, noArcs.Summary); diff != nil {
		t.Error("summary changed by route toggle:", diff)
	}

	noPoints := ComputeView(d, base.WithAirportLayer(false))
	assert.Empty(t, noPoints.Points)
	if diff := deep.Equal(full.Arcs, noPoints.Arcs); diff != nil {
		t.Error("arc layer changed by airport toggle:", diff)
	}

	// Toggles never touch the selected code or the connected set.
	assert.Equal(t, "ATL", noArcs.Selection.AirportCode)
	if diff := deep.Equal(full.ConnectedCodes, noArcs.ConnectedCodes); diff != nil {
		t.Error(diff)
	}
}

func TestSelection_WithAirport(t *testing.T) {
	d := testDataset()
	sel := Selection{AirportCode: "ATL", ShowRoutes: true, ShowAirports: false}

	// Valid source airport: behaves like a dropdown selection change.
	next := sel.WithAirport(d, "ORD")
	assert.Equal(t, "ORD", next.AirportCode)
	assert.True(t, next.ShowRoutes)
	assert.False(t, next.ShowAirports, "layer flags are preserved")

	// JFK is an airport but never a route source: click is a no-op.
	same := sel.WithAirport(d, "JFK")
	assert.Equal(t, sel, same)

	// Unknown code: also a no-op.
	same = sel.WithAirport(d, "ZZZ")
	assert.Equal(t, sel, same)
}

func TestDefaultSelection(t *testing.T) {
	d := testDataset()

	sel := DefaultSelection(d, "ATL")
	assert.Equal(t, "ATL", sel.AirportCode)
	assert.True(t, sel.ShowRoutes)
	assert.True(t, sel.ShowAirports)

	// Preferred code that is not a source airport falls back to the first
	// sorted source code.
	sel = DefaultSelection(d, "JFK")
	assert.Equal(t, "ATL", sel.AirportCode)

	// Empty dataset keeps the preferred code verbatim.
	empty := NewDataset(nil, nil)
	sel = DefaultSelection(empty, "ATL")
	assert.Equal(t, "ATL", sel.AirportCode)
}

func TestComputeView_MeanDistance(t *testing.T) {
	d := testDataset()
	view := ComputeView(d, Selection{AirportCode: "ATL"})
	require.Equal(t, 2, view.Summary.RouteCount)
	assert.InDelta(t, view.Summary.TotalDistanceKm/2, view.Summary.MeanDistanceKm, 1e-9)
}
