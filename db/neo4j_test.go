package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeoinnovations-resources/Flight/routedata"
)

func seedDataset() *routedata.Dataset {
	routes := []routedata.Route{
		{SrcAirport: "ATL", DstAirport: "JFK", SrcLat: 33.64, SrcLon: -84.43, DstLat: 40.64, DstLon: -73.78},
		{SrcAirport: "ATL", DstAirport: "XYZ", SrcLat: 33.64, SrcLon: -84.43, DstLat: 10.0, DstLon: 10.0},
	}
	airports := []routedata.Airport{
		{Code: "ATL", Name: "Hartsfield-Jackson Atlanta International Airport", Country: "US", Lon: -84.43, Lat: 33.64},
		{Code: "JFK", Name: "John F Kennedy International Airport", Country: "US", Lon: -73.78, Lat: 40.64},
	}
	return routedata.NewDataset(routes, airports)
}

func TestAirportNodes_FallsBackToRouteCoordinates(t *testing.T) {
	nodes := airportNodes(seedDataset())
	require.Len(t, nodes, 3)

	byCode := make(map[string]map[string]any, len(nodes))
	for _, n := range nodes {
		byCode[n["code"].(string)] = n
	}

	atl := byCode["ATL"]
	require.NotNil(t, atl)
	assert.Equal(t, "Hartsfield-Jackson Atlanta International Airport", atl["name"])
	assert.Equal(t, "US", atl["country"])

	// XYZ has no airport feature: name falls back to the code and the
	// coordinates come from the route endpoint.
	xyz := byCode["XYZ"]
	require.NotNil(t, xyz)
	assert.Equal(t, "XYZ", xyz["name"])
	assert.Equal(t, "", xyz["country"])
	assert.Equal(t, 10.0, xyz["lon"])
	assert.Equal(t, 10.0, xyz["lat"])
}

func TestRouteRels_CarriesDistance(t *testing.T) {
	rels := routeRels(seedDataset())
	require.Len(t, rels, 2)

	assert.Equal(t, "ATL", rels[0]["src"])
	assert.Equal(t, "JFK", rels[0]["dst"])

	// ATL to JFK is roughly 1220 km great circle.
	dist := rels[0]["distance_km"].(float64)
	assert.InDelta(t, 1220, dist, 30)
}
