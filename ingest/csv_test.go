package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routesFixture = `airline,src_airport,dst_airport,src_lat,src_lon,dst_lat,dst_lon
DL,ATL,JFK,33.6367,-84.4281,40.6398,-73.7789
DL,ATL,LAX,33.6367,-84.4281,33.9416,-118.4085
AA,ORD,DFW,41.9742,-87.9073,32.8998,-97.0403
`

func TestParseRoutesCSV(t *testing.T) {
	routes, skipped, err := ParseRoutesCSV([]byte(routesFixture))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, routes, 3)

	assert.Equal(t, "ATL", routes[0].SrcAirport)
	assert.Equal(t, "JFK", routes[0].DstAirport)
	assert.InDelta(t, 33.6367, routes[0].SrcLat, 1e-9)
	assert.InDelta(t, -73.7789, routes[0].DstLon, 1e-9)
}

func TestParseRoutesCSV_SkipsBadRows(t *testing.T) {
	data := `src_airport,dst_airport,src_lat,src_lon,dst_lat,dst_lon
ATL,JFK,33.6367,-84.4281,40.6398,-73.7789
,JFK,33.6367,-84.4281,40.6398,-73.7789
ATL,,33.6367,-84.4281,40.6398,-73.7789
ATL,LAX,not-a-number,-84.4281,33.9416,-118.4085
`
	routes, skipped, err := ParseRoutesCSV([]byte(data))
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.Equal(t, 3, skipped)
}

func TestParseRoutesCSV_MissingColumn(t *testing.T) {
	data := "src_airport,dst_airport,src_lat,src_lon\nATL,JFK,1,2\n"
	_, _, err := ParseRoutesCSV([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dst_lat")
}

func TestParseRoutesCSV_EmptyInput(t *testing.T) {
	_, _, err := ParseRoutesCSV(nil)
	assert.Error(t, err)
}
