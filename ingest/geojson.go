package ingest

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// ParseAirportsGeoJSON parses the airport feature collection. Each feature is
// expected to be a Point with "id" (the airport code) and "name" properties;
// features without a code or a point geometry are skipped and counted.
func ParseAirportsGeoJSON(data []byte) ([]routedata.Airport, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing airports geojson: %w", err)
	}

	airports := make([]routedata.Airport, 0, len(fc.Features))
	skipped := 0
	for _, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsPoint() || len(feature.Geometry.Point) < 2 {
			skipped++
			continue
		}

		code, err := feature.PropertyString("id")
		if err != nil || code == "" {
			skipped++
			continue
		}

		name, _ := feature.PropertyString("name")
		country, _ := feature.PropertyString("country")

		airports = append(airports, routedata.Airport{
			Code:    code,
			Name:    name,
			Country: country,
			Lon:     feature.Geometry.Point[0],
			Lat:     feature.Geometry.Point[1],
		})
	}

	return airports, skipped, nil
}
