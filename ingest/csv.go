package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// route CSV column names. Extra columns in the source file are ignored.
const (
	colSrcAirport = "src_airport"
	colDstAirport = "dst_airport"
	colSrcLat     = "src_lat"
	colSrcLon     = "src_lon"
	colDstLat     = "dst_lat"
	colDstLon     = "dst_lon"
)

// ParseRoutesCSV parses the route table. The first record is a header naming
// at least the six route columns; rows with missing codes or unparseable
// coordinates are skipped and counted rather than failing the whole load.
func ParseRoutesCSV(data []byte) ([]routedata.Route, int, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading routes header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{colSrcAirport, colDstAirport, colSrcLat, colSrcLon, colDstLat, colDstLon} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("routes header missing column %q", required)
		}
	}

	var routes []routedata.Route
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading routes row: %w", err)
		}

		route, ok := parseRouteRecord(record, idx)
		if !ok {
			skipped++
			continue
		}
		routes = append(routes, route)
	}

	return routes, skipped, nil
}

func parseRouteRecord(record []string, idx map[string]int) (routedata.Route, bool) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	src := field(colSrcAirport)
	dst := field(colDstAirport)
	if src == "" || dst == "" {
		return routedata.Route{}, false
	}

	coords := make([]float64, 4)
	for i, name := range []string{colSrcLat, colSrcLon, colDstLat, colDstLon} {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return routedata.Route{}, false
		}
		coords[i] = v
	}

	return routedata.Route{
		SrcAirport: src,
		DstAirport: dst,
		SrcLat:     coords[0],
		SrcLon:     coords[1],
		DstLat:     coords[2],
		DstLon:     coords[3],
	}, true
}
