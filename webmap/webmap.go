// Package webmap renders the interactive route map as a standalone HTML
// page: MapLibre GL for the basemap, deck.gl for the arc and point overlays,
// with the full dataset embedded so the page works without the API.
package webmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// Default viewport when the selected airport has no feature to center on.
const (
	fallbackCenterLon = -84.4
	fallbackCenterLat = 33.75
)

type pageData struct {
	Title          string
	InitialAirport string
	ShowRoutes     bool
	ShowAirports   bool
	CenterLon      float64
	CenterLat      float64
	RoutesJSON     template.JS
	AirportsJSON   template.JS
	SourcesJSON    template.JS
}

// Page renders the map page for a dataset and initial selection.
func Page(ds *routedata.Dataset, sel routedata.Selection) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, ds, sel); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes the map page to w.
func Render(w io.Writer, ds *routedata.Dataset, sel routedata.Selection) error {
	routesJSON, err := json.Marshal(ds.Routes())
	if err != nil {
		return fmt.Errorf("failed to marshal routes: %w", err)
	}

	airports := ds.Airports()
	airportsJSON, err := json.Marshal(airports)
	if err != nil {
		return fmt.Errorf("failed to marshal airports: %w", err)
	}

	sourcesJSON, err := json.Marshal(ds.SourceCodes())
	if err != nil {
		return fmt.Errorf("failed to marshal source codes: %w", err)
	}

	data := pageData{
		Title:          "Global Flight Routes",
		InitialAirport: sel.AirportCode,
		ShowRoutes:     sel.ShowRoutes,
		ShowAirports:   sel.ShowAirports,
		CenterLon:      fallbackCenterLon,
		CenterLat:      fallbackCenterLat,
		RoutesJSON:     template.JS(routesJSON),
		AirportsJSON:   template.JS(airportsJSON),
		SourcesJSON:    template.JS(sourcesJSON),
	}
	if ap, ok := ds.Airport(sel.AirportCode); ok {
		data.CenterLon = ap.Lon
		data.CenterLat = ap.Lat
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render map page: %w", err)
	}
	return nil
}

var pageTemplate = template.Must(template.New("webmap").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0">

    <!-- MapLibre GL JS -->
    <script src="https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.js"></script>
    <link href="https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.css" rel="stylesheet" />

    <!-- Deck.gl -->
    <script src="https://unpkg.com/deck.gl@8.9.36/dist.min.js"></script>

    <!-- D3 for color scales -->
    <script src="https://d3js.org/d3.v7.min.js"></script>

    <style>
        body { margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; }
        #map { position: absolute; top: 0; bottom: 0; width: 100%; }

        #control-panel {
            position: absolute;
            top: 20px;
            left: 20px;
            z-index: 1000;
            background: rgba(255, 255, 255, 0.9);
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 4px 15px rgba(0,0,0,0.2);
            width: 300px;
            backdrop-filter: blur(10px);
        }

        h2 { margin-top: 0; color: #333; font-size: 1.2rem; }

        .control-group { margin-bottom: 15px; }
        label { display: block; margin-bottom: 5px; font-weight: 600; color: #555; }

        select {
            width: 100%;
            padding: 8px;
            border: 1px solid #ccc;
            border-radius: 4px;
            font-size: 1rem;
        }

        #stats {
            margin-top: 15px;
            padding-top: 15px;
            border-top: 1px solid #eee;
            font-size: 0.9rem;
            color: #666;
        }
    </style>
</head>
<body>

<div id="control-panel">
    <h2>Flight Explorer</h2>

    <div class="control-group">
        <label for="airport-select">Select Airport</label>
        <select id="airport-select"></select>
    </div>

    <div id="stats">
        Select an airport to see routes.
    </div>

    <div class="control-group">
        <label>Layer Controls</label>
        <div>
            <input type="checkbox" id="show-airports" {{if .ShowAirports}}checked{{end}}>
            <label for="show-airports" style="display:inline; font-weight:normal;">Show Airports</label>
        </div>
        <div>
            <input type="checkbox" id="show-routes" {{if .ShowRoutes}}checked{{end}}>
            <label for="show-routes" style="display:inline; font-weight:normal;">Show Flight Routes</label>
        </div>
    </div>

    <div style="margin-top:20px; font-size: 0.8em; color: #999;">
        Hold <b>Ctrl + Drag</b> to tilt 3D<br>
        Data: OpenGeos
    </div>
</div>

<div id="map"></div>

<script>
    // Embedded Data
    const ROUTES_DATA = {{.RoutesJSON}};
    const AIRPORTS_DATA = {{.AirportsJSON}};
    const SRC_AIRPORTS = {{.SourcesJSON}};

    const AIRPORTS_BY_CODE = new Map(AIRPORTS_DATA.map(a => [a.code, a]));

    // Initial State
    let currentAirport = {{.InitialAirport}};

    // DOM Elements
    const select = document.getElementById('airport-select');
    const statsDiv = document.getElementById('stats');

    // Populate Dropdown
    SRC_AIRPORTS.forEach(code => {
        const option = document.createElement('option');
        option.value = code;
        option.text = code;
        if (code === currentAirport) option.selected = true;
        select.appendChild(option);
    });

    // Initialize MapLibre
    const map = new maplibregl.Map({
        container: 'map',
        style: 'https://tiles.openfreemap.org/styles/liberty',
        center: [{{.CenterLon}}, {{.CenterLat}}],
        zoom: 3,
        pitch: 0,
        bearing: 0
    });

    map.addControl(new maplibregl.NavigationControl());

    let deckOverlay = null;

    function getAirportName(code) {
        const feature = AIRPORTS_BY_CODE.get(code);
        return feature ? feature.name : code;
    }

    function updateLayers() {
        const selectedCode = select.value;
        const showRoutes = document.getElementById('show-routes').checked;
        const showAirports = document.getElementById('show-airports').checked;

        // Filter Routes
        const filteredRoutes = ROUTES_DATA.filter(d => d.src_airport === selectedCode);

        // Connected set: destinations plus the selection itself
        const connectedCodes = new Set(filteredRoutes.map(d => d.dst_airport));
        connectedCodes.add(selectedCode);

        const filteredAirports = AIRPORTS_DATA.filter(a => connectedCodes.has(a.code));

        // Update Stats
        statsDiv.innerHTML =
            '<strong>' + selectedCode + '</strong><br>' +
            getAirportName(selectedCode) + '<br><br>' +
            'Routes: ' + filteredRoutes.length + '<br>' +
            'Destinations: ' + (connectedCodes.size - 1);

        // Deck.gl Layers
        const layers = [];

        if (showRoutes) {
            layers.push(new deck.ArcLayer({
                id: 'arc-layer',
                data: filteredRoutes,
                getSourcePosition: d => [d.src_lon, d.src_lat],
                getTargetPosition: d => [d.dst_lon, d.dst_lat],
                getSourceColor: [0, 255, 128],
                getTargetColor: [255, 200, 0],
                getWidth: 2,
                pickable: true,
                autoHighlight: true
            }));
        }

        if (showAirports) {
            layers.push(new deck.ScatterplotLayer({
                id: 'airport-layer',
                data: filteredAirports,
                getPosition: d => [d.lon, d.lat],
                getFillColor: d => d.code === selectedCode ? [255, 0, 0] : [0, 128, 255],
                getRadius: d => d.code === selectedCode ? 10000 : 5000,
                pickable: true,
                autoHighlight: true,
                onClick: (info) => {
                    if (info.object) {
                        // Click selects only source airports; anything else is a no-op
                        const clickedCode = info.object.code;
                        if (SRC_AIRPORTS.includes(clickedCode)) {
                            select.value = clickedCode;
                            updateLayers();
                        }
                    }
                }
            }));
        }

        if (!deckOverlay) {
            deckOverlay = new deck.MapboxOverlay({
                interleaved: true,
                layers: layers,
                getTooltip: ({object}) => object && object.src_airport ?
                    object.src_airport + ' -> ' + object.dst_airport :
                    (object && object.name ? object.name + ' (' + object.code + ')' : null)
            });
            map.addControl(deckOverlay);
        } else {
            deckOverlay.setProps({ layers: layers });
        }
    }

    // Event Listeners
    select.addEventListener('change', updateLayers);
    document.getElementById('show-routes').addEventListener('change', updateLayers);
    document.getElementById('show-airports').addEventListener('change', updateLayers);

    // Refresh notifications from the API, when served behind it
    try {
        const events = new EventSource('/api/v1/events');
        events.addEventListener('dataset_refreshed', () => window.location.reload());
    } catch (e) {
        // Standalone export: no API available
    }

    // Initial Render
    map.on('load', () => {
        updateLayers();
    });
</script>

</body>
</html>
`
