// Command mcp-server exposes the route dataset to MCP clients over stdio:
// source listing, derived route views, and airport lookups.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/ingest"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

const maxListedSources = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// MCP uses stdout for the protocol; keep logs away from it.
	log := logger.New(logger.Config{Level: "error", Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	ds, err := ingest.NewLoader(cfg.DatasetConfig, log).Load(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"route-explorer-mcp",
		"1.0.0",
		server.WithLogging(),
	)

	registerListSources(s, ds)
	registerRouteView(s, ds, cfg.DatasetConfig.DefaultAirport)
	registerAirportInfo(s, ds)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}

func registerListSources(s *server.MCPServer, ds *routedata.Dataset) {
	tool := mcp.NewTool("list_sources",
		mcp.WithDescription("List airports that have outgoing flight routes"),
		mcp.WithString("prefix",
			mcp.Description("Optional IATA code prefix filter (e.g., 'A', 'AT')"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, _ := request.Params.Arguments.(map[string]interface{})
		prefix, _ := argsMap["prefix"].(string)
		prefix = strings.ToUpper(strings.TrimSpace(prefix))

		type source struct {
			Code string `json:"code"`
			Name string `json:"name"`
		}

		var sources []source
		truncated := false
		for _, code := range ds.SourceCodes() {
			if prefix != "" && !strings.HasPrefix(code, prefix) {
				continue
			}
			if len(sources) == maxListedSources {
				truncated = true
				break
			}
			sources = append(sources, source{Code: code, Name: ds.AirportName(code)})
		}

		return jsonResult(map[string]interface{}{
			"count":     len(sources),
			"truncated": truncated,
			"sources":   sources,
		})
	})
}

func registerRouteView(s *server.MCPServer, ds *routedata.Dataset, defaultAirport string) {
	tool := mcp.NewTool("route_view",
		mcp.WithDescription("Compute the route map view for a source airport: outgoing routes, connected airports, and distance summary"),
		mcp.WithString("src",
			mcp.Description("Source airport IATA code (e.g., ATL). Defaults to the configured home airport."),
		),
		mcp.WithBoolean("routes",
			mcp.Description("Include the route arcs layer (default true)"),
		),
		mcp.WithBoolean("airports",
			mcp.Description("Include the airport points layer (default true)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, _ := request.Params.Arguments.(map[string]interface{})

		sel := routedata.DefaultSelection(ds, defaultAirport)
		if src, _ := argsMap["src"].(string); src != "" {
			src = strings.ToUpper(strings.TrimSpace(src))
			if !ds.HasSource(src) {
				return mcp.NewToolResultError(fmt.Sprintf("Unknown source airport: %s", src)), nil
			}
			sel = sel.WithAirport(ds, src)
		}
		if v, ok := argsMap["routes"].(bool); ok {
			sel = sel.WithRouteLayer(v)
		}
		if v, ok := argsMap["airports"].(bool); ok {
			sel = sel.WithAirportLayer(v)
		}

		return jsonResult(routedata.ComputeView(ds, sel))
	})
}

func registerAirportInfo(s *server.MCPServer, ds *routedata.Dataset) {
	tool := mcp.NewTool("airport_info",
		mcp.WithDescription("Look up an airport by IATA code, including its route summary when it has outgoing routes"),
		mcp.WithString("code",
			mcp.Description("Airport IATA code (e.g., JFK)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, _ := request.Params.Arguments.(map[string]interface{})
		code, _ := argsMap["code"].(string)
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return mcp.NewToolResultError("code is required"), nil
		}

		airport, hasFeature := ds.Airport(code)
		if !hasFeature && !ds.HasSource(code) {
			return mcp.NewToolResultError(fmt.Sprintf("Unknown airport: %s", code)), nil
		}

		response := map[string]interface{}{
			"code":       code,
			"name":       ds.AirportName(code),
			"has_routes": ds.HasSource(code),
		}
		if hasFeature {
			response["country"] = airport.Country
			response["lon"] = airport.Lon
			response["lat"] = airport.Lat
		}
		if ds.HasSource(code) {
			sel := routedata.Selection{AirportCode: code}
			response["summary"] = routedata.ComputeView(ds, sel).Summary
		}

		return jsonResult(response)
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error marshaling response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
