package mcp

import (
	"log/slog"

	"github.com/claude/freelift/internal/clock"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, c clock.Clock, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FreeLift", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FreeLift strength training log. Query finished workouts, personal records per exercise, aggregate training stats, and the workout in progress. Weights are kilograms, durations are seconds."),
	)

	h := &handlers{ds: ds, clock: c, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetWorkouts, Handler: h.getWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetCurrentPR, Handler: h.getCurrentPR},
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
		server.ServerTool{Tool: toolGetActiveSession, Handler: h.getActiveSession},
	)

	s.AddResources(
		server.ServerResource{Resource: resActiveSession, Handler: h.activeSession},
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds    DataSource
	clock clock.Clock
	log   *slog.Logger
}

// --- Resource definitions ---

var resActiveSession = mcp.NewResource(
	"freelift://active_session",
	"Active Session",
	mcp.WithResourceDescription("The workout in progress with its sets, elapsed time and rest timer, or active=false"),
	mcp.WithMIMEType("application/json"),
)

var resRecentWorkouts = mcp.NewResource(
	"freelift://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)
