package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ingest/alpha"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/client/local"
)

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Store   storage.Store
	Session *session.Manager
	Records *records.Engine
	Stats   *stats.Refresher
	Alpha   *alpha.Provider
	Clock   clock.Clock
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    storage.Store
	session  *session.Manager
	records  *records.Engine
	stats    *stats.Refresher
	alpha    *alpha.Provider
	clock    clock.Clock
	log      *slog.Logger
	apiKey   string
	identity func(http.Handler) http.Handler
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    d.Store,
		session:  d.Session,
		records:  d.Records,
		stats:    d.Stats,
		alpha:    d.Alpha,
		clock:    d.Clock,
		log:      log,
		apiKey:   apiKey,
		identity: DevIdentity,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale resolves the caller's identity through the tailnet instead of
// the local dev identity. Call before serving.
func (s *Server) SetTailscale(lc *local.Client) {
	s.identity = TailscaleIdentity(lc, s.log)
}

// SetMCP mounts a streamable MCP handler at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Handle("/mcp", h)
	s.router.Handle("/mcp/*", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	// identity is read per request so SetTailscale can swap it after New.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.identity(next).ServeHTTP(w, r)
		})
	})

	s.router.Handle("/metrics", promhttp.Handler())

	// App API (no auth, tsnet handles access)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)

		// Import endpoints (API key required)
		r.With(APIKeyAuth(s.apiKey)).Post("/import/alpha", s.handleAlphaImport)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Patch("/", s.handleUpdateDetails)
			r.Post("/start", s.handleStart)
			r.Post("/resume/{id}", s.handleResume)
			r.Post("/finish", s.handleFinish)
			r.Post("/cancel", s.handleCancel)

			r.Post("/rest/start", s.handleStartRest)
			r.Post("/rest/stop", s.handleStopRest)
			r.Post("/rest/adjust", s.handleAdjustRest)
			r.Put("/rest/default", s.handleDefaultRest)

			r.Post("/entries", s.handleAddExercise)
			r.Route("/entries/{entryID}", func(r chi.Router) {
				r.Patch("/", s.handleEntryNotes)
				r.Delete("/", s.handleRemoveExercise)
				r.Post("/move", s.handleMoveExercise)
				r.Post("/sets", s.handleAddSet)
				r.Post("/sets/move", s.handleMoveSet)
				r.Put("/sets/order", s.handleReorderSets)
				r.Put("/sets/{setID}", s.handleUpdateSet)
				r.Delete("/sets/{setID}", s.handleDeleteSet)
			})
		})

		r.Get("/workouts", s.handleQueryWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Delete("/workouts/{id}", s.handleDeleteWorkout)

		r.Get("/exercises", s.handleListExercises)
		r.Post("/exercises", s.handleSaveExercise)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Delete("/exercises/{id}", s.handleDeleteExercise)
		r.Get("/exercises/{id}/pr", s.handleCurrentPR)
		r.Get("/exercises/{id}/prs", s.handlePRHistory)

		r.Get("/templates", s.handleListTemplates)
		r.Post("/templates", s.handleSaveTemplate)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Delete("/templates/{id}", s.handleDeleteTemplate)

		r.Get("/stats", s.handleStats)
	})
}

// SetFrontend mounts a static SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
