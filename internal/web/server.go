// Package web provides a read-only HTTP/WebSocket monitor for imports
// driven by the cvsimport CLI: run history from the metadata store's Run
// table, plus a live view of whichever run is currently in progress in
// this process. It has no endpoint that starts, stops, or reconfigures an
// import — there is no reverse direction to start, and unlike the
// teacher's bidirectional sync surface this system only ever moves CVS to
// Git.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opencvs/cvsimport/internal/progress"
)

// Run is the subset of store.Run the monitor needs to render, kept
// narrow so the web package does not import the store package's SQL
// internals.
type Run struct {
	ID              string
	SourcePath      string
	TargetPath      string
	Status          string
	LastChangesetID int64
}

// RunStore reads run bookkeeping for the monitor.
type RunStore interface {
	Runs() ([]Run, error)
	LoadRun(id string) (Run, error)
}

// Server is the read-only monitor's HTTP server.
type Server struct {
	config    ServerConfig
	store     RunStore
	reporters *ReporterRegistry
	router    *chi.Mux
}

// NewServer creates a monitor server backed by store for run history and
// reporters for any run currently progressing in this process.
func NewServer(config ServerConfig, store RunStore, reporters *ReporterRegistry) *Server {
	s := &Server{config: config, store: store, reporters: reporters}
	s.setupRouter()
	return s
}

// Router returns the HTTP router, for tests and for embedding in a larger
// mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) setupRouter() {
	s.router = chi.NewRouter()
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/runs", s.handleListRuns)
	s.router.Get("/api/runs/{id}", s.handleGetRun)
	s.router.Get("/ws/progress/{id}", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SuccessResponse(HealthStatus{Status: "ok", Version: "0.1.0"}))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, ErrorResponse("STORE_ERROR", err.Error()))
		return
	}

	out := make([]RunStatus, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunStatus(run))
	}
	writeJSON(w, SuccessResponse(out))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.LoadRun(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, ErrorResponse("NOT_FOUND", "run not found"))
		return
	}
	writeJSON(w, SuccessResponse(toRunStatus(run)))
}

func toRunStatus(run Run) RunStatus {
	return RunStatus{
		ID:              run.ID,
		SourcePath:      run.SourcePath,
		TargetPath:      run.TargetPath,
		Status:          run.Status,
		LastChangesetID: run.LastChangesetID,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

// ReporterRegistry tracks the progress.Reporter of whichever runs are
// currently in progress in this process, so the websocket handler can
// stream live updates instead of only ever serving the store's
// last-checkpointed state. A run absent from the registry is rendered
// from the store alone (either finished, or progressing in a different
// process).
type ReporterRegistry struct {
	mu        sync.RWMutex
	reporters map[string]*progress.Reporter
}

// NewReporterRegistry returns an empty registry.
func NewReporterRegistry() *ReporterRegistry {
	return &ReporterRegistry{reporters: make(map[string]*progress.Reporter)}
}

// Register associates runID with reporter for the lifetime of the run.
func (r *ReporterRegistry) Register(runID string, reporter *progress.Reporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reporters[runID] = reporter
}

// Unregister drops runID, typically once the run completes.
func (r *ReporterRegistry) Unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reporters, runID)
}

// Get returns runID's reporter, if this process is driving that run.
func (r *ReporterRegistry) Get(runID string) (*progress.Reporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reporters[runID]
	return rep, ok
}

// Start starts the monitor's HTTP server; it blocks until the server
// stops or fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("cvsimport monitor listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
