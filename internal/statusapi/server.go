// Package statusapi exposes a read-only HTTP introspection surface over
// the gateway's dispatcher and upstream login state. Only GET routes; no
// handler mutates gateway state.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// DispatcherSnapshotter supplies the dispatcher state the status API
// reports; kept as an interface so this package never imports gateway.
type DispatcherSnapshotter interface {
	Snapshot() Snapshot
}

// Snapshot holds the dispatcher fields reported at /api/status. At wiring
// time cmd/dapnetgw fills it from the gateway's published Status so
// statusapi stays a leaf package.
type Snapshot struct {
	CurrentSlot   int
	HasSchedule   bool
	SentCodewords int
	ModemIdle     bool
	QueueDepth    int
}

// EngineState is the subset of upstream login state reported at
// /api/status.
type EngineState struct {
	LoggedIn  bool
	FailCount int
}

// Server is a read-only HTTP server over the gateway's live state.
type Server struct {
	Addr    string
	Version string

	dispatcher DispatcherSnapshotter
	engine     func() EngineState
	started    time.Time

	router     *mux.Router
	httpServer *http.Server
}

// New builds a Server. engine is called on every request so the reported
// login state is always current.
func New(addr, version string, dispatcher DispatcherSnapshotter, engine func() EngineState) *Server {
	s := &Server{
		Addr:       addr,
		Version:    version,
		dispatcher: dispatcher,
		engine:     engine,
		started:    time.Now(),
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.dispatcher.Snapshot()
	eng := s.engine()

	resp := map[string]any{
		"current_slot":   snap.CurrentSlot,
		"has_schedule":   snap.HasSchedule,
		"sent_codewords": snap.SentCodewords,
		"modem_idle":     snap.ModemIdle,
		"queue_depth":    snap.QueueDepth,
		"logged_in":      eng.LoggedIn,
		"fail_count":     eng.FailCount,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warnf("status: failed to encode response: %v", err)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.Version})
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts down gracefully. If Addr is empty, Run returns
// immediately with no error: the surface is disabled.
func (s *Server) Run(ctx context.Context) error {
	if s.Addr == "" {
		return nil
	}

	s.httpServer = &http.Server{
		Addr:    s.Addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		_ = s.httpServer.Shutdown(context.Background())
	}()

	log.Infof("Starting status API on %s", s.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return fmt.Errorf("statusapi: %w", err)
}
