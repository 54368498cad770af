// Package httpapi implements the HTTP Surface (spec component F): a
// small Octoprint-subset of endpoints that read the Printer State
// (pkg/printerstate) and inject into the Job Controller (pkg/jobqueue)
// and Protocol Engine (pkg/injection, pause toggle) side-band only —
// never touching the send window or engine internals directly, per
// spec.md §5's worker/core channel discipline.
//
// Grounded on original_source/src/marlinfeed.cpp's
// handle_socket_connection() (method/path dispatch via word-boundary
// startsWith matching) and the teacher's pkg/moonraker/server.go (an
// Octoprint-shaped API server built directly on net/http rather than a
// web framework — the same ambient choice carried here).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"marlinfeed/pkg/history"
	"marlinfeed/pkg/injection"
	"marlinfeed/pkg/jobqueue"
	"marlinfeed/pkg/logging"
	"marlinfeed/pkg/printerstate"
)

// Config bundles the HTTP surface's dependencies and tunables. Every
// reference here is a side channel: a snapshot reader, an injection
// channel, or a pause-toggle callback, never the engine itself.
type Config struct {
	Addr string // host:port to listen on, already resolved per spec.md §6's --localhost rule

	UploadDir string // where POST /api/files/local writes finished uploads

	Printer     *printerstate.State
	Injector    *injection.Channel
	Queue       *jobqueue.Queue
	History     *history.Ring
	TogglePause func()

	Log *logging.Logger
}

// Server is the Octoprint-subset HTTP listener.
type Server struct {
	cfg Config
	srv *http.Server
}

// New builds a Server; call ListenAndServe to start accepting connections.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.dispatch)
	s.srv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// ListenAndServe blocks, serving requests until the listener is closed.
func (s *Server) ListenAndServe() error {
	s.cfg.Log.Info("HTTP surface listening on %s", s.cfg.Addr)
	return s.srv.ListenAndServe()
}

// Close shuts the listener down.
func (s *Server) Close() error {
	return s.srv.Close()
}

// dispatch implements spec.md §4.F's path table. Every accepted HTTP
// connection is serviced by net/http's own per-connection goroutine,
// the Go rendering of the original's forked-worker-per-connection
// model; none of these handlers ever reach past Config's side channels.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/version":
		s.handleVersion(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/settings":
		s.handleSettings(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/printer":
		s.handlePrinter(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/job":
		s.handleJob(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/login":
		s.handleLogin(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/job":
		s.handleJobCommand(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/files/local":
		s.handleUpload(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/files/local/"):
		s.handlePrintTrigger(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/printer/command":
		s.handleCommand(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/marlinfeed/history":
		s.handleHistory(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/marlinfeed/live":
		s.handleLive(w, r)

	// Explicitly 404 these two well-known Octoprint paths, matching
	// original_source's named http_error calls for them, rather than
	// silently falling into the generic case below.
	case r.URL.Path == "/api/printerprofiles":
		s.notFound(w, r, "printer profiles are not supported")
	case r.URL.Path == "/plugin/appkeys/probe":
		s.notFound(w, r, "appkeys plugin is not installed")

	default:
		s.notFound(w, r, "")
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, note string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	msg := "Not Found: " + r.URL.Path
	if note != "" {
		msg += " (" + note + ")"
	}
	io.WriteString(w, "<html><body><h1>404 Not Found</h1><p>"+msg+"</p></body></html>")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
