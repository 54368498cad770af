package httpapi

import (
	"encoding/json"
	"net/http"
)

// handleVersion serves the static version document spec.md §4.F calls
// for — enough for slicers that gate features on an Octoprint version
// string without actually depending on any behavior beyond this subset.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"api":    "0.1",
		"server": "1.9.0",
		"text":   "Marlinfeed (Octoprint-subset)",
	})
}

// handleSettings serves the static feature document: sdSupport is
// always false (Marlinfeed streams directly, no SD spooling) and the
// webcam block is disabled, matching spec.md §4.F.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"feature": map[string]any{
			"sdSupport":           false,
			"gcodeViewer":         false,
			"temperatureGraph":    true,
			"printStartConfirmation": false,
		},
		"webcam": map[string]any{
			"webcamEnabled": false,
		},
	})
}

// handlePrinter renders a point-in-time snapshot of the Printer State,
// spec.md §5's "snapshot, not shared memory" rule.
func (s *Server) handlePrinter(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.cfg.Printer.PrinterDocument())
}

// handleJob renders the current job document.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.cfg.Printer.JobDocument())
}

// handleLogin returns the canned success document spec.md §4.F calls
// for; spec.md's Non-goals exclude authentication beyond loopback
// binding, so no credential is actually checked.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        "marlinfeed",
		"active":      true,
		"permissions": []string{},
		"groups":      []string{"users"},
	})
}

type jobCommandRequest struct {
	Command string `json:"command"`
	Action  string `json:"action"`
}

// handleJobCommand implements spec.md §4.F's POST /api/job: command=pause
// with no action toggles pause; an explicit action ("pause" or "resume")
// suppresses the toggle, matching original_source/src/marlinfeed.cpp's
// "if (action == 0) // toggle" — the original only signals the toggle
// when no action was given, leaving an explicit action as acknowledged
// but otherwise inert, since Marlinfeed has no separate pause/resume
// signal to send. command=cancel is acknowledged but otherwise a no-op
// (a true abort requires tearing down the job source, which only the Job
// Controller can do, per spec.md §5's cancellation note).
func (s *Server) handleJobCommand(w http.ResponseWriter, r *http.Request) {
	var req jobCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed job command body")
		return
	}

	switch req.Command {
	case "pause":
		if req.Action == "" && s.cfg.TogglePause != nil {
			s.cfg.TogglePause()
		}
	case "cancel":
		// Acknowledged; no engine-side effect beyond what the operator
		// does physically, matching spec.md §5's cancellation note.
	default:
		s.badRequest(w, "unknown job command: "+req.Command)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type printerCommandRequest struct {
	Commands []string `json:"commands"`
}

// handleCommand implements POST /api/printer/command: each string in
// commands[] is pushed into the injection channel, the higher-priority
// side-band source the Protocol Engine drains ahead of the job file.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req printerCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed printer command body")
		return
	}
	for _, line := range req.Commands {
		s.cfg.Injector.Push(line)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory renders the supplemented job-history ledger (component M).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs": s.cfg.History.List(),
	})
}
