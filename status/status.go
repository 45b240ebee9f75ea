// Package status exposes the latest run results over HTTP: a liveness
// endpoint plus per-target reports, for dashboards and cron wrappers.
package status

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/docveille/monitor"
)

// TargetStatus is the recorded outcome of a target's most recent run.
type TargetStatus struct {
	Target  string          `json:"target"`
	LastRun time.Time       `json:"last_run"`
	Error   string          `json:"error,omitempty"`
	Report  *monitor.Report `json:"report,omitempty"`
}

// Tracker keeps the latest outcome per target. It is safe for concurrent
// use; the runner records while the HTTP handlers read.
type Tracker struct {
	mu      sync.RWMutex
	targets map[string]TargetStatus
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{targets: map[string]TargetStatus{}}
}

// Record stores a run outcome. A failed run with a partial report keeps the
// report so the last classification stays visible.
func (t *Tracker) Record(target string, report *monitor.Report, err error) {
	s := TargetStatus{Target: target, LastRun: time.Now().UTC(), Report: report}
	if err != nil {
		s.Error = err.Error()
	}
	t.mu.Lock()
	t.targets[target] = s
	t.mu.Unlock()
}

// Get returns one target's latest status.
func (t *Tracker) Get(target string) (TargetStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.targets[target]
	return s, ok
}

// All returns every target's latest status, sorted by target name.
func (t *Tracker) All() []TargetStatus {
	t.mu.RLock()
	out := make([]TargetStatus, 0, len(t.targets))
	for _, s := range t.targets {
		out = append(out, s)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Handler builds the HTTP surface over a Tracker.
func Handler(tracker *Tracker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, tracker.All())
	})

	r.Get("/status/{target}", func(w http.ResponseWriter, req *http.Request) {
		target := chi.URLParam(req, "target")
		s, ok := tracker.Get(target)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown target " + target})
			return
		}
		writeJSON(w, http.StatusOK, s)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
