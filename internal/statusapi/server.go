// Package statusapi exposes a purely observational HTTP surface over a
// running node: health, membership snapshot, RTT statistics, Prometheus
// metrics, and (when the event log is enabled) recent transition
// history. Nothing reachable through this package can mutate node
// state.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshkeeper/swimd/internal/eventlog"
	"github.com/meshkeeper/swimd/internal/swim"
)

// Source is the read-only view statusapi needs from a running node.
type Source interface {
	Snapshot() swim.Snapshot
}

// Server is the status/metrics HTTP server. EventLog is optional: if nil,
// /history reports 404.
type Server struct {
	source   Source
	eventLog *eventlog.Log
	router   chi.Router
}

// New builds a Server wired to source. eventLog may be nil.
func New(source Source, eventLog *eventlog.Log) *Server {
	s := &Server{source: source, eventLog: eventLog}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/members", s.handleMembers)
	r.Get("/history", s.handleHistory)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ServeHTTP lets Server be passed directly to http.Serve / httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	LocalAddr     string            `json:"local_addr"`
	ActiveCount   int               `json:"active_count"`
	SuspectCount  int               `json:"suspect_count"`
	DeadCount     int               `json:"dead_count"`
	PendingProbes int               `json:"pending_probes"`
	Counters      countersResponse  `json:"counters"`
	RTT           *rttStatsResponse `json:"rtt,omitempty"`
}

type countersResponse struct {
	PingsSent    uint64 `json:"pings_sent"`
	AcksReceived uint64 `json:"acks_received"`
	Timeouts     uint64 `json:"timeouts"`
}

type rttStatsResponse struct {
	MinMs, MaxMs, MeanMs, P50Ms, P95Ms, P99Ms, JitterMs float64
	SampleCount                                         int
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()

	active, suspect, dead := 0, 0, 0
	for _, m := range snap.Members {
		switch m.State.String() {
		case "ACTIVE":
			active++
		case "SUSPECT":
			suspect++
		case "DEAD":
			dead++
		}
	}

	resp := statusResponse{
		LocalAddr:     snap.LocalAddr,
		ActiveCount:   active,
		SuspectCount:  suspect,
		DeadCount:     dead,
		PendingProbes: snap.PendingProbes,
		Counters: countersResponse{
			PingsSent:    snap.Counters.PingsSent,
			AcksReceived: snap.Counters.AcksReceived,
			Timeouts:     snap.Counters.Timeouts,
		},
	}
	if snap.HasStats {
		resp.RTT = &rttStatsResponse{
			MinMs:       snap.Stats.Min.Seconds() * 1000,
			MaxMs:       snap.Stats.Max.Seconds() * 1000,
			MeanMs:      snap.Stats.Mean.Seconds() * 1000,
			P50Ms:       snap.Stats.P50.Seconds() * 1000,
			P95Ms:       snap.Stats.P95.Seconds() * 1000,
			P99Ms:       snap.Stats.P99.Seconds() * 1000,
			JitterMs:    snap.Stats.Jitter.Seconds() * 1000,
			SampleCount: snap.Stats.SampleCount,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	writeJSON(w, http.StatusOK, snap.Members)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeError(w, http.StatusNotFound, "event log is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	events, err := s.eventLog.Recent(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}
