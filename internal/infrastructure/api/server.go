package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"courtwatch/internal/domain"
	"courtwatch/internal/ports"
	"courtwatch/internal/source"
)

const defaultListLimit = 50

// FetchRunner triggers the source fetcher fan-out.
type FetchRunner interface {
	RunAll(ctx context.Context) []source.Result
	RunOne(ctx context.Context, name string) (source.Result, error)
}

// ExtractionRunner triggers one extraction pass.
type ExtractionRunner interface {
	Run(ctx context.Context) error
}

// Server exposes the two trigger entry points and read-only listings
// for the dashboard.
type Server struct {
	ingest     FetchRunner
	extraction ExtractionRunner
	items      ports.ItemStore
	cases      ports.CaseStore
	records    ports.ExtractionStore
	ledger     ports.RunLedger
	logger     *slog.Logger
}

// NewServer wires the trigger runners and the read side.
func NewServer(ingest FetchRunner, extraction ExtractionRunner,
	items ports.ItemStore, cases ports.CaseStore,
	records ports.ExtractionStore, ledger ports.RunLedger,
	logger *slog.Logger) *Server {
	return &Server{
		ingest:     ingest,
		extraction: extraction,
		items:      items,
		cases:      cases,
		records:    records,
		ledger:     ledger,
		logger:     logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/run/fetchers", s.handleRunFetchers).Methods(http.MethodPost)
	r.HandleFunc("/run/fetchers/{name}", s.handleRunFetcher).Methods(http.MethodPost)
	r.HandleFunc("/run/extraction", s.handleRunExtraction).Methods(http.MethodPost)

	r.HandleFunc("/items", s.handleItems).Methods(http.MethodGet)
	r.HandleFunc("/cases", s.handleCases).Methods(http.MethodGet)
	r.HandleFunc("/cases/{name}/updates", s.handleCaseUpdates).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/deadlines", s.handleDeadlines).Methods(http.MethodGet)
	r.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)
	r.HandleFunc("/briefing/latest", s.handleLatestBriefing).Methods(http.MethodGet)
	r.HandleFunc("/runs/latest", s.handleLatestRun).Methods(http.MethodGet)

	return r
}

type fetchResult struct {
	Name     string `json:"name"`
	Inserted int    `json:"inserted"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

func toFetchResults(results []source.Result) []fetchResult {
	out := make([]fetchResult, len(results))
	for i, res := range results {
		out[i] = fetchResult{Name: res.Name, Inserted: res.Inserted, Skipped: res.Skipped}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	return out
}

func (s *Server) handleRunFetchers(w http.ResponseWriter, r *http.Request) {
	results := s.ingest.RunAll(r.Context())
	s.writeJSON(w, http.StatusOK, toFetchResults(results))
}

func (s *Server) handleRunFetcher(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	res, err := s.ingest.RunOne(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFetchResults([]source.Result{res})[0])
}

func (s *Server) handleRunExtraction(w http.ResponseWriter, r *http.Request) {
	if err := s.extraction.Run(r.Context()); err != nil {
		s.logger.Error("extraction trigger failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.RecentItems(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	cases, err := s.cases.ListCases(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleCaseUpdates(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	updates, err := s.cases.CaseUpdates(r.Context(), name, listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updates)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []domain.Event
	var err error
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity := domain.Severity(raw)
		if !domain.ValidSeverity(severity) {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown severity %q", raw))
			return
		}
		events, err = s.records.EventsBySeverity(r.Context(), severity, listLimit(r))
	} else {
		events, err = s.records.RecentEvents(r.Context(), listLimit(r))
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleDeadlines(w http.ResponseWriter, r *http.Request) {
	deadlines, err := s.records.UpcomingDeadlines(r.Context(), time.Now().UTC(), listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deadlines)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.records.RecentActivity(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleLatestBriefing(w http.ResponseWriter, r *http.Request) {
	briefing, err := s.records.LatestBriefing(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if briefing == nil {
		http.Error(w, "no briefing yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, briefing)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.ledger.LatestRun(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		http.Error(w, "no runs yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
