// Package webapi exposes the harness over a small JSON REST surface: runs,
// trials with resolved timelines, comparisons, and offline evaluation.
package webapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/spboyer/gdabench/internal/compare"
	"github.com/spboyer/gdabench/internal/lifecycle"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/store"
	"github.com/spboyer/gdabench/internal/timeline"
	"github.com/spboyer/gdabench/internal/trace"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	store    store.Store
	manager  *lifecycle.Manager
	comparer *compare.Engine
}

// NewHandlers creates the API handlers.
func NewHandlers(st store.Store, manager *lifecycle.Manager, comparer *compare.Engine) *Handlers {
	return &Handlers{store: st, manager: manager, comparer: comparer}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/agents", h.HandleAgents)
	mux.HandleFunc("GET /api/suites", h.HandleSuites)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("GET /api/trials/{id}", h.HandleTrialDetail)
	mux.HandleFunc("POST /api/trials/{id}/evaluate", h.HandleEvaluate)
	mux.HandleFunc("POST /api/suggestions/{id}/accept", h.HandleAcceptSuggestion)
	mux.HandleFunc("GET /api/compare", h.HandleCompare)
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// HandleAgents lists registered agents. Looker secrets never serialize.
func (h *Handlers) HandleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// HandleSuites lists live suites.
func (h *Handlers) HandleSuites(w http.ResponseWriter, r *http.Request) {
	suites, err := h.store.ListSuites(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, suites)
}

// HandleRuns lists runs newest-first, with each run's recomputed aggregate.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]RunSummary, 0, len(runs))
	for i := range runs {
		trials, err := h.store.ListTrials(r.Context(), runs[i].ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, runSummary(&runs[i], trials))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRunDetail returns one run with all of its trials.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "run not found")
		return
	}
	trials, err := h.store.ListTrials(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail := RunDetail{
		RunSummary:           runSummary(run, trials),
		AgentContextSnapshot: run.AgentContextSnapshot,
		Trials:               make([]TrialSummary, 0, len(trials)),
	}
	for i := range trials {
		detail.Trials = append(detail.Trials, trialSummary(&trials[i]))
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleTrialDetail returns one trial with its assertion results, pending
// suggestions, and the timeline resolved from its stored trace.
func (h *Handlers) HandleTrialDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	trial, err := h.store.GetTrial(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "trial not found")
		return
	}

	detail := TrialDetail{
		TrialSummary:     trialSummary(trial),
		OutputText:       trial.OutputText,
		ErrorTraceback:   trial.ErrorTraceback,
		TTFRMS:           trial.TTFRMS,
		Asserts:          trial.Asserts,
		AssertionResults: trial.AssertionResults,
	}

	if suggestions, err := h.store.ListSuggestions(r.Context(), id); err == nil {
		detail.Suggestions = suggestions
	}

	if len(trial.TraceResults) > 0 {
		messages := trace.Normalize(trial.TraceResults)
		detail.Timeline = timeline.Build(messages, timeline.Options{
			TTFRMS:          trial.TTFRMS,
			TotalDurationMS: trial.DurationMS,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleEvaluate runs new assertions against a trial's stored trace without
// touching the trial.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Asserts) == 0 {
		writeError(w, http.StatusBadRequest, "asserts is required")
		return
	}

	results, err := h.manager.EvaluateOffline(r.Context(), id, req.Asserts)
	if err != nil {
		writeStoreError(w, err, "trial not found")
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Results: results})
}

// HandleAcceptSuggestion marks a suggested assertion accepted.
func (h *Handlers) HandleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.SetSuggestionAccepted(r.Context(), id, true); err != nil {
		writeStoreError(w, err, "suggestion not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// HandleCompare compares two runs given as ?base=...&challenger=...
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	challenger := r.URL.Query().Get("challenger")
	if base == "" || challenger == "" {
		writeError(w, http.StatusBadRequest, "base and challenger are required")
		return
	}

	result, err := h.comparer.CompareRuns(r.Context(), base, challenger)
	if err != nil {
		writeStoreError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func runSummary(run *models.Run, trials []models.Trial) RunSummary {
	agg := models.Aggregate(trials)
	return RunSummary{
		ID:            run.ID,
		AgentID:       run.AgentID,
		SuiteID:       run.OriginalSuiteID,
		Status:        run.Status,
		Total:         agg.Total,
		Completed:     agg.Completed,
		Failed:        agg.Failed,
		Accuracy:      agg.Accuracy,
		AvgDurationMS: agg.AvgDurationMS,
		CreatedAt:     run.CreatedAt,
	}
}

func trialSummary(t *models.Trial) TrialSummary {
	return TrialSummary{
		ID:                t.ID,
		OriginalExampleID: t.OriginalExampleID,
		Question:          t.Question,
		Status:            t.Status,
		FailedStage:       t.FailedStage,
		Score:             t.Score(),
		DurationMS:        t.DurationMS,
		ErrorMessage:      t.ErrorMessage,
	}
}

func writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}
