package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response_encode_failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

type runRequest struct {
	DryRun bool `json:"dry_run"`
}

// handleRun triggers an ad-hoc cycle. The cycle itself never fails; a
// non-nil error here means the runner could not start at all.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}

	summary, err := s.runner.RunCycle(r.Context(), req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cycle_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type budgetStatus struct {
	Counter string `json:"counter"`
	Day     string `json:"day"`
	Used    int64  `json:"used"`
	Limit   int64  `json:"limit"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusNotFound, "not_configured", "budget tracking is not enabled")
		return
	}

	day := time.Now().Format("2006-01-02")
	var statuses []budgetStatus
	for _, counter := range s.tracker.CounterTypes() {
		used, limit, err := s.tracker.Usage(r.Context(), counter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "budget_read_failed", err.Error())
			return
		}
		statuses = append(statuses, budgetStatus{Counter: counter, Day: day, Used: used, Limit: limit})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"budgets": statuses})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.audits == nil {
		writeError(w, http.StatusNotFound, "not_configured", "audit trail is not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := s.audits.List(r.Context(), time.Time{}, time.Time{}, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit_read_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cycles": records})
}
