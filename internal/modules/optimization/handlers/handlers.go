// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Error codes returned to clients
const (
	ErrorFields = "ERROR_FIELDS"
	ErrorEmpty  = "ERROR_EMPTY"
	ErrorSolve  = "ERROR_SOLVE"
)

// Handler handles optimization HTTP requests
type Handler struct {
	service     *optimization.OptimizerService
	instruments *universe.InstrumentRepository
	runs        *optimization.RunRepository
	log         zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(
	service *optimization.OptimizerService,
	instruments *universe.InstrumentRepository,
	runs *optimization.RunRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:     service,
		instruments: instruments,
		runs:        runs,
		log:         log.With().Str("handler", "optimization").Logger(),
	}
}

// fieldValue is a form field as typed by the user. JSON numbers are
// accepted and kept in their literal form.
type fieldValue string

func (f *fieldValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = fieldValue(s)
		return nil
	}
	*f = fieldValue(b)
	return nil
}

// RunRequest is the body of POST /api/optimizer/run
type RunRequest struct {
	Objective               string            `json:"objective"`
	UpperBound              fieldValue        `json:"upper_bound"`
	WeightedAverageDuration fieldValue        `json:"weighted_average_duration"`
	SectorCap               fieldValue        `json:"sector_cap"`
	Filters                 map[string]string `json:"filters"`
}

// AllocationResponse is one retained weight joined with its instrument
type AllocationResponse struct {
	Weight     float64             `json:"weight"`
	Instrument universe.Instrument `json:"instrument"`
}

// HandleRun handles POST /api/optimizer/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := optimization.ParseRequest(
		body.Objective,
		string(body.UpperBound),
		string(body.WeightedAverageDuration),
		string(body.SectorCap),
	)
	if err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error_code": ErrorFields,
			"error":      err.Error(),
		})
		return
	}

	filters := universe.FiltersFromMap(body.Filters)
	instruments, err := h.instruments.List(r.Context(), filters)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load instruments")
		http.Error(w, "Failed to load instruments", http.StatusInternalServerError)
		return
	}

	result := h.service.Optimize(r.Context(), req, universe.Rows(instruments, req.Objective), optimization.WithFilters(filters.Map()))
	if !result.OK() {
		h.writeRejection(w, result)
		return
	}

	allocations := make([]AllocationResponse, 0, len(result.Allocations))
	for _, a := range result.Allocations {
		inst := instruments[a.Index]
		if inst.Key() != a.Row.Key {
			h.log.Error().
				Str("run_id", result.RunID).
				Str("expected", a.Row.Key).
				Str("got", inst.Key()).
				Msg("Allocation does not line up with instruments")
			http.Error(w, "Allocation alignment error", http.StatusInternalServerError)
			return
		}
		allocations = append(allocations, AllocationResponse{Weight: a.Weight, Instrument: inst})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":          result.RunID,
		"status":          result.Status,
		"objective":       req.Objective,
		"objective_value": result.ObjectiveValue,
		"allocations":     allocations,
	})
}

func (h *Handler) writeRejection(w http.ResponseWriter, result *optimization.Result) {
	payload := map[string]interface{}{
		"run_id": result.RunID,
		"error":  result.Diagnostic,
	}

	var solveErr *optimization.SolveError
	switch err := result.Err(); {
	case errors.Is(err, optimization.ErrInvalidParameters):
		payload["error_code"] = ErrorFields
	case errors.Is(err, optimization.ErrEmptyUniverse):
		payload["error_code"] = ErrorEmpty
	case errors.As(err, &solveErr):
		payload["error_code"] = ErrorSolve
		payload["status"] = solveErr.Status
	default:
		payload["error_code"] = ErrorSolve
		payload["status"] = result.Status
	}

	h.writeJSON(w, http.StatusUnprocessableEntity, payload)
}

// HandleListRuns handles GET /api/optimizer/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list optimization runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/optimizer/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get optimization run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
