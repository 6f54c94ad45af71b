// Package handlers provides HTTP handlers for the instrument universe.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/rs/zerolog"
)

// Handler handles universe HTTP requests
type Handler struct {
	repo *universe.InstrumentRepository
	log  zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(repo *universe.InstrumentRepository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "universe").Logger(),
	}
}

// HandleGetOptions handles GET /api/universe/options
func (h *Handler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.repo.Options(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dropdown options")
		h.writeError(w, http.StatusInternalServerError, "Failed to load options")
		return
	}

	h.writeJSON(w, http.StatusOK, opts)
}

// HandleGetInstruments handles GET /api/universe/instruments
func (h *Handler) HandleGetInstruments(w http.ResponseWriter, r *http.Request) {
	filters := universe.FiltersFromValues(r.URL.Query())

	headings, err := h.repo.Headings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load headings")
		h.writeError(w, http.StatusInternalServerError, "Failed to load headings")
		return
	}

	instruments, err := h.repo.List(r.Context(), filters)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list instruments")
		h.writeError(w, http.StatusInternalServerError, "Failed to list instruments")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"headings":    headings,
		"instruments": instruments,
		"filters":     filters.Map(),
		"count":       len(instruments),
	})
}

// HandleGetSummary handles GET /api/universe/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	filters := universe.FiltersFromValues(r.URL.Query())

	summary, err := h.repo.Summary(r.Context(), filters)
	if errors.Is(err, universe.ErrEmptySummary) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      err.Error(),
			"error_code": "ERROR_SUMMARY",
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute summary")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":    summary,
		"filters": filters.Map(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
