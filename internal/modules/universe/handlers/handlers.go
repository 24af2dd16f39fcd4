// Package handlers provides HTTP handlers for the instrument catalog.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/stockselect/internal/modules/universe"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles catalog HTTP requests
type Handler struct {
	service *universe.Service
	repo    *universe.Repository
	log     zerolog.Logger
}

// NewHandler creates a new catalog handler
func NewHandler(service *universe.Service, repo *universe.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		repo:    repo,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// IngestRequest carries raw closing prices per instrument.
type IngestRequest struct {
	Series []universe.Series `json:"series"`
}

// HandleGetInstruments handles GET /api/universe/instruments
func (h *Handler) HandleGetInstruments(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": catalog.Instruments(),
		"metadata": map[string]interface{}{
			"count":        catalog.Len(),
			"refreshed_at": h.service.RefreshedAt().Format(time.RFC3339),
		},
	})
}

// HandleGetInstrument handles GET /api/universe/instruments/{identifier}
func (h *Handler) HandleGetInstrument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	inst, err := h.repo.GetByIdentifier(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": inst})
}

// HandleGetPrices handles GET /api/universe/instruments/{identifier}/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	prices, err := h.repo.GetPrices(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": prices,
		"metadata": map[string]interface{}{
			"identifier": id,
			"count":      len(prices),
		},
	})
}

// HandleRefresh handles POST /api/universe/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Catalog refresh failed")
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"source":      h.service.SourceName(),
			"instruments": n,
		},
	})
}

// HandleIngest handles POST /api/universe/summaries
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	summaries, err := h.service.Ingest(r.Context(), req.Series)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"metadata": map[string]interface{}{
			"count": len(summaries),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := utils.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

