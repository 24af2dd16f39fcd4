// Package handlers provides HTTP handlers for strategy runs.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/modules/runs"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles run HTTP requests
type Handler struct {
	service        *runs.Service
	bus            *events.Bus
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new run handler. originPatterns is passed to the
// websocket upgrader; nil allows same-origin clients only.
func NewHandler(service *runs.Service, bus *events.Bus, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		bus:            bus,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "runs").Logger(),
	}
}

// CompareRequest runs every strategy with one size and seed.
type CompareRequest struct {
	Size int    `json:"size"`
	Seed *int64 `json:"seed,omitempty"`
}

// BatchRequest runs several requests concurrently.
type BatchRequest struct {
	Runs []runs.Request `json:"runs"`
}

// HandleGetStrategies handles GET /api/runs/strategies
func (h *Handler) HandleGetStrategies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.service.Registry().Strategies(),
	})
}

// HandleCreateRun handles POST /api/runs
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	run, err := h.service.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": run})
}

// HandleCompare handles POST /api/runs/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Size <= 0 {
		h.writeError(w, fmt.Errorf("%w: size must be positive", domain.ErrInvalidConfiguration))
		return
	}

	items, err := h.service.Compare(r.Context(), req.Size, req.Seed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     items,
		"metadata": batchMetadata(items),
	})
}

// HandleBatch handles POST /api/runs/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if len(req.Runs) == 0 {
		h.writeError(w, fmt.Errorf("%w: no runs requested", domain.ErrInvalidConfiguration))
		return
	}

	items, err := h.service.RunBatch(r.Context(), req.Runs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     items,
		"metadata": batchMetadata(items),
	})
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := runs.ListFilter{Strategy: r.URL.Query().Get("strategy")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		filter.Limit = limit
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": list,
		"metadata": map[string]interface{}{
			"count": len(list),
		},
	})
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": run})
}

func batchMetadata(items []runs.BatchItem) map[string]interface{} {
	failed := 0
	for _, item := range items {
		if item.Err() != nil {
			failed++
		}
	}
	return map[string]interface{}{
		"count":  len(items),
		"failed": failed,
	}
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
