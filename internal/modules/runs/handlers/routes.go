package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Post("/", h.HandleCreateRun)
		r.Get("/strategies", h.HandleGetStrategies)
		r.Post("/compare", h.HandleCompare)
		r.Post("/batch", h.HandleBatch)
		r.Get("/stream", h.HandleStream)
		r.Get("/{id}", h.HandleGetRun)
	})
}
