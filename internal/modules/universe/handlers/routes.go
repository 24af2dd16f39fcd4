package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers catalog routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/instruments", h.HandleGetInstruments)
		r.Get("/instruments/{identifier}", h.HandleGetInstrument)
		r.Get("/instruments/{identifier}/prices", h.HandleGetPrices)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/summaries", h.HandleIngest)
	})
}
