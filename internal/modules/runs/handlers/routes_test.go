package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	h, _ := setupHandler(t)
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		router.Route("/api", h.RegisterRoutes)
	})

	rec := do(router, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/runs/strategies", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodDelete, "/api/runs/strategies", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
