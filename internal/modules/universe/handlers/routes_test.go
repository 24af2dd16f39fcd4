package handlers

import (
	"net/http"
	"net/http/httptest"
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

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/universe/refresh"},
		{http.MethodGet, "/api/universe/instruments"},
		{http.MethodGet, "/api/universe/instruments/A"},
		{http.MethodGet, "/api/universe/instruments/A/prices"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rt.path)
	}
}
