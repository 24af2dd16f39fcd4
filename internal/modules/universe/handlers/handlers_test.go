package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/stockselect/internal/database"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/modules/universe"
	testutil "github.com/aristath/stockselect/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (*Handler, *universe.Repository) {
	t.Helper()
	logger := zerolog.Nop()
	db := testutil.NewTestDB(t, database.NameUniverse)
	repo := universe.NewRepository(db.Conn(), logger)
	src := testutil.NewMockCatalogSource(testutil.ExampleInstruments())
	svc := universe.NewService(src, repo, events.NewManager(events.NewBus(), logger), logger)
	return NewHandler(svc, repo, logger), repo
}

func serve(h *Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Route("/api", h.RegisterRoutes)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetInstruments_EmptyCatalog(t *testing.T) {
	h, _ := setupHandler(t)
	rec := serve(h, http.MethodGet, "/api/universe/instruments", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not found")
}

func TestHandleRefreshThenList(t *testing.T) {
	h, _ := setupHandler(t)

	rec := serve(h, http.MethodPost, "/api/universe/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var refresh struct {
		Data struct {
			Source      string `json:"source"`
			Instruments int    `json:"instruments"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refresh))
	assert.Equal(t, "mock", refresh.Data.Source)
	assert.Equal(t, 3, refresh.Data.Instruments)

	rec = serve(h, http.MethodGet, "/api/universe/instruments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data     []map[string]interface{} `json:"data"`
		Metadata map[string]interface{}   `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 3)
	assert.Equal(t, float64(3), list.Metadata["count"])
}

func TestHandleGetInstrument(t *testing.T) {
	h, repo := setupHandler(t)
	require.NoError(t, repo.ReplaceAll(context.Background(), testutil.ExampleInstruments(), "csv"))

	rec := serve(h, http.MethodGet, "/api/universe/instruments/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"identifier":"B"`)

	rec = serve(h, http.MethodGet, "/api/universe/instruments/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIngest(t *testing.T) {
	h, _ := setupHandler(t)

	body, err := json.Marshal(IngestRequest{Series: []universe.Series{{
		Identifier: "X",
		Prices: []universe.PricePoint{
			{Date: "2024-01-02", Close: 100},
			{Date: "2024-01-03", Close: 110},
			{Date: "2024-01-04", Close: 99},
		},
	}}})
	require.NoError(t, err)

	rec := serve(h, http.MethodPost, "/api/universe/summaries", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"identifier":"X"`)

	rec = serve(h, http.MethodGet, "/api/universe/instruments/X/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestHandleIngest_BadRequests(t *testing.T) {
	h, _ := setupHandler(t)

	rec := serve(h, http.MethodPost, "/api/universe/summaries", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, "/api/universe/summaries", []byte(`{"series":[{"identifier":"X","prices":[{"date":"1","close":1}]}]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
