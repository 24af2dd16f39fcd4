package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/stockselect/internal/database"
	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/events"
	"github.com/aristath/stockselect/internal/modules/runs"
	testutil "github.com/aristath/stockselect/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type staticCatalog struct {
	catalog *domain.Catalog
}

func (s staticCatalog) Catalog(ctx context.Context) (*domain.Catalog, error) {
	return s.catalog, nil
}

func setupHandler(t *testing.T) (*Handler, *events.Bus) {
	t.Helper()
	logger := zerolog.Nop()
	db := testutil.NewTestDB(t, database.NameRuns)
	bus := events.NewBus()

	defaults := runs.DefaultDefaults()
	defaults.Genetic.PopulationSize = 20
	defaults.Genetic.Generations = 20
	defaults.Swarm.Iterations = 20
	defaults.QLearning.Episodes = 50

	svc := runs.NewService(
		runs.NewRegistry(defaults),
		staticCatalog{catalog: testutil.MustCatalog(t, testutil.ExampleInstruments())},
		runs.NewRepository(db.Conn(), logger),
		events.NewManager(bus, logger),
		logger,
	)
	return NewHandler(svc, bus, nil, logger), bus
}

func newRouter(h *Handler) chi.Router {
	router := chi.NewRouter()
	router.Route("/api", h.RegisterRoutes)
	return router
}

func do(router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetStrategies(t *testing.T) {
	h, _ := setupHandler(t)
	rec := do(newRouter(h), http.MethodGet, "/api/runs/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []runs.StrategyInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 4)
	assert.Equal(t, "genetic", resp.Data[0].Name)
}

func TestHandleCreateRunThenGet(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	rec := do(router, http.MethodPost, "/api/runs", `{"strategy":"genetic","size":2,"seed":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		Data runs.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.ElementsMatch(t, []string{"A", "C"}, created.Data.Result.Identifiers())

	rec = do(router, http.MethodGet, "/api/runs/"+created.Data.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Data.ID)

	rec = do(router, http.MethodGet, "/api/runs?strategy=genetic&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestHandleCreateRun_Errors(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"unknown strategy", `{"strategy":"annealing","size":2}`, http.StatusBadRequest},
		{"size too large", `{"strategy":"genetic","size":9}`, http.StatusBadRequest},
		{"bad params", `{"strategy":"swarm","size":2,"params":{"particles":0}}`, http.StatusBadRequest},
		{"infeasible weights", `{"strategy":"meanvariance","size":2,"params":{"max_weight":0.2}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHandleGetRun_NotFound(t *testing.T) {
	h, _ := setupHandler(t)
	rec := do(newRouter(h), http.MethodGet, "/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListRuns_BadLimit(t *testing.T) {
	h, _ := setupHandler(t)
	rec := do(newRouter(h), http.MethodGet, "/api/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompare(t *testing.T) {
	h, _ := setupHandler(t)
	rec := do(newRouter(h), http.MethodPost, "/api/runs/compare", `{"size":2,"seed":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data     []runs.BatchItem       `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 4)
	assert.Equal(t, float64(0), resp.Metadata["failed"])

	rec = do(newRouter(h), http.MethodPost, "/api/runs/compare", `{"size":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBatch(t *testing.T) {
	h, _ := setupHandler(t)
	body := `{"runs":[{"strategy":"genetic","size":2},{"strategy":"bogus","size":2}]}`
	rec := do(newRouter(h), http.MethodPost, "/api/runs/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed":1`)

	rec = do(newRouter(h), http.MethodPost, "/api/runs/batch", `{"runs":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream(t *testing.T) {
	h, bus := setupHandler(t)
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/runs/stream?types=RUN_STARTED,RUN_COMPLETED"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.RunCompleted) > 0
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json",
		bytes.NewBufferString(`{"strategy":"qlearning","size":2,"seed":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first, second events.Event
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &second))

	assert.Equal(t, events.RunStarted, first.Type)
	assert.Equal(t, events.RunCompleted, second.Type)
	assert.Equal(t, "qlearning", second.Data["strategy"])
	assert.Equal(t, first.Data["run_id"], second.Data["run_id"])
}
