package runs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/events"
	testutil "github.com/aristath/stockselect/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	catalog *domain.Catalog
	err     error
}

func (s staticCatalog) Catalog(ctx context.Context) (*domain.Catalog, error) {
	return s.catalog, s.err
}

type memoryCache struct {
	mu      sync.Mutex
	results map[string]*domain.Result
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{results: make(map[string]*domain.Result)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*domain.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	r, ok := c.results[key]
	return r, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result *domain.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) record(e *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.EventType
	for _, e := range l.events {
		if e.Type != events.RunProgress {
			out = append(out, e.Type)
		}
	}
	return out
}

func (l *eventLog) count(t events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func smallDefaults() Defaults {
	d := DefaultDefaults()
	d.Genetic.PopulationSize = 20
	d.Genetic.Generations = 30
	d.Swarm.Particles = 10
	d.Swarm.Iterations = 30
	d.QLearning.Episodes = 100
	return d
}

func newTestService(t *testing.T) (*Service, *Registry, *eventLog) {
	t.Helper()
	bus := events.NewBus()
	log := &eventLog{}
	for _, et := range events.AllTypes {
		bus.Subscribe(et, log.record)
	}
	registry := NewRegistry(smallDefaults())
	catalogs := staticCatalog{catalog: testutil.MustCatalog(t, testutil.ExampleInstruments())}
	svc := NewService(registry, catalogs, newTestRepository(t), events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	return svc, registry, log
}

func registerMock(r *Registry, m *testutil.MockStrategy) {
	r.Register(m.Name(), "mock", struct{}{}, func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
		var s int64
		if seed != nil {
			s = *seed
		}
		return &Built{Strategy: m, Params: json.RawMessage(`{}`), Seed: s}, nil
	})
}

func TestService_RunGenetic(t *testing.T) {
	svc, _, log := newTestService(t)
	seed := int64(1)

	run, err := svc.Run(context.Background(), Request{Strategy: "genetic", Size: 2, Seed: &seed})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, int64(1), run.Seed)
	assert.ElementsMatch(t, []string{"A", "C"}, run.Result.Identifiers())
	assert.InDelta(t, 0.0175/0.075, run.Result.Score, 1e-6)

	assert.Equal(t, []events.EventType{events.RunStarted, events.RunCompleted}, log.types())
	assert.Greater(t, log.count(events.RunProgress), 0)
	assert.LessOrEqual(t, log.count(events.RunProgress), 30)

	stored, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Result.Score, stored.Result.Score)
}

func TestService_RunIsDeterministic(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed := int64(5)
	req := Request{Strategy: "swarm", Size: 2, Seed: &seed}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Result.Identifiers(), second.Result.Identifiers())
}

func TestService_RunErrors(t *testing.T) {
	svc, registry, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{Strategy: "annealing", Size: 2})
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)

	_, err = svc.Run(ctx, Request{Strategy: "genetic", Size: 4})
	assert.ErrorIs(t, err, domain.ErrInsufficientCandidates)

	_, err = svc.Run(ctx, Request{Strategy: "genetic", Size: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.Empty(t, log.types())

	failing := testutil.NewMockStrategy("failing")
	failing.SetError(domain.ErrOptimizationFailure)
	registerMock(registry, failing)

	_, err = svc.Run(ctx, Request{Strategy: "failing", Size: 2})
	assert.ErrorIs(t, err, domain.ErrOptimizationFailure)
	assert.Equal(t, []events.EventType{events.RunStarted, events.RunFailed}, log.types())

	list, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_RunCatalogError(t *testing.T) {
	svc := NewService(NewRegistry(smallDefaults()), staticCatalog{err: domain.ErrNotFound}, nil, nil, zerolog.Nop())
	_, err := svc.Run(context.Background(), Request{Strategy: "genetic", Size: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_RunUsesCache(t *testing.T) {
	svc, registry, log := newTestService(t)
	cache := newMemoryCache()
	svc.SetCache(cache)

	mock := testutil.NewMockStrategy("mock")
	registerMock(registry, mock)
	ctx := context.Background()

	first, err := svc.Run(ctx, Request{Strategy: "mock", Size: 2})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Run(ctx, Request{Strategy: "mock", Size: 2})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result.Identifiers(), second.Result.Identifiers())
	assert.Equal(t, 1, mock.Calls())

	_, err = svc.Run(ctx, Request{Strategy: "mock", Size: 2, NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls())

	_, err = svc.Run(ctx, Request{Strategy: "mock", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, mock.Calls())

	assert.Equal(t, 4, log.count(events.RunCompleted))
	assert.Equal(t, 3, log.count(events.RunStarted))

	list, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestService_RunBatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetMaxConcurrentRuns(2)
	seed := int64(3)

	items, err := svc.RunBatch(context.Background(), []Request{
		{Strategy: "genetic", Size: 2, Seed: &seed},
		{Strategy: "nope", Size: 2},
		{Strategy: "qlearning", Size: 1, Seed: &seed},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NotNil(t, items[0].Run)
	assert.Equal(t, "genetic", items[0].Run.Strategy)
	assert.ErrorIs(t, items[1].Err(), domain.ErrUnknownStrategy)
	assert.NotEmpty(t, items[1].Error)
	require.NotNil(t, items[2].Run)
	assert.Len(t, items[2].Run.Result.Members, 1)
}

func TestService_RunBatchCancelled(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := svc.RunBatch(ctx, []Request{{Strategy: "genetic", Size: 2}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, items, 1)
	assert.Error(t, items[0].Err())
}

func TestService_Compare(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed := int64(11)

	items, err := svc.Compare(context.Background(), 2, &seed)
	require.NoError(t, err)
	require.Len(t, items, 4)

	for _, item := range items {
		require.NoError(t, item.Err(), item.Request.Strategy)
		assert.Equal(t, int64(11), item.Run.Seed)
		testutil.AssertValidSelection(t, testutil.MustCatalog(t, testutil.ExampleInstruments()), item.Run.Result, 2)
	}
	assert.Equal(t, "meanvariance", items[1].Request.Strategy)
	assert.Len(t, items[1].Run.Result.Weights, 2)
}

func TestService_SetMaxConcurrentRunsIgnoresInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetMaxConcurrentRuns(0)
	assert.Equal(t, DefaultMaxConcurrentRuns, svc.maxConcurrent)
}

