package swarm

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/modules/scoring"
	testutil "github.com/aristath/stockselect/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_ExampleCatalog(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())

	result, err := New(Params{Particles: 20, Iterations: 10, Inertia: 0.5, Cognitive: 1, Social: 1, Seed: 3}).
		Search(context.Background(), catalog, 2)
	require.NoError(t, err)

	testutil.AssertValidSelection(t, catalog, result, 2)
	ids := result.Identifiers()
	sort.Strings(ids)
	assert.Equal(t, []string{"A", "C"}, ids)
	assert.InDelta(t, 0.0175/0.075, result.Score, 1e-9)
	assert.Equal(t, 10, result.Steps)
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		catalog := testutil.MustCatalog(t, testutil.RandomInstruments(6, seed))
		_, want, err := scoring.BruteForce(catalog, 2)
		require.NoError(t, err)

		result, err := New(Params{Particles: 100, Iterations: 30, Inertia: 0.5, Cognitive: 1, Social: 1, Seed: seed}).
			Search(context.Background(), catalog, 2)
		require.NoError(t, err)

		testutil.AssertValidSelection(t, catalog, result, 2)
		assert.InDelta(t, want, result.Score, 1e-9, "seed %d", seed)
	}
}

func TestSearch_NeverBeatsOracle(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(14, 21))
	_, oracle, err := scoring.BruteForce(catalog, 4)
	require.NoError(t, err)

	result, err := New(DefaultParams()).Search(context.Background(), catalog, 4)
	require.NoError(t, err)

	testutil.AssertValidSelection(t, catalog, result, 4)
	assert.LessOrEqual(t, result.Score, oracle+1e-12)
	assert.InDelta(t, scoring.ScoreMembers(result.Members), result.Score, 1e-12)
}

func TestSearch_Deterministic(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.NewInstrumentFixtures())
	params := DefaultParams()
	params.Seed = 99

	first, err := New(params).Search(context.Background(), catalog, 5)
	require.NoError(t, err)
	second, err := New(params).Search(context.Background(), catalog, 5)
	require.NoError(t, err)

	assert.Equal(t, first.Identifiers(), second.Identifiers())
	assert.Equal(t, first.Score, second.Score)
}

func TestSearch_ParticlesStayValid(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(9, 7))
	s := New(Params{Particles: 10, Iterations: 1, Inertia: 0.9, Cognitive: 1, Social: 1},
		WithRand(rand.New(rand.NewSource(4))))

	for i := 0; i < 30; i++ {
		_, err := s.Search(context.Background(), catalog, 4)
		require.NoError(t, err)
		for _, p := range s.particles {
			require.Len(t, p.position, 4)
			sorted := append([]int(nil), p.position...)
			sort.Ints(sorted)
			for j := 1; j < len(sorted); j++ {
				require.NotEqual(t, sorted[j-1], sorted[j], "duplicate in %v", p.position)
			}
		}
	}
}

func TestSearch_Progress(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.NewInstrumentFixtures())
	var steps int
	var last float64

	_, err := New(DefaultParams(), WithProgress(func(p domain.Progress) {
		steps++
		assert.Equal(t, Name, p.Strategy)
		assert.GreaterOrEqual(t, p.BestScore, last)
		last = p.BestScore
	})).Search(context.Background(), catalog, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultParams().Iterations, steps)
}

func TestSearch_Errors(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())

	tests := []struct {
		name   string
		params Params
		size   int
		want   error
	}{
		{"size exceeds catalog", DefaultParams(), 4, domain.ErrInsufficientCandidates},
		{"zero size", DefaultParams(), 0, domain.ErrInvalidConfiguration},
		{"zero particles", Params{Particles: 0, Iterations: 1}, 2, domain.ErrInvalidConfiguration},
		{"zero iterations", Params{Particles: 1, Iterations: 0}, 2, domain.ErrInvalidConfiguration},
		{"negative inertia", Params{Particles: 1, Iterations: 1, Inertia: -0.1}, 2, domain.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params).Search(context.Background(), catalog, tt.size)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSearch_Cancelled(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.NewInstrumentFixtures())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultParams()).Search(ctx, catalog, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextVelocity_InertiaPrefix(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 1))
	s := New(Params{Particles: 1, Iterations: 1, Inertia: 0.5, Cognitive: 0, Social: 0})
	s.catalog = catalog

	p := &particle{
		position: []int{0, 1, 2},
		best:     []int{0, 1, 2},
		velocity: []Swap{{Slot: 0, Index: 7}, {Slot: 1, Index: 8}, {Slot: 2, Index: 9}, {Slot: 0, Index: 6}},
	}
	assert.Equal(t, []Swap{{Slot: 0, Index: 7}, {Slot: 1, Index: 8}}, s.nextVelocity(p))
}

func TestNextVelocity_PullsTowardBests(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 1))
	s := New(Params{Particles: 1, Iterations: 1, Inertia: 0, Cognitive: 1, Social: 1})
	s.catalog = catalog
	s.globalBest = []int{0, 1, 9}

	p := &particle{position: []int{0, 1, 2}, best: []int{0, 5, 2}}
	// cognitive writes slot 1, social writes slot 2
	assert.Equal(t, []Swap{{Slot: 1, Index: 5}, {Slot: 2, Index: 9}}, s.nextVelocity(p))
}
