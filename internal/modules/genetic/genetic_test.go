package genetic

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

func newTestAlgorithm(t *testing.T, catalog *domain.Catalog, size int, seed int64) *Algorithm {
	t.Helper()
	a := New(DefaultParams(), WithRand(rand.New(rand.NewSource(seed))))
	a.catalog = catalog
	a.size = size
	return a
}

func assertDistinctInRange(t *testing.T, genes []int, n int) {
	t.Helper()
	seen := make(map[int]bool, len(genes))
	for _, g := range genes {
		assert.GreaterOrEqual(t, g, 0)
		assert.Less(t, g, n)
		assert.False(t, seen[g], "duplicate gene %d in %v", g, genes)
		seen[g] = true
	}
}

func TestSearch_ExampleCatalog(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())

	result, err := New(Params{PopulationSize: 10, Generations: 20, MutationRate: 0.1, Seed: 7}).
		Search(context.Background(), catalog, 2)
	require.NoError(t, err)

	testutil.AssertValidSelection(t, catalog, result, 2)
	ids := result.Identifiers()
	sort.Strings(ids)
	assert.Equal(t, []string{"A", "C"}, ids)
	assert.InDelta(t, 0.0175/0.075, result.Score, 1e-9)
	assert.InDelta(t, 300.0, result.TotalValue, 1e-9)
	assert.Equal(t, Name, result.Strategy)
	assert.Equal(t, 20, result.Steps)
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		catalog := testutil.MustCatalog(t, testutil.RandomInstruments(8, seed))
		_, want, err := scoring.BruteForce(catalog, 3)
		require.NoError(t, err)

		result, err := New(Params{PopulationSize: 40, Generations: 100, MutationRate: 0.2, Seed: seed}).
			Search(context.Background(), catalog, 3)
		require.NoError(t, err)

		testutil.AssertValidSelection(t, catalog, result, 3)
		assert.InDelta(t, want, result.Score, 1e-9, "seed %d", seed)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.NewInstrumentFixtures())
	params := Params{PopulationSize: 20, Generations: 30, MutationRate: 0.3, Seed: 42}

	first, err := New(params).Search(context.Background(), catalog, 4)
	require.NoError(t, err)
	second, err := New(params).Search(context.Background(), catalog, 4)
	require.NoError(t, err)

	assert.Equal(t, first.Identifiers(), second.Identifiers())
	assert.Equal(t, first.Score, second.Score)
}

func TestSearch_WholeCatalog(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())

	result, err := New(Params{PopulationSize: 4, Generations: 5, MutationRate: 1, Seed: 1}).
		Search(context.Background(), catalog, 3)
	require.NoError(t, err)
	testutil.AssertValidSelection(t, catalog, result, 3)
}

func TestSearch_Errors(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())
	empty := testutil.MustCatalog(t, nil)

	tests := []struct {
		name    string
		params  Params
		catalog *domain.Catalog
		size    int
		want    error
	}{
		{"population too small", Params{PopulationSize: 3, Generations: 1, MutationRate: 0.1}, catalog, 2, domain.ErrInsufficientCandidates},
		{"size exceeds catalog", DefaultParams(), catalog, 4, domain.ErrInsufficientCandidates},
		{"zero size", DefaultParams(), catalog, 0, domain.ErrInvalidConfiguration},
		{"empty catalog", DefaultParams(), empty, 1, domain.ErrInvalidConfiguration},
		{"zero population", Params{PopulationSize: 0, Generations: 1, MutationRate: 0.1}, catalog, 2, domain.ErrInvalidConfiguration},
		{"zero generations", Params{PopulationSize: 10, Generations: 0, MutationRate: 0.1}, catalog, 2, domain.ErrInvalidConfiguration},
		{"mutation rate above one", Params{PopulationSize: 10, Generations: 1, MutationRate: 1.5}, catalog, 2, domain.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params).Search(context.Background(), tt.catalog, tt.size)
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

func TestSearch_Progress(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.NewInstrumentFixtures())
	var steps []int
	var last float64

	_, err := New(Params{PopulationSize: 10, Generations: 8, MutationRate: 0.1, Seed: 3},
		WithProgress(func(p domain.Progress) {
			steps = append(steps, p.Step)
			assert.Equal(t, Name, p.Strategy)
			assert.Equal(t, 8, p.Total)
			// elitist selection never loses the best individual
			assert.GreaterOrEqual(t, p.BestScore, last)
			last = p.BestScore
		}),
	).Search(context.Background(), catalog, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, steps)
}

func TestCrossover_SizeAndDistinct(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 1))

	tests := []struct {
		name   string
		p1, p2 []int
	}{
		{"identical parents", []int{0, 1, 2}, []int{0, 1, 2}},
		{"reordered parents", []int{0, 1, 2}, []int{2, 0, 1}},
		{"disjoint parents", []int{0, 1, 2}, []int{7, 8, 9}},
		{"partial overlap", []int{0, 1, 2}, []int{2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAlgorithm(t, catalog, 3, 11)
			for i := 0; i < 200; i++ {
				child := a.crossover(tt.p1, tt.p2)
				require.Len(t, child, 3)
				assertDistinctInRange(t, child, catalog.Len())
			}
		})
	}
}

func TestCrossover_IdenticalParentsReproduceParent(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 2))
	a := newTestAlgorithm(t, catalog, 3, 5)

	child := a.crossover([]int{4, 6, 8}, []int{8, 4, 6})
	sort.Ints(child)
	assert.Equal(t, []int{4, 6, 8}, child)
}

func TestCrossover_MayDropSharedGenes(t *testing.T) {
	// Shared genes are not inherited preferentially: over many draws a gene
	// held by both parents is eventually left out of the child.
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 3))
	a := newTestAlgorithm(t, catalog, 3, 9)

	dropped := false
	for i := 0; i < 500 && !dropped; i++ {
		child := a.crossover([]int{0, 1, 2}, []int{0, 5, 6})
		dropped = !contains(child, 0)
	}
	assert.True(t, dropped)
}

func TestCrossover_DoesNotModifyParents(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(10, 4))
	a := newTestAlgorithm(t, catalog, 3, 1)
	p1, p2 := []int{0, 1, 2}, []int{3, 4, 5}

	_ = a.crossover(p1, p2)
	assert.Equal(t, []int{0, 1, 2}, p1)
	assert.Equal(t, []int{3, 4, 5}, p2)
}

func TestMutate_KeepsDistinct(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(6, 5))
	a := newTestAlgorithm(t, catalog, 4, 2)
	a.params.MutationRate = 1

	genes := []int{0, 1, 2, 3}
	for i := 0; i < 200; i++ {
		a.mutate(genes)
		require.Len(t, genes, 4)
		assertDistinctInRange(t, genes, catalog.Len())
	}
}

func TestMutate_FullCatalogIsNoop(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())
	a := newTestAlgorithm(t, catalog, 3, 2)
	a.params.MutationRate = 1

	genes := []int{2, 0, 1}
	a.mutate(genes)
	assert.Equal(t, []int{2, 0, 1}, genes)
}

func TestMutate_ZeroRateIsNoop(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.RandomInstruments(8, 6))
	a := newTestAlgorithm(t, catalog, 3, 2)
	a.params.MutationRate = 0

	genes := []int{0, 1, 2}
	for i := 0; i < 50; i++ {
		a.mutate(genes)
	}
	assert.Equal(t, []int{0, 1, 2}, genes)
}

func TestSelection_KeepsFitterHalf(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())
	a := newTestAlgorithm(t, catalog, 1, 1)
	a.params.PopulationSize = 4

	population := []individual{
		{genes: []int{0}, fitness: 0.1},
		{genes: []int{1}, fitness: 0.4},
		{genes: []int{2}, fitness: 0.3},
		{genes: []int{0}, fitness: 0.2},
	}
	selected, err := a.selection(population)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, 0.4, selected[0].fitness)
	assert.Equal(t, 0.3, selected[1].fitness)
	// input order untouched
	assert.Equal(t, 0.1, population[0].fitness)
}

func TestPickParents_Distinct(t *testing.T) {
	catalog := testutil.MustCatalog(t, testutil.ExampleInstruments())
	a := newTestAlgorithm(t, catalog, 1, 1)
	selected := []individual{{genes: []int{0}}, {genes: []int{1}}}

	for i := 0; i < 50; i++ {
		p1, p2 := a.pickParents(selected)
		assert.NotEqual(t, p1.genes[0], p2.genes[0])
	}
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
