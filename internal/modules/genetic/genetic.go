// Package genetic selects a fixed-size portfolio with a generational genetic
// algorithm over catalog index subsets.
package genetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/modules/scoring"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/rs/zerolog"
)

// Name is the registry name of this strategy.
const Name = "genetic"

// Params configures a genetic search.
type Params struct {
	PopulationSize int     `json:"population_size" toml:"population_size"`
	Generations    int     `json:"generations" toml:"generations"`
	MutationRate   float64 `json:"mutation_rate" toml:"mutation_rate"`
	Seed           int64   `json:"seed" toml:"seed"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		PopulationSize: 50,
		Generations:    100,
		MutationRate:   0.1,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if err := domain.ValidatePositive("population_size", p.PopulationSize); err != nil {
		return err
	}
	if err := domain.ValidatePositive("generations", p.Generations); err != nil {
		return err
	}
	return domain.ValidateProbability("mutation_rate", p.MutationRate)
}

// Option customizes an Algorithm.
type Option func(*Algorithm)

// WithRand injects the random source, overriding the seed in Params.
func WithRand(rng *rand.Rand) Option {
	return func(a *Algorithm) { a.rng = rng }
}

// WithProgress registers a per-generation progress callback.
func WithProgress(fn domain.ProgressFunc) Option {
	return func(a *Algorithm) { a.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Algorithm) { a.log = log.With().Str("strategy", Name).Logger() }
}

// Algorithm is a single-use genetic search. It owns its population and random
// source and is not safe for concurrent use.
type Algorithm struct {
	params   Params
	rng      *rand.Rand
	progress domain.ProgressFunc
	log      zerolog.Logger

	catalog *domain.Catalog
	size    int
}

// individual is a portfolio encoded as catalog indices with a cached score.
type individual struct {
	genes   []int
	fitness float64
}

// New creates a genetic algorithm.
func New(params Params, opts ...Option) *Algorithm {
	a := &Algorithm{
		params: params,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = utils.NewRand(params.Seed)
	}
	return a
}

// Name implements domain.Strategy
func (a *Algorithm) Name() string {
	return Name
}

// Search runs the configured number of generations and returns the best
// portfolio of the final population.
func (a *Algorithm) Search(ctx context.Context, catalog *domain.Catalog, size int) (*domain.Result, error) {
	if err := a.params.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSearch(catalog, size); err != nil {
		return nil, err
	}
	if a.params.PopulationSize/2 < 2 {
		return nil, fmt.Errorf("%w: population of %d leaves fewer than 2 parents after selection",
			domain.ErrInsufficientCandidates, a.params.PopulationSize)
	}

	start := time.Now()
	a.catalog = catalog
	a.size = size

	a.log.Debug().
		Int("catalog", catalog.Len()).
		Int("size", size).
		Int("population", a.params.PopulationSize).
		Int("generations", a.params.Generations).
		Msg("Starting genetic search")

	population := a.initializePopulation()
	for gen := 0; gen < a.params.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("genetic search cancelled at generation %d: %w", gen, err)
		}

		selected, err := a.selection(population)
		if err != nil {
			return nil, err
		}

		next := make([]individual, len(selected), a.params.PopulationSize)
		copy(next, selected)
		for len(next) < a.params.PopulationSize {
			p1, p2 := a.pickParents(selected)
			child := a.crossover(p1.genes, p2.genes)
			a.mutate(child)
			next = append(next, a.evaluate(child))
		}
		population = next

		if a.progress != nil {
			a.progress(domain.Progress{
				Strategy:  Name,
				Step:      gen + 1,
				Total:     a.params.Generations,
				BestScore: best(population).fitness,
			})
		}
	}

	winner := best(population)
	portfolio := catalog.Portfolio(winner.genes)
	result := domain.NewResult(Name, portfolio.Members, nil, portfolio, winner.fitness)
	result.Steps = a.params.Generations
	result.Duration = time.Since(start)

	a.log.Debug().
		Float64("score", winner.fitness).
		Strs("members", portfolio.Identifiers()).
		Dur("duration", result.Duration).
		Msg("Genetic search finished")

	return result, nil
}

func (a *Algorithm) initializePopulation() []individual {
	population := make([]individual, a.params.PopulationSize)
	for i := range population {
		population[i] = a.evaluate(utils.SampleIndices(a.rng, a.catalog.Len(), a.size))
	}
	return population
}

func (a *Algorithm) evaluate(genes []int) individual {
	return individual{genes: genes, fitness: scoring.ScoreIndices(a.catalog, genes)}
}

// selection keeps the fitter half of the population. The sort is stable so
// ties keep population order.
func (a *Algorithm) selection(population []individual) ([]individual, error) {
	ranked := make([]individual, len(population))
	copy(ranked, population)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness > ranked[j].fitness
	})

	keep := a.params.PopulationSize / 2
	if keep < 2 {
		return nil, fmt.Errorf("%w: only %d parents after selection", domain.ErrInsufficientCandidates, keep)
	}
	return ranked[:keep], nil
}

// pickParents draws two parents at distinct positions of the selected pool.
func (a *Algorithm) pickParents(selected []individual) (individual, individual) {
	i := a.rng.Intn(len(selected))
	j := a.rng.Intn(len(selected) - 1)
	if j >= i {
		j++
	}
	return selected[i], selected[j]
}

func best(population []individual) individual {
	winner := individual{fitness: math.Inf(-1)}
	for _, ind := range population {
		if winner.genes == nil || ind.fitness > winner.fitness {
			winner = ind
		}
	}
	return winner
}
