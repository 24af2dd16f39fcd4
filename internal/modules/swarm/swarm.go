// Package swarm selects a fixed-size portfolio with a discrete particle swarm.
// Particles are index sets and velocities are ordered slot swaps.
package swarm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/modules/scoring"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/rs/zerolog"
)

// Name is the registry name of this strategy.
const Name = "swarm"

// Params configures a swarm search.
type Params struct {
	Particles  int     `json:"particles" toml:"particles"`
	Iterations int     `json:"iterations" toml:"iterations"`
	Inertia    float64 `json:"inertia" toml:"inertia"`
	Cognitive  float64 `json:"cognitive" toml:"cognitive"`
	Social     float64 `json:"social" toml:"social"`
	Seed       int64   `json:"seed" toml:"seed"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		Particles:  30,
		Iterations: 100,
		Inertia:    0.5,
		Cognitive:  1.0,
		Social:     1.0,
	}
}

// Validate checks the parameters. Coefficients above 1 are allowed and mean
// "always keep" when filtering swaps.
func (p Params) Validate() error {
	if err := domain.ValidatePositive("particles", p.Particles); err != nil {
		return err
	}
	if err := domain.ValidatePositive("iterations", p.Iterations); err != nil {
		return err
	}
	for name, v := range map[string]float64{"inertia": p.Inertia, "cognitive": p.Cognitive, "social": p.Social} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite non-negative number, got %v", domain.ErrInvalidConfiguration, name, v)
		}
	}
	return nil
}

// Option customizes a Swarm.
type Option func(*Swarm)

// WithRand injects the random source, overriding the seed in Params.
func WithRand(rng *rand.Rand) Option {
	return func(s *Swarm) { s.rng = rng }
}

// WithProgress registers a per-iteration progress callback.
func WithProgress(fn domain.ProgressFunc) Option {
	return func(s *Swarm) { s.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Swarm) { s.log = log.With().Str("strategy", Name).Logger() }
}

type particle struct {
	position  []int
	velocity  []Swap
	best      []int
	bestScore float64
}

// Swarm is a single-use particle swarm search. Not safe for concurrent use.
type Swarm struct {
	params   Params
	rng      *rand.Rand
	progress domain.ProgressFunc
	log      zerolog.Logger

	catalog     *domain.Catalog
	particles   []*particle
	globalBest  []int
	globalScore float64
}

// New creates a particle swarm search.
func New(params Params, opts ...Option) *Swarm {
	s := &Swarm{
		params: params,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = utils.NewRand(params.Seed)
	}
	return s
}

// Name implements domain.Strategy
func (s *Swarm) Name() string {
	return Name
}

// Search moves the swarm for the configured number of iterations and returns
// the best position any particle visited.
func (s *Swarm) Search(ctx context.Context, catalog *domain.Catalog, size int) (*domain.Result, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSearch(catalog, size); err != nil {
		return nil, err
	}

	start := time.Now()
	s.catalog = catalog
	s.globalBest = nil
	s.globalScore = math.Inf(-1)
	s.particles = make([]*particle, s.params.Particles)
	for i := range s.particles {
		s.particles[i] = &particle{
			position:  utils.SampleIndices(s.rng, catalog.Len(), size),
			bestScore: math.Inf(-1),
		}
	}

	s.log.Debug().
		Int("catalog", catalog.Len()).
		Int("size", size).
		Int("particles", s.params.Particles).
		Int("iterations", s.params.Iterations).
		Msg("Starting swarm search")

	for iter := 0; iter < s.params.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("swarm search cancelled at iteration %d: %w", iter, err)
		}

		s.evaluate()
		for _, p := range s.particles {
			p.velocity = s.nextVelocity(p)
			p.position = ApplyVelocity(p.position, p.velocity, catalog.Len())
		}

		if s.progress != nil {
			s.progress(domain.Progress{
				Strategy:  Name,
				Step:      iter + 1,
				Total:     s.params.Iterations,
				BestScore: s.globalScore,
			})
		}
	}

	portfolio := catalog.Portfolio(s.globalBest)
	result := domain.NewResult(Name, portfolio.Members, nil, portfolio, s.globalScore)
	result.Steps = s.params.Iterations
	result.Duration = time.Since(start)

	s.log.Debug().
		Float64("score", s.globalScore).
		Strs("members", portfolio.Identifiers()).
		Dur("duration", result.Duration).
		Msg("Swarm search finished")

	return result, nil
}

// evaluate scores every particle and records strict improvements.
func (s *Swarm) evaluate() {
	for _, p := range s.particles {
		score := scoring.ScoreIndices(s.catalog, p.position)
		if score > p.bestScore {
			p.bestScore = score
			p.best = clone(p.position)
		}
		if score > s.globalScore {
			s.globalScore = score
			s.globalBest = clone(p.position)
		}
	}
}

// nextVelocity keeps the inertia prefix of the previous velocity and appends
// the randomly filtered pulls toward the personal and global bests.
func (s *Swarm) nextVelocity(p *particle) []Swap {
	keep := int(s.params.Inertia * float64(len(p.velocity)))
	if keep > len(p.velocity) {
		keep = len(p.velocity)
	}
	next := make([]Swap, 0, keep+2*len(p.position))
	next = append(next, p.velocity[:keep]...)
	next = append(next, s.filter(Difference(p.position, p.best), s.params.Cognitive)...)
	if s.globalBest != nil {
		next = append(next, s.filter(Difference(p.position, s.globalBest), s.params.Social)...)
	}
	return MergeVelocity(next)
}

// filter keeps each swap independently with probability prob.
func (s *Swarm) filter(swaps []Swap, prob float64) []Swap {
	kept := swaps[:0]
	for _, sw := range swaps {
		if s.rng.Float64() < prob {
			kept = append(kept, sw)
		}
	}
	return kept
}

func clone(xs []int) []int {
	out := make([]int, len(xs))
	copy(out, xs)
	return out
}
