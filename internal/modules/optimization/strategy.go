package optimization

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

// Name is the registry name of the mean-variance strategy.
const Name = "meanvariance"

// Params configures the mean-variance strategy.
type Params struct {
	MaxWeight float64 `json:"max_weight" toml:"max_weight"`
	Seed      int64   `json:"seed" toml:"seed"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{MaxWeight: 1.0}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if !(p.MaxWeight > 0 && p.MaxWeight <= 1) || math.IsNaN(p.MaxWeight) {
		return fmt.Errorf("%w: max_weight must be within (0, 1], got %v", domain.ErrInvalidConfiguration, p.MaxWeight)
	}
	return nil
}

// Option customizes a Strategy.
type Option func(*Strategy)

// WithRand injects the random source, overriding the seed in Params.
func WithRand(rng *rand.Rand) Option {
	return func(s *Strategy) { s.rng = rng }
}

// WithProgress registers a progress callback, called once after solving.
func WithProgress(fn domain.ProgressFunc) Option {
	return func(s *Strategy) { s.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Strategy) { s.log = log.With().Str("strategy", Name).Logger() }
}

// Strategy draws size instruments at random from the catalog and allocates
// minimum-variance weights across them.
type Strategy struct {
	params   Params
	rng      *rand.Rand
	progress domain.ProgressFunc
	log      zerolog.Logger
}

// NewStrategy creates the mean-variance strategy.
func NewStrategy(params Params, opts ...Option) *Strategy {
	s := &Strategy{
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
func (s *Strategy) Name() string {
	return Name
}

// Search implements domain.Strategy
func (s *Strategy) Search(ctx context.Context, catalog *domain.Catalog, size int) (*domain.Result, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSearch(catalog, size); err != nil {
		return nil, err
	}

	start := time.Now()
	indices := utils.SampleIndices(s.rng, catalog.Len(), size)
	universe := catalog.Portfolio(indices).Members

	s.log.Debug().
		Int("catalog", catalog.Len()).
		Int("size", size).
		Float64("max_weight", s.params.MaxWeight).
		Msg("Starting mean-variance allocation")

	portfolio, err := NewMVOptimizer(s.params.MaxWeight, s.log).Optimize(ctx, universe)
	if err != nil {
		return nil, err
	}

	score := scoring.Score(portfolio)
	result := domain.NewResult(Name, portfolio.Members, portfolio.Weights, portfolio, score)
	result.Steps = 1
	result.Duration = time.Since(start)

	if s.progress != nil {
		s.progress(domain.Progress{Strategy: Name, Step: 1, Total: 1, BestScore: score})
	}

	s.log.Debug().
		Float64("score", score).
		Floats64("weights", portfolio.Weights).
		Dur("duration", result.Duration).
		Msg("Mean-variance allocation finished")

	return result, nil
}
