// Package qlearning builds a portfolio one instrument at a time with
// tabular Q-learning over partial selections.
package qlearning

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
const Name = "qlearning"

// Params configures a Q-learning search.
type Params struct {
	Episodes     int     `json:"episodes" toml:"episodes"`
	Epsilon      float64 `json:"epsilon" toml:"epsilon"`
	LearningRate float64 `json:"learning_rate" toml:"learning_rate"`
	Discount     float64 `json:"discount" toml:"discount"`
	Seed         int64   `json:"seed" toml:"seed"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		Episodes:     500,
		Epsilon:      0.2,
		LearningRate: 0.1,
		Discount:     0.9,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if err := domain.ValidatePositive("episodes", p.Episodes); err != nil {
		return err
	}
	if err := domain.ValidateProbability("epsilon", p.Epsilon); err != nil {
		return err
	}
	if err := domain.ValidateProbability("learning_rate", p.LearningRate); err != nil {
		return err
	}
	return domain.ValidateProbability("discount", p.Discount)
}

// Option customizes a Learner.
type Option func(*Learner)

// WithRand injects the random source, overriding the seed in Params.
func WithRand(rng *rand.Rand) Option {
	return func(l *Learner) { l.rng = rng }
}

// WithProgress registers a per-episode progress callback.
func WithProgress(fn domain.ProgressFunc) Option {
	return func(l *Learner) { l.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Learner) { l.log = log.With().Str("strategy", Name).Logger() }
}

// Learner is a single-use Q-learning search. Its table lives for one Search.
type Learner struct {
	params   Params
	rng      *rand.Rand
	progress domain.ProgressFunc
	log      zerolog.Logger

	catalog  *domain.Catalog
	table    *Table
	rejected int
}

// New creates a Q-learning search.
func New(params Params, opts ...Option) *Learner {
	l := &Learner{
		params: params,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rng == nil {
		l.rng = utils.NewRand(params.Seed)
	}
	return l
}

// Name implements domain.Strategy
func (l *Learner) Name() string {
	return Name
}

// Table returns the value table of the last search.
func (l *Learner) Table() *Table {
	return l.table
}

// Search plays the configured number of episodes and returns the best final
// portfolio seen in any episode.
func (l *Learner) Search(ctx context.Context, catalog *domain.Catalog, size int) (*domain.Result, error) {
	if err := l.params.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSearch(catalog, size); err != nil {
		return nil, err
	}

	start := time.Now()
	l.catalog = catalog
	l.table = NewTable(l.params.LearningRate, l.params.Discount)
	l.rejected = 0

	l.log.Debug().
		Int("catalog", catalog.Len()).
		Int("size", size).
		Int("episodes", l.params.Episodes).
		Msg("Starting Q-learning search")

	var best []int
	bestScore := math.Inf(-1)
	for ep := 0; ep < l.params.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("q-learning search cancelled at episode %d: %w", ep, err)
		}

		selection := l.episode(size)
		if score := scoring.ScoreIndices(catalog, selection); best == nil || score > bestScore {
			best, bestScore = selection, score
		}

		if l.progress != nil {
			l.progress(domain.Progress{
				Strategy:  Name,
				Step:      ep + 1,
				Total:     l.params.Episodes,
				BestScore: bestScore,
			})
		}
	}

	if l.rejected > 0 {
		l.log.Warn().Int("rejected", l.rejected).Msg("Skipped non-finite Q-table updates")
	}

	portfolio := catalog.Portfolio(best)
	result := domain.NewResult(Name, portfolio.Members, nil, portfolio, bestScore)
	result.Steps = l.params.Episodes
	result.Duration = time.Since(start)

	l.log.Debug().
		Float64("score", bestScore).
		Strs("members", portfolio.Identifiers()).
		Int("states", l.table.Len()).
		Dur("duration", result.Duration).
		Msg("Q-learning search finished")

	return result, nil
}

// episode builds one selection of up to size instruments, updating the
// table after every step.
func (l *Learner) episode(size int) []int {
	n := l.catalog.Len()
	taken := make([]bool, n)
	selection := make([]int, 0, size)

	for step := 0; step < size; step++ {
		stateKey := Key(selection)
		action, ok := l.chooseAction(selection, taken)
		if !ok {
			break
		}
		selection = append(selection, action)
		taken[action] = true

		reward := scoring.ScoreIndices(l.catalog, selection)
		_, future, _ := l.table.BestSuccessor(selection, taken)
		if _, ok := l.table.Update(stateKey, reward, future); !ok {
			l.rejected++
			l.log.Debug().Str("state", stateKey).Float64("reward", reward).Float64("future", future).
				Msg("Rejected non-finite Q-table update")
		}
	}
	return selection
}

// chooseAction is epsilon-greedy over the unselected instruments.
func (l *Learner) chooseAction(selection []int, taken []bool) (int, bool) {
	if l.rng.Float64() < l.params.Epsilon {
		free := utils.Complement(len(taken), selection)
		if len(free) == 0 {
			return -1, false
		}
		return free[l.rng.Intn(len(free))], true
	}
	action, _, ok := l.table.BestSuccessor(selection, taken)
	return action, ok
}
