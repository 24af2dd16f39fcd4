// Package runs executes strategy searches on the current catalog, records
// their history and caches deterministic results.
package runs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/internal/modules/genetic"
	"github.com/aristath/stockselect/internal/modules/optimization"
	"github.com/aristath/stockselect/internal/modules/qlearning"
	"github.com/aristath/stockselect/internal/modules/swarm"
	"github.com/rs/zerolog"
)

// Defaults holds the configured parameter set of every strategy.
type Defaults struct {
	Genetic      genetic.Params      `toml:"genetic" json:"genetic"`
	Swarm        swarm.Params        `toml:"swarm" json:"swarm"`
	QLearning    qlearning.Params    `toml:"qlearning" json:"qlearning"`
	MeanVariance optimization.Params `toml:"meanvariance" json:"meanvariance"`
}

// DefaultDefaults returns each strategy's stock parameters.
func DefaultDefaults() Defaults {
	return Defaults{
		Genetic:      genetic.DefaultParams(),
		Swarm:        swarm.DefaultParams(),
		QLearning:    qlearning.DefaultParams(),
		MeanVariance: optimization.DefaultParams(),
	}
}

// Validate checks every strategy's parameters.
func (d Defaults) Validate() error {
	for name, p := range map[string]interface{ Validate() error }{
		genetic.Name:      d.Genetic,
		swarm.Name:        d.Swarm,
		qlearning.Name:    d.QLearning,
		optimization.Name: d.MeanVariance,
	} {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s defaults: %w", name, err)
		}
	}
	return nil
}

// Built is a configured strategy with the parameters it was built from.
type Built struct {
	Strategy domain.Strategy
	Params   json.RawMessage
	Seed     int64
}

// Factory builds a strategy from per-request overrides. seed, when set,
// replaces the configured seed.
type Factory func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error)

// StrategyInfo describes a registered strategy.
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Defaults    json.RawMessage `json:"defaults"`
}

type entry struct {
	info    StrategyInfo
	factory Factory
}

// Registry maps strategy names to factories.
type Registry struct {
	entries map[string]entry
}

// NewRegistry registers the four strategies with the given defaults.
func NewRegistry(defaults Defaults) *Registry {
	r := &Registry{entries: make(map[string]entry)}

	r.Register(genetic.Name, "Generational genetic algorithm over index subsets", defaults.Genetic,
		func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
			p := defaults.Genetic
			if err := resolve(overrides, seed, &p, &p.Seed); err != nil {
				return nil, err
			}
			return built(genetic.New(p, genetic.WithProgress(progress), genetic.WithLogger(log)), p, p.Seed)
		})

	r.Register(swarm.Name, "Discrete particle swarm with swap-sequence velocities", defaults.Swarm,
		func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
			p := defaults.Swarm
			if err := resolve(overrides, seed, &p, &p.Seed); err != nil {
				return nil, err
			}
			return built(swarm.New(p, swarm.WithProgress(progress), swarm.WithLogger(log)), p, p.Seed)
		})

	r.Register(qlearning.Name, "Tabular Q-learning over partial selections", defaults.QLearning,
		func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
			p := defaults.QLearning
			if err := resolve(overrides, seed, &p, &p.Seed); err != nil {
				return nil, err
			}
			return built(qlearning.New(p, qlearning.WithProgress(progress), qlearning.WithLogger(log)), p, p.Seed)
		})

	r.Register(optimization.Name, "Minimum-variance weights over a random draw", defaults.MeanVariance,
		func(overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
			p := defaults.MeanVariance
			if err := resolve(overrides, seed, &p, &p.Seed); err != nil {
				return nil, err
			}
			return built(optimization.NewStrategy(p, optimization.WithProgress(progress), optimization.WithLogger(log)), p, p.Seed)
		})

	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(name, description string, defaults interface{}, factory Factory) {
	raw, _ := json.Marshal(defaults)
	r.entries[name] = entry{
		info:    StrategyInfo{Name: name, Description: description, Defaults: raw},
		factory: factory,
	}
}

// Build creates the named strategy.
func (r *Registry) Build(name string, overrides json.RawMessage, seed *int64, progress domain.ProgressFunc, log zerolog.Logger) (*Built, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, name)
	}
	return e.factory(overrides, seed, progress, log)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategies describes every registered strategy, sorted by name.
func (r *Registry) Strategies() []StrategyInfo {
	infos := make([]StrategyInfo, 0, len(r.entries))
	for _, name := range r.Names() {
		infos = append(infos, r.entries[name].info)
	}
	return infos
}

// resolve decodes overrides on top of params, applies the seed and
// validates.
func resolve(overrides json.RawMessage, seed *int64, params interface{ Validate() error }, seedField *int64) error {
	if len(bytes.TrimSpace(overrides)) > 0 && !bytes.Equal(bytes.TrimSpace(overrides), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(overrides))
		dec.DisallowUnknownFields()
		if err := dec.Decode(params); err != nil {
			return fmt.Errorf("%w: invalid params: %v", domain.ErrInvalidConfiguration, err)
		}
	}
	if seed != nil {
		*seedField = *seed
	}
	return params.Validate()
}

func built(s domain.Strategy, params interface{}, seed int64) (*Built, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return &Built{Strategy: s, Params: raw, Seed: seed}, nil
}
