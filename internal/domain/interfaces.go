package domain

import (
	"context"
	"fmt"
	"time"
)

// Strategy is the contract the four search algorithms implement.
// Implementations never mutate the catalog.
type Strategy interface {
	Name() string
	Search(ctx context.Context, catalog *Catalog, size int) (*Result, error)
}

// Progress is reported at every generation, iteration or episode boundary.
type Progress struct {
	Strategy  string  `json:"strategy"`
	Step      int     `json:"step"`
	Total     int     `json:"total"`
	BestScore float64 `json:"best_score"`
}

// ProgressFunc receives progress updates. It runs on the search goroutine and
// must not block.
type ProgressFunc func(Progress)

// Result is the output of one search.
type Result struct {
	Strategy      string        `json:"strategy" msgpack:"strategy"`
	Members       []Instrument  `json:"members" msgpack:"members"`
	Weights       []float64     `json:"weights,omitempty" msgpack:"weights,omitempty"`
	TotalValue    float64       `json:"total_value" msgpack:"total_value"`
	AverageRisk   float64       `json:"average_risk" msgpack:"average_risk"`
	AverageReturn float64       `json:"average_return" msgpack:"average_return"`
	Score         float64       `json:"score" msgpack:"score"`
	Steps         int           `json:"steps" msgpack:"steps"`
	Duration      time.Duration `json:"duration_ns" msgpack:"duration_ns"`
}

// NewResult fills the metric fields of a Result from a scored portfolio.
func NewResult(strategy string, members []Instrument, weights []float64, m Metrics, score float64) *Result {
	return &Result{
		Strategy:      strategy,
		Members:       members,
		Weights:       weights,
		TotalValue:    m.TotalValue(),
		AverageRisk:   m.AverageRisk(),
		AverageReturn: m.AverageReturn(),
		Score:         score,
	}
}

// Identifiers returns the member identifiers of the result.
func (r *Result) Identifiers() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.Identifier
	}
	return ids
}

// ValidateSearch checks the preconditions shared by all strategies.
func ValidateSearch(catalog *Catalog, size int) error {
	if catalog.Len() == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidConfiguration)
	}
	if size <= 0 {
		return fmt.Errorf("%w: portfolio size must be positive, got %d", ErrInvalidConfiguration, size)
	}
	if size > catalog.Len() {
		return fmt.Errorf("%w: portfolio size %d exceeds catalog size %d", ErrInsufficientCandidates, size, catalog.Len())
	}
	return nil
}

// ValidatePositive returns ErrInvalidConfiguration when v is not positive.
func ValidatePositive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfiguration, name, v)
	}
	return nil
}

// ValidateProbability returns ErrInvalidConfiguration when p is outside [0, 1].
func ValidateProbability(name string, p float64) error {
	if !(p >= 0 && p <= 1) {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfiguration, name, p)
	}
	return nil
}
