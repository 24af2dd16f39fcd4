package domain

import "math"

// Metrics are the derived values every portfolio form exposes. They are the
// only inputs of the objective.
type Metrics interface {
	TotalValue() float64
	AverageRisk() float64
	AverageReturn() float64
}

// Portfolio is the combinatorial form: a selection of distinct instruments,
// equally weighted.
type Portfolio struct {
	Members []Instrument `json:"members"`
}

// TotalValue is the sum of member unit prices.
func (p Portfolio) TotalValue() float64 {
	var total float64
	for _, m := range p.Members {
		total += m.UnitPrice
	}
	return total
}

// AverageRisk is the mean member risk; zero for an empty portfolio.
func (p Portfolio) AverageRisk() float64 {
	if len(p.Members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range p.Members {
		sum += m.Risk
	}
	return sum / float64(len(p.Members))
}

// AverageReturn is the mean member expected return; zero for an empty portfolio.
func (p Portfolio) AverageReturn() float64 {
	if len(p.Members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range p.Members {
		sum += m.ExpectedReturn
	}
	return sum / float64(len(p.Members))
}

// Identifiers returns member identifiers in member order.
func (p Portfolio) Identifiers() []string {
	ids := make([]string, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.Identifier
	}
	return ids
}

// HasDuplicates reports whether any identifier appears twice.
func (p Portfolio) HasDuplicates() bool {
	seen := make(map[string]struct{}, len(p.Members))
	for _, m := range p.Members {
		if _, ok := seen[m.Identifier]; ok {
			return true
		}
		seen[m.Identifier] = struct{}{}
	}
	return false
}

// WeightedPortfolio is the mean-variance form: a fixed sub-universe with a
// long-only weight vector summing to one.
//
// Risk uses a diagonal covariance (risk_i squared); cross-instrument
// correlation is not modeled.
type WeightedPortfolio struct {
	Members []Instrument `json:"members"`
	Weights []float64    `json:"weights"`
}

// TotalValue is the weight-scaled sum of unit prices.
func (p WeightedPortfolio) TotalValue() float64 {
	var total float64
	for i, m := range p.Members {
		total += p.Weights[i] * m.UnitPrice
	}
	return total
}

// AverageRisk is sqrt(wᵀ·diag(risk²)·w).
func (p WeightedPortfolio) AverageRisk() float64 {
	var variance float64
	for i, m := range p.Members {
		variance += p.Weights[i] * p.Weights[i] * m.Risk * m.Risk
	}
	return math.Sqrt(variance)
}

// AverageReturn is wᵀ·r.
func (p WeightedPortfolio) AverageReturn() float64 {
	var ret float64
	for i, m := range p.Members {
		ret += p.Weights[i] * m.ExpectedReturn
	}
	return ret
}

// WeightSum returns Σw.
func (p WeightedPortfolio) WeightSum() float64 {
	var sum float64
	for _, w := range p.Weights {
		sum += w
	}
	return sum
}
