// Package optimization allocates continuous weights across a set of
// instruments by minimum-variance optimization.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// kktTolerance bounds the relative violation accepted by checkOptimality.
const kktTolerance = 1e-6

// MVOptimizer performs mean-variance portfolio optimization over independent
// instruments: the covariance matrix is diag(risk²).
type MVOptimizer struct {
	maxWeight float64
	log       zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer. maxWeight caps every
// individual weight; values outside (0, 1] mean no cap.
func NewMVOptimizer(maxWeight float64, log zerolog.Logger) *MVOptimizer {
	if !(maxWeight > 0 && maxWeight <= 1) {
		maxWeight = 1
	}
	return &MVOptimizer{
		maxWeight: maxWeight,
		log:       log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Optimize solves
//
//	minimize wᵀΣw  subject to  Σw = 1,  0 ≤ w ≤ maxWeight
//
// exactly. With a diagonal Σ the minimizer is w_i = min(maxWeight, c/σ_i²)
// for the c that exhausts the budget (water-filling); zero-risk instruments
// are filled first. The solution is checked against the KKT conditions.
// Weights follow the order of instruments.
func (mvo *MVOptimizer) Optimize(ctx context.Context, instruments []domain.Instrument) (*domain.WeightedPortfolio, error) {
	n := len(instruments)
	if n == 0 {
		return nil, fmt.Errorf("%w: no instruments to optimize", domain.ErrInvalidConfiguration)
	}
	if float64(n)*mvo.maxWeight < 1-1e-12 {
		return nil, fmt.Errorf("%w: %d instruments capped at %.4f cannot sum to 1",
			domain.ErrOptimizationFailure, n, mvo.maxWeight)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sigma := covariance(instruments)
	weights, err := mvo.waterFill(sigma)
	if err != nil {
		return nil, err
	}
	if err := mvo.checkOptimality(sigma, weights); err != nil {
		return nil, err
	}

	w := mat.NewVecDense(n, weights)
	mvo.log.Debug().
		Int("instruments", n).
		Float64("scaled_variance", mat.Inner(w, sigma, w)).
		Msg("Minimum-variance weights solved")

	members := make([]domain.Instrument, n)
	copy(members, instruments)
	return &domain.WeightedPortfolio{Members: members, Weights: weights}, nil
}

// covariance returns diag(risk²) scaled so the largest entry is 1. Scaling
// leaves the minimizer unchanged.
func covariance(instruments []domain.Instrument) *mat.DiagDense {
	n := len(instruments)
	variances := make([]float64, n)
	for i, inst := range instruments {
		variances[i] = inst.Risk * inst.Risk
	}
	if maxVar := floats.Max(variances); maxVar > 0 {
		floats.Scale(1/maxVar, variances)
	}
	return mat.NewDiagDense(n, variances)
}

// waterFill computes the capped minimum-variance weights for a diagonal
// covariance.
func (mvo *MVOptimizer) waterFill(sigma *mat.DiagDense) ([]float64, error) {
	n, _ := sigma.Dims()
	limit := mvo.maxWeight
	weights := make([]float64, n)

	var riskless, risky []int
	for i := 0; i < n; i++ {
		v := sigma.At(i, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite variance", domain.ErrOptimizationFailure)
		}
		if v == 0 {
			riskless = append(riskless, i)
		} else {
			risky = append(risky, i)
		}
	}

	// Zero-variance instruments share the budget up to the cap
	budget := 1.0
	if len(riskless) > 0 {
		share := math.Min(limit, 1/float64(len(riskless)))
		for _, i := range riskless {
			weights[i] = share
		}
		budget -= share * float64(len(riskless))
	}
	if budget <= 1e-12 || len(risky) == 0 {
		return weights, nil
	}

	// Precision 1/σ², largest first: the most precise instruments hit the cap first
	precision := make([]float64, len(risky))
	for k, i := range risky {
		precision[k] = 1 / sigma.At(i, i)
	}
	order := make([]int, len(risky))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return precision[order[a]] > precision[order[b]] })

	// suffix[m] is the total precision of order[m:]
	suffix := make([]float64, len(order)+1)
	for m := len(order) - 1; m >= 0; m-- {
		suffix[m] = suffix[m+1] + precision[order[m]]
	}

	for m := 0; m < len(order); m++ {
		level := (budget - float64(m)*limit) / suffix[m]
		if level*precision[order[m]] <= limit {
			for k, idx := range order {
				i := risky[idx]
				if k < m {
					weights[i] = limit
				} else {
					weights[i] = math.Min(limit, level*precision[idx])
				}
			}
			return weights, nil
		}
	}

	// Every risky instrument is capped; feasibility guarantees this fills the budget
	for _, i := range risky {
		weights[i] = limit
	}
	return weights, nil
}

// checkOptimality verifies feasibility and the KKT conditions of the solve:
// every free weight (strictly inside the box) has the same marginal variance
// 2σ_i²w_i, capped weights have a marginal at most that level and empty
// weights one at least that level.
func (mvo *MVOptimizer) checkOptimality(sigma *mat.DiagDense, weights []float64) error {
	n := len(weights)
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: non-finite weight", domain.ErrOptimizationFailure)
		}
		if w < 0 || w > mvo.maxWeight {
			return fmt.Errorf("%w: weight %v outside [0, %v]", domain.ErrOptimizationFailure, w, mvo.maxWeight)
		}
	}
	if sum := floats.Sum(weights); math.Abs(sum-1) > kktTolerance {
		return fmt.Errorf("%w: weights sum to %v", domain.ErrOptimizationFailure, sum)
	}

	grad := mat.NewVecDense(n, nil)
	grad.MulVec(sigma, mat.NewVecDense(n, weights))
	grad.ScaleVec(2, grad)

	lambda := math.NaN()
	for i, w := range weights {
		if w > 0 && w < mvo.maxWeight {
			lambda = grad.AtVec(i)
			break
		}
	}
	if math.IsNaN(lambda) {
		// Every weight sits on a bound; no free level to compare against
		return nil
	}

	tol := kktTolerance * math.Max(lambda, 1e-300)
	for i, w := range weights {
		g := grad.AtVec(i)
		switch {
		case w > 0 && w < mvo.maxWeight && math.Abs(g-lambda) > tol:
			return fmt.Errorf("%w: marginal variance %v differs from level %v", domain.ErrOptimizationFailure, g, lambda)
		case w == mvo.maxWeight && g > lambda+tol:
			return fmt.Errorf("%w: capped weight with marginal variance %v above level %v", domain.ErrOptimizationFailure, g, lambda)
		case w == 0 && g < lambda-tol:
			return fmt.Errorf("%w: empty weight with marginal variance %v below level %v", domain.ErrOptimizationFailure, g, lambda)
		}
	}
	return nil
}
