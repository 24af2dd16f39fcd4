// Package scoring implements the risk-adjusted objective shared by every
// selection strategy.
package scoring

import (
	"fmt"
	"math"

	"github.com/aristath/stockselect/internal/domain"
)

// MaxBruteForceCombinations bounds the exhaustive oracle.
const MaxBruteForceCombinations = 2_000_000

// Score returns average return divided by average risk. A portfolio with zero
// (or non-finite) risk scores exactly 0; this is the single zero-risk policy
// for all strategies and never an error.
func Score(m domain.Metrics) float64 {
	risk := m.AverageRisk()
	if risk == 0 || math.IsNaN(risk) || math.IsInf(risk, 0) {
		return 0
	}
	s := m.AverageReturn() / risk
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// ScoreMembers scores an equal-weight selection of any size.
func ScoreMembers(members []domain.Instrument) float64 {
	return Score(domain.Portfolio{Members: members})
}

// ScoreIndices scores the catalog members at the given indices without
// allocating a Portfolio.
func ScoreIndices(catalog *domain.Catalog, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var risk, ret float64
	for _, idx := range indices {
		inst := catalog.At(idx)
		risk += inst.Risk
		ret += inst.ExpectedReturn
	}
	n := float64(len(indices))
	return Score(averages{risk: risk / n, ret: ret / n})
}

type averages struct {
	risk float64
	ret  float64
}

func (a averages) TotalValue() float64    { return 0 }
func (a averages) AverageRisk() float64   { return a.risk }
func (a averages) AverageReturn() float64 { return a.ret }

// BruteForce enumerates every size-k subset of the catalog in lexicographic
// index order and returns the best-scoring one (first wins on ties).
// It is the ground-truth oracle for small catalogs.
func BruteForce(catalog *domain.Catalog, k int) ([]int, float64, error) {
	if err := domain.ValidateSearch(catalog, k); err != nil {
		return nil, 0, err
	}
	n := catalog.Len()
	if c := Combinations(n, k); c < 0 || c > MaxBruteForceCombinations {
		return nil, 0, fmt.Errorf("%w: C(%d,%d) is too large for exhaustive search", domain.ErrInvalidConfiguration, n, k)
	}

	current := make([]int, k)
	for i := range current {
		current[i] = i
	}
	best := make([]int, k)
	bestScore := math.Inf(-1)

	for {
		if s := ScoreIndices(catalog, current); s > bestScore {
			bestScore = s
			copy(best, current)
		}

		// Advance to the next combination.
		i := k - 1
		for i >= 0 && current[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		current[i]++
		for j := i + 1; j < k; j++ {
			current[j] = current[j-1] + 1
		}
	}

	return best, bestScore, nil
}

// Combinations returns C(n, k), or -1 on overflow.
func Combinations(n, k int) int64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var c int64 = 1
	for i := 1; i <= k; i++ {
		next := c * int64(n-k+i)
		if next/int64(n-k+i) != c {
			return -1
		}
		c = next / int64(i)
	}
	return c
}
