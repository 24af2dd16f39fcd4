// Package formulas holds the price-series statistics used to summarize
// instruments.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerMonth converts daily statistics to monthly ones.
const TradingDaysPerMonth = 21

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator).
// Fewer than two values yield 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// DailyReturns converts closes to simple returns:
// r[i] = (close[i+1] - close[i]) / close[i]. A zero close yields a zero return.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return []float64{}
	}
	// Rocp pads the first period with zeros
	rocp := talib.Rocp(closes, 1)
	out := make([]float64, len(closes)-1)
	copy(out, rocp[1:])
	return out
}

// MonthlyReturn scales the mean daily return to a month.
func MonthlyReturn(dailyReturns []float64) float64 {
	return Mean(dailyReturns) * TradingDaysPerMonth
}

// MonthlyVolatility scales the daily standard deviation to a month.
func MonthlyVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerMonth)
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
