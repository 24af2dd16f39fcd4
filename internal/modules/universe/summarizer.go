package universe

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aristath/stockselect/pkg/formulas"
)

// MinCloses is the shortest series Summarize accepts; the sample standard
// deviation needs at least two returns.
const MinCloses = 3

// PricePoint is one daily close
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Series is the daily history of one instrument
type Series struct {
	Identifier string       `json:"identifier"`
	Prices     []PricePoint `json:"prices"`
}

// Summarize turns a series of daily closes into a catalog instrument:
// monthly return = mean daily return × 21, risk = sample std × √21,
// price = last close. Values are rounded to 4, 4 and 2 decimals.
func Summarize(identifier string, closes []float64) (domain.Instrument, error) {
	if len(closes) < MinCloses {
		return domain.Instrument{}, fmt.Errorf("%w: %s needs at least %d closes, got %d",
			domain.ErrInvalidConfiguration, identifier, MinCloses, len(closes))
	}
	for _, c := range closes {
		if !(c > 0) || math.IsInf(c, 0) {
			return domain.Instrument{}, fmt.Errorf("%w: %s has a non-positive or non-finite close",
				domain.ErrInvalidConfiguration, identifier)
		}
	}

	returns := formulas.DailyReturns(closes)
	inst := domain.Instrument{
		Identifier:     identifier,
		UnitPrice:      formulas.Round(closes[len(closes)-1], 2),
		Risk:           formulas.Round(formulas.MonthlyVolatility(returns), 4),
		ExpectedReturn: formulas.Round(formulas.MonthlyReturn(returns), 4),
	}
	return inst, inst.Validate()
}

// SummarizeSeries sorts the series by date and summarizes it.
func SummarizeSeries(s Series) (domain.Instrument, error) {
	prices := make([]PricePoint, len(s.Prices))
	copy(prices, s.Prices)
	sort.SliceStable(prices, func(i, j int) bool { return prices[i].Date < prices[j].Date })

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	return Summarize(s.Identifier, closes)
}
