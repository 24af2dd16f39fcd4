package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/aristath/stockselect/internal/domain"
)

// ExampleInstruments returns the three-instrument catalog used in the
// end-to-end examples. For k=2 the best pair is {A, C}.
func ExampleInstruments() []domain.Instrument {
	return []domain.Instrument{
		{Identifier: "A", UnitPrice: 100, Risk: 0.1, ExpectedReturn: 0.02},
		{Identifier: "B", UnitPrice: 50, Risk: 0.2, ExpectedReturn: 0.01},
		{Identifier: "C", UnitPrice: 200, Risk: 0.05, ExpectedReturn: 0.015},
	}
}

// NewInstrumentFixtures returns a small realistic catalog of monthly summaries.
func NewInstrumentFixtures() []domain.Instrument {
	return []domain.Instrument{
		{Identifier: "AAPL", UnitPrice: 227.52, Risk: 0.0712, ExpectedReturn: 0.0241},
		{Identifier: "MSFT", UnitPrice: 417.14, Risk: 0.0655, ExpectedReturn: 0.0198},
		{Identifier: "GOOGL", UnitPrice: 164.74, Risk: 0.0841, ExpectedReturn: 0.0227},
		{Identifier: "AMZN", UnitPrice: 186.51, Risk: 0.0903, ExpectedReturn: 0.0262},
		{Identifier: "NVDA", UnitPrice: 121.40, Risk: 0.1507, ExpectedReturn: 0.0611},
		{Identifier: "JNJ", UnitPrice: 161.63, Risk: 0.0421, ExpectedReturn: 0.0032},
		{Identifier: "KO", UnitPrice: 71.86, Risk: 0.0398, ExpectedReturn: 0.0071},
		{Identifier: "XOM", UnitPrice: 117.22, Risk: 0.0688, ExpectedReturn: 0.0049},
		{Identifier: "JPM", UnitPrice: 210.87, Risk: 0.0719, ExpectedReturn: 0.0183},
		{Identifier: "PG", UnitPrice: 171.44, Risk: 0.0367, ExpectedReturn: 0.0058},
		{Identifier: "TSLA", UnitPrice: 249.23, Risk: 0.1881, ExpectedReturn: 0.0157},
		{Identifier: "V", UnitPrice: 277.91, Risk: 0.0552, ExpectedReturn: 0.0112},
	}
}

// RandomInstruments generates n instruments with deterministic pseudo-random
// statistics. Risks are strictly positive.
func RandomInstruments(n int, seed int64) []domain.Instrument {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.Instrument, n)
	for i := range out {
		out[i] = domain.Instrument{
			Identifier:     fmt.Sprintf("S%03d", i),
			UnitPrice:      10 + rng.Float64()*490,
			Risk:           0.01 + rng.Float64()*0.2,
			ExpectedReturn: -0.02 + rng.Float64()*0.06,
		}
	}
	return out
}

// MustCatalog builds a catalog or fails the test.
func MustCatalog(t testing.TB, instruments []domain.Instrument) *domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog(instruments)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return catalog
}

// AssertValidSelection fails the test unless the result holds exactly size
// distinct identifiers drawn from the catalog.
func AssertValidSelection(t testing.TB, catalog *domain.Catalog, result *domain.Result, size int) {
	t.Helper()
	if result == nil {
		t.Fatalf("result is nil")
	}
	if len(result.Members) != size {
		t.Fatalf("expected %d members, got %d (%v)", size, len(result.Members), result.Identifiers())
	}
	seen := make(map[string]bool, size)
	for _, m := range result.Members {
		if _, ok := catalog.Index(m.Identifier); !ok {
			t.Fatalf("member %s is not in the catalog", m.Identifier)
		}
		if seen[m.Identifier] {
			t.Fatalf("duplicate member %s in %v", m.Identifier, result.Identifiers())
		}
		seen[m.Identifier] = true
	}
}
