// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
)

// Instrument is one candidate asset in a catalog. Values are produced by the
// summary transform and never change during an optimization run.
type Instrument struct {
	Identifier     string  `json:"identifier" msgpack:"identifier"`
	UnitPrice      float64 `json:"unit_price" msgpack:"unit_price"`
	Risk           float64 `json:"risk" msgpack:"risk"`
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return"`
}

// Validate checks the instrument invariants.
func (i Instrument) Validate() error {
	if i.Identifier == "" {
		return fmt.Errorf("%w: instrument identifier is empty", ErrInvalidConfiguration)
	}
	for name, v := range map[string]float64{
		"unit_price":      i.UnitPrice,
		"risk":            i.Risk,
		"expected_return": i.ExpectedReturn,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: instrument %s has non-finite %s", ErrInvalidConfiguration, i.Identifier, name)
		}
	}
	if i.UnitPrice < 0 {
		return fmt.Errorf("%w: instrument %s has negative unit price", ErrInvalidConfiguration, i.Identifier)
	}
	if i.Risk < 0 {
		return fmt.Errorf("%w: instrument %s has negative risk", ErrInvalidConfiguration, i.Identifier)
	}
	return nil
}

// String implements fmt.Stringer
func (i Instrument) String() string {
	return fmt.Sprintf("%s (Price: %.2f, Risk: %.4f, Return: %.4f)", i.Identifier, i.UnitPrice, i.Risk, i.ExpectedReturn)
}

// Catalog is the ordered, read-only universe a strategy selects from.
// Identifiers are unique within a catalog.
type Catalog struct {
	instruments []Instrument
	index       map[string]int
}

// NewCatalog validates the instruments and builds a catalog.
// The input slice is copied.
func NewCatalog(instruments []Instrument) (*Catalog, error) {
	c := &Catalog{
		instruments: make([]Instrument, len(instruments)),
		index:       make(map[string]int, len(instruments)),
	}
	copy(c.instruments, instruments)

	for i, inst := range c.instruments {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[inst.Identifier]; dup {
			return nil, fmt.Errorf("%w: duplicate identifier %s", ErrInvalidConfiguration, inst.Identifier)
		}
		c.index[inst.Identifier] = i
	}
	return c, nil
}

// Len returns the number of instruments; a nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.instruments)
}

// At returns the instrument at catalog index i.
func (c *Catalog) At(i int) Instrument {
	return c.instruments[i]
}

// Index returns the catalog index of an identifier.
func (c *Catalog) Index(identifier string) (int, bool) {
	i, ok := c.index[identifier]
	return i, ok
}

// Instruments returns a copy of the catalog contents.
func (c *Catalog) Instruments() []Instrument {
	if c == nil {
		return nil
	}
	out := make([]Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// Portfolio builds a combinatorial portfolio from catalog indices, in the
// order given.
func (c *Catalog) Portfolio(indices []int) Portfolio {
	members := make([]Instrument, len(indices))
	for i, idx := range indices {
		members[i] = c.instruments[idx]
	}
	return Portfolio{Members: members}
}
