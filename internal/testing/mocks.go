package testing

import (
	"context"
	"sync"

	"github.com/aristath/stockselect/internal/domain"
)

// MockStrategy is a domain.Strategy returning a canned result or error.
type MockStrategy struct {
	mu     sync.Mutex
	name   string
	result *domain.Result
	err    error
	calls  int
}

// NewMockStrategy creates a new mock strategy with the given name.
func NewMockStrategy(name string) *MockStrategy {
	return &MockStrategy{name: name}
}

// SetResult sets the result returned by Search
func (m *MockStrategy) SetResult(result *domain.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetError sets the error returned by Search
func (m *MockStrategy) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Search ran.
func (m *MockStrategy) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name implements domain.Strategy
func (m *MockStrategy) Name() string {
	return m.name
}

// Search implements domain.Strategy
func (m *MockStrategy) Search(ctx context.Context, catalog *domain.Catalog, size int) (*domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	if err := domain.ValidateSearch(catalog, size); err != nil {
		return nil, err
	}
	members := catalog.Instruments()[:size]
	p := domain.Portfolio{Members: members}
	return domain.NewResult(m.name, members, nil, p, 0), nil
}

// MockCatalogSource returns a fixed catalog.
type MockCatalogSource struct {
	mu          sync.Mutex
	instruments []domain.Instrument
	err         error
	loads       int
}

// NewMockCatalogSource creates a mock source serving the given instruments.
func NewMockCatalogSource(instruments []domain.Instrument) *MockCatalogSource {
	return &MockCatalogSource{instruments: instruments}
}

// SetError sets the error returned by Load
func (m *MockCatalogSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Loads returns how many times Load ran.
func (m *MockCatalogSource) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Name identifies the source in logs.
func (m *MockCatalogSource) Name() string {
	return "mock"
}

// Load returns the configured catalog.
func (m *MockCatalogSource) Load(ctx context.Context) (*domain.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	return domain.NewCatalog(m.instruments)
}
