// Package universe loads, stores and summarizes the instrument catalog the
// strategies select from.
package universe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
)

// Source loads a catalog from somewhere.
type Source interface {
	Name() string
	Load(ctx context.Context) (*domain.Catalog, error)
}

// legacyRow is the summary layout of the original data pipeline.
type legacyRow struct {
	CompanyName   string `csv:"CompanyName"`
	PricePerStock string `csv:"PricePerStock"`
	Risk          string `csv:"Risk"`
	MonthlyReturn string `csv:"MonthlyReturn"`
}

// SummaryRow is the summary layout written by this service.
type SummaryRow struct {
	Ticker        string `csv:"ticker"`
	PricePerStock string `csv:"price_per_stock"`
	Risk          string `csv:"risk"`
	MonthlyReturn string `csv:"monthly_return"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseSummaries decodes summary rows from CSV. Both the legacy
// (CompanyName, PricePerStock, Risk, MonthlyReturn) and the current
// (ticker, price_per_stock, risk, monthly_return) headers are accepted.
// Rows with unparsable numbers or invalid values are skipped and counted.
func ParseSummaries(r io.Reader) ([]domain.Instrument, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read summaries: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, nil
	}

	header := string(data)
	if i := strings.IndexAny(header, "\r\n"); i >= 0 {
		header = header[:i]
	}

	var rows []SummaryRow
	switch {
	case strings.Contains(header, "CompanyName"):
		var legacy []legacyRow
		if err := gocsv.UnmarshalBytes(data, &legacy); err != nil {
			return nil, 0, fmt.Errorf("failed to decode summaries: %w", err)
		}
		rows = make([]SummaryRow, len(legacy))
		for i, l := range legacy {
			rows[i] = SummaryRow{Ticker: l.CompanyName, PricePerStock: l.PricePerStock, Risk: l.Risk, MonthlyReturn: l.MonthlyReturn}
		}
	case strings.Contains(header, "ticker"):
		if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
			return nil, 0, fmt.Errorf("failed to decode summaries: %w", err)
		}
	default:
		return nil, 0, fmt.Errorf("%w: unrecognized summary header %q", domain.ErrInvalidConfiguration, header)
	}

	instruments := make([]domain.Instrument, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		inst, err := row.instrument()
		if err != nil {
			skipped++
			continue
		}
		instruments = append(instruments, inst)
	}
	return instruments, skipped, nil
}

func (row SummaryRow) instrument() (domain.Instrument, error) {
	price, err := parseFloat(row.PricePerStock)
	if err != nil {
		return domain.Instrument{}, err
	}
	risk, err := parseFloat(row.Risk)
	if err != nil {
		return domain.Instrument{}, err
	}
	ret, err := parseFloat(row.MonthlyReturn)
	if err != nil {
		return domain.Instrument{}, err
	}
	inst := domain.Instrument{
		Identifier:     strings.TrimSpace(row.Ticker),
		UnitPrice:      price,
		Risk:           risk,
		ExpectedReturn: ret,
	}
	return inst, inst.Validate()
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// MarshalSummaries encodes instruments in the current summary layout.
func MarshalSummaries(instruments []domain.Instrument) ([]byte, error) {
	rows := make([]SummaryRow, len(instruments))
	for i, inst := range instruments {
		rows[i] = SummaryRow{
			Ticker:        inst.Identifier,
			PricePerStock: strconv.FormatFloat(inst.UnitPrice, 'f', -1, 64),
			Risk:          strconv.FormatFloat(inst.Risk, 'f', -1, 64),
			MonthlyReturn: strconv.FormatFloat(inst.ExpectedReturn, 'f', -1, 64),
		}
	}
	return gocsv.MarshalBytes(&rows)
}

// dedupe keeps the first row for every identifier.
func dedupe(instruments []domain.Instrument) ([]domain.Instrument, int) {
	seen := make(map[string]struct{}, len(instruments))
	out := make([]domain.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if _, ok := seen[inst.Identifier]; ok {
			continue
		}
		seen[inst.Identifier] = struct{}{}
		out = append(out, inst)
	}
	return out, len(instruments) - len(out)
}

// buildCatalog dedupes, logs skipped rows and validates.
func buildCatalog(instruments []domain.Instrument, skipped int, source string, log zerolog.Logger) (*domain.Catalog, error) {
	instruments, dropped := dedupe(instruments)
	if skipped+dropped > 0 {
		log.Warn().
			Str("source", source).
			Int("malformed", skipped).
			Int("duplicates", dropped).
			Msg("Skipped catalog rows")
	}
	catalog, err := domain.NewCatalog(instruments)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog from %s: %w", source, err)
	}
	return catalog, nil
}
