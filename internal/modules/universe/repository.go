package universe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/database"
	"github.com/aristath/stockselect/internal/domain"
	"github.com/rs/zerolog"
)

const instrumentColumns = `identifier, unit_price, risk, expected_return`

// Repository stores the catalog and raw daily closes in universe.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new catalog repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "instruments").Logger(),
	}
}

// Name implements Source
func (r *Repository) Name() string {
	return "db"
}

// Load implements Source
func (r *Repository) Load(ctx context.Context) (*domain.Catalog, error) {
	instruments, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewCatalog(instruments)
}

// ReplaceAll swaps the stored catalog for instruments in one transaction
func (r *Repository) ReplaceAll(ctx context.Context, instruments []domain.Instrument, source string) error {
	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM instruments`); err != nil {
			return fmt.Errorf("failed to clear instruments: %w", err)
		}
		return upsertInstruments(ctx, tx, instruments, source, now)
	})
}

// Upsert inserts or updates instruments, leaving the others untouched
func (r *Repository) Upsert(ctx context.Context, instruments []domain.Instrument, source string) error {
	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return upsertInstruments(ctx, tx, instruments, source, now)
	})
}

func upsertInstruments(ctx context.Context, tx *sql.Tx, instruments []domain.Instrument, source string, now int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instruments (`+instrumentColumns+`, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			unit_price = excluded.unit_price,
			risk = excluded.risk,
			expected_return = excluded.expected_return,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare instrument upsert: %w", err)
	}
	defer stmt.Close()

	for _, inst := range instruments {
		if _, err := stmt.ExecContext(ctx, inst.Identifier, inst.UnitPrice, inst.Risk, inst.ExpectedReturn, source, now); err != nil {
			return fmt.Errorf("failed to upsert instrument %s: %w", inst.Identifier, err)
		}
	}
	return nil
}

// GetAll returns every stored instrument ordered by identifier
func (r *Repository) GetAll(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+instrumentColumns+` FROM instruments ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Identifier, &inst.UnitPrice, &inst.Risk, &inst.ExpectedReturn); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return instruments, nil
}

// GetByIdentifier returns one instrument or domain.ErrNotFound
func (r *Repository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := r.db.QueryRowContext(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE identifier = ?`, identifier).
		Scan(&inst.Identifier, &inst.UnitPrice, &inst.Risk, &inst.ExpectedReturn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s: %w", identifier, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument %s: %w", identifier, err)
	}
	return &inst, nil
}

// Count returns the number of stored instruments
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count instruments: %w", err)
	}
	return n, nil
}

// SavePrices stores daily closes for an instrument, replacing same-day rows
func (r *Repository) SavePrices(ctx context.Context, identifier string, prices []PricePoint) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO daily_prices (identifier, date, close) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare price insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range prices {
			if _, err := stmt.ExecContext(ctx, identifier, p.Date, p.Close); err != nil {
				return fmt.Errorf("failed to insert price %s/%s: %w", identifier, p.Date, err)
			}
		}
		return nil
	})
}

// GetPrices returns the stored closes for an instrument in date order
func (r *Repository) GetPrices(ctx context.Context, identifier string) ([]PricePoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, close FROM daily_prices WHERE identifier = ? ORDER BY date`, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
