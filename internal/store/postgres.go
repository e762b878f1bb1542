package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/quotefeed/internal/model"
)

// Schema creates the observations table. Safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id          BIGSERIAL PRIMARY KEY,
	observed_at TIMESTAMPTZ NOT NULL,
	symbol      TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL CHECK (price > 0)
);
CREATE INDEX IF NOT EXISTS price_observations_symbol_id_idx
	ON price_observations (symbol, id DESC);
`

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Postgres stores observations in the price_observations table.
type Postgres struct {
	db     DB
	clock  *clock
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on an existing pool.
func NewPostgres(db DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		db:     db,
		clock:  newClock(nil),
		logger: logger,
	}
}

// EnsureSchema creates the table and index if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	p.logger.Info("observation schema ready")
	return nil
}

// Append implements Store.
func (p *Postgres) Append(ctx context.Context, symbol string, price float64) (model.Observation, error) {
	if err := validate(symbol, price); err != nil {
		return model.Observation{}, err
	}

	obs := model.Observation{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: p.clock.next(),
	}

	err := p.db.QueryRow(ctx, `
		INSERT INTO price_observations (observed_at, symbol, price)
		VALUES ($1, $2, $3)
		RETURNING id
	`, obs.ObservedAt, obs.Symbol, obs.Price).Scan(&obs.ID)
	if err != nil {
		return model.Observation{}, fmt.Errorf("insert observation %s: %w", symbol, err)
	}

	return obs, nil
}

// LastN implements Store.
func (p *Postgres) LastN(ctx context.Context, symbol string, n int) ([]model.Observation, error) {
	if n <= 0 {
		return []model.Observation{}, nil
	}

	rows, err := p.db.Query(ctx, `
		SELECT id, observed_at, symbol, price
		FROM price_observations
		WHERE symbol = $1
		ORDER BY id DESC
		LIMIT $2
	`, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query observations %s: %w", symbol, err)
	}
	defer rows.Close()

	out := []model.Observation{}
	for rows.Next() {
		var (
			obs model.Observation
			ts  time.Time
		)
		if err := rows.Scan(&obs.ID, &ts, &obs.Symbol, &obs.Price); err != nil {
			return nil, fmt.Errorf("scan observation %s: %w", symbol, err)
		}
		obs.ObservedAt = ts.UTC()
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observations %s: %w", symbol, err)
	}

	reverse(out)
	return out, nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
