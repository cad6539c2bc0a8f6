package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS rate_snapshots (
	id           UUID PRIMARY KEY,
	run_id       TEXT NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	gold_22k_inr NUMERIC(14,2) NOT NULL,
	gold_24k_inr NUMERIC(14,2) NOT NULL,
	silver_inr   NUMERIC(14,2) NOT NULL,
	usd_inr      NUMERIC(10,2) NOT NULL,
	tax_included BOOLEAN NOT NULL,
	source       TEXT NOT NULL
)`

const insertSnapshot = `
INSERT INTO rate_snapshots (
	id, run_id, observed_at, recorded_at,
	gold_22k_inr, gold_24k_inr, silver_inr, usd_inr,
	tax_included, source
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres stores snapshots in the rate_snapshots table.
type Postgres struct {
	db   execer
	pool *pgxpool.Pool
}

// NewPostgres uses an existing connection or pool. Close is a no-op.
func NewPostgres(db execer) *Postgres {
	return &Postgres{db: db}
}

// ConnectPostgres opens a pool, verifies it and creates the table.
func ConnectPostgres(ctx context.Context, url string, maxConns int) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: pool, pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Name() string { return "postgres" }

// EnsureSchema creates the snapshot table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("create rate_snapshots: %w", err)
	}
	return nil
}

func (p *Postgres) Publish(ctx context.Context, s Snapshot) error {
	r := s.Rates
	_, err := p.db.Exec(ctx, insertSnapshot,
		s.ID, s.RunID, s.ObservedAt, s.RecordedAt,
		r.Gold22K, r.Gold24K, r.Silver, r.USDINR,
		r.Metadata.TaxIncluded, r.Source,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
