package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/config"
)

// Postgres is the relational backend reached through a pgx connection pool.
type Postgres struct {
	log  logrus.FieldLogger
	cfg  *config.PostgresConfig
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ Relational = (*Postgres)(nil)

// NewPostgres creates an unconnected Postgres backend.
func NewPostgres(log logrus.FieldLogger, cfg *config.PostgresConfig) *Postgres {
	return &Postgres{
		log: log.WithField("component", "postgres"),
		cfg: cfg,
	}
}

// Start opens the connection pool and verifies connectivity.
func (p *Postgres) Start(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parsing postgres config: %w", err)
	}

	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(p.cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return fmt.Errorf("pinging postgres: %w", err)
	}

	p.pool = pool

	p.log.WithField("host", p.cfg.Host).Info("Postgres connected")

	return nil
}

// Stop closes the connection pool.
func (p *Postgres) Stop() error {
	if p.pool != nil {
		p.pool.Close()
	}

	return nil
}

// Query runs the SQL text and drains the full result set. Duration
// measurement is the caller's concern; this method only guarantees full
// materialization so timings include row transfer.
func (p *Postgres) Query(ctx context.Context, sql string, params map[string]any) (int, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if len(params) > 0 {
		rows, err = p.pool.Query(ctx, sql, pgx.NamedArgs(params))
	} else {
		rows, err = p.pool.Query(ctx, sql)
	}

	if err != nil {
		return 0, fmt.Errorf("executing query: %w", err)
	}

	defer rows.Close()

	var count int

	for rows.Next() {
		// Values forces decoding of the row payload.
		if _, err := rows.Values(); err != nil {
			return count, fmt.Errorf("reading row: %w", err)
		}

		count++
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("draining rows: %w", err)
	}

	return count, nil
}
