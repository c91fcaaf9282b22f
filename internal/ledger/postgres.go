package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/natural-conversion/internal/db"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tile_runs (
	id                    UUID PRIMARY KEY,
	tile_index            INTEGER NOT NULL,
	year                  INTEGER NOT NULL,
	name                  TEXT NOT NULL,
	artifact_key          TEXT NOT NULL,
	footprint             BYTEA,
	status                TEXT NOT NULL,
	pixels                BIGINT NOT NULL DEFAULT 0,
	natural_conversion_ha DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms           BIGINT NOT NULL DEFAULT 0,
	error                 TEXT NOT NULL DEFAULT '',
	finished_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tile_runs_index ON tile_runs(tile_index);
CREATE INDEX IF NOT EXISTS idx_tile_runs_status ON tile_runs(status);
CREATE INDEX IF NOT EXISTS idx_tile_runs_finished_at ON tile_runs(finished_at DESC);
`

const runColumns = `id, tile_index, year, name, artifact_key, footprint, status, pixels, natural_conversion_ha, duration_ms, error, finished_at`

// Postgres stores tile runs in Postgres.
type Postgres struct {
	pool db.Pool
}

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string, cfg db.PoolConfig) (*Postgres, error) {
	pool, err := db.NewPool(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "ledger: postgres migrate")
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, r *Run) error {
	r.fill()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO tile_runs (`+runColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.TileIndex, r.Year, r.Name, r.Key, r.Footprint, string(r.Status),
		r.Pixels, r.NaturalConversionHa, r.DurationMs, r.Error, r.FinishedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: record tile %d", r.TileIndex)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]Run, error) {
	query, args := listQuery(f, func(n int) string { return fmt.Sprintf("$%d", n) })
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r      Run
			status string
		)
		if err := rows.Scan(&r.ID, &r.TileIndex, &r.Year, &r.Name, &r.Key, &r.Footprint, &status,
			&r.Pixels, &r.NaturalConversionHa, &r.DurationMs, &r.Error, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ledger: iterate runs")
	}
	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// listQuery builds the filtered SELECT; placeholder renders the n-th bind
// parameter for the target driver.
func listQuery(f Filter, placeholder func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = "+placeholder(len(args)))
	}
	if f.Year != 0 {
		args = append(args, f.Year)
		where = append(where, "year = "+placeholder(len(args)))
	}

	q := `SELECT ` + runColumns + ` FROM tile_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY finished_at DESC, tile_index"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT " + placeholder(len(args))
	}
	return q, args
}

func (r *Run) fill() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
}
