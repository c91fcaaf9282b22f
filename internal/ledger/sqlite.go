package ledger

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tile_runs (
	id                    TEXT PRIMARY KEY,
	tile_index            INTEGER NOT NULL,
	year                  INTEGER NOT NULL,
	name                  TEXT NOT NULL,
	artifact_key          TEXT NOT NULL,
	footprint             BLOB,
	status                TEXT NOT NULL,
	pixels                INTEGER NOT NULL DEFAULT 0,
	natural_conversion_ha REAL NOT NULL DEFAULT 0,
	duration_ms           INTEGER NOT NULL DEFAULT 0,
	error                 TEXT NOT NULL DEFAULT '',
	finished_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tile_runs_index ON tile_runs(tile_index);
CREATE INDEX IF NOT EXISTS idx_tile_runs_status ON tile_runs(status);
`

// SQLite stores tile runs in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, eris.New("ledger: sqlite dsn is empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "ledger: sqlite exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "ledger: sqlite migrate")
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, r *Run) error {
	r.fill()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tile_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TileIndex, r.Year, r.Name, r.Key, r.Footprint, string(r.Status),
		r.Pixels, r.NaturalConversionHa, r.DurationMs, r.Error, r.FinishedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: record tile %d", r.TileIndex)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]Run, error) {
	query, args := listQuery(f, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLite) Close() error {
	return s.db.Close()
}
