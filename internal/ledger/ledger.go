// Package ledger records the outcome of every tile job so operators can see
// which tiles of a job array have run, been skipped or failed.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natural-conversion/internal/db"
)

// Status of a tile run.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Run is one tile job execution.
type Run struct {
	ID        string `json:"id"`
	TileIndex int    `json:"tile_index"`
	Year      int    `json:"year"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	// Footprint is the tile polygon as EWKB (SRID 4326).
	Footprint           []byte    `json:"-"`
	Status              Status    `json:"status"`
	Pixels              int64     `json:"pixels"`
	NaturalConversionHa float64   `json:"natural_conversion_ha"`
	DurationMs          int64     `json:"duration_ms"`
	Error               string    `json:"error,omitempty"`
	FinishedAt          time.Time `json:"finished_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status Status
	Year   int
	Limit  int
}

// Ledger persists tile runs.
type Ledger interface {
	Migrate(ctx context.Context) error
	// Record inserts r, assigning ID and FinishedAt when empty.
	Record(ctx context.Context, r *Run) error
	// List returns runs newest first.
	List(ctx context.Context, f Filter) ([]Run, error)
	Close() error
}

// Config selects the ledger backend.
type Config struct {
	Driver string        `mapstructure:"driver"` // "", "sqlite" or "postgres"
	DSN    string        `mapstructure:"dsn"`
	Pool   db.PoolConfig `mapstructure:"pool"`
}

// Open returns the configured ledger. An empty driver returns a ledger that
// discards everything.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	switch cfg.Driver {
	case "":
		return Nop{}, nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}

// Nop is a Ledger that records nothing.
type Nop struct{}

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Record(_ context.Context, r *Run) error {
	r.fill()
	return nil
}

func (Nop) List(context.Context, Filter) ([]Run, error) { return nil, nil }

func (Nop) Close() error { return nil }
