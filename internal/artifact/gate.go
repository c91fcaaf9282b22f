package artifact

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/metrics"
)

// Outcome of a gated job.
type Outcome int

const (
	// Written means the artifact was produced and stored.
	Written Outcome = iota
	// Skipped means the artifact already existed and nothing ran.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "written"
}

// Gate makes a job idempotent by checking for its output first. It does not
// detect partial artifacts, and two jobs racing on one key both write (last
// writer wins).
type Gate struct {
	Store Store
}

// Run produces and stores the artifact at key unless it already exists.
// When the key exists, produce is never called. A failed existence check is
// returned rather than treated as absent.
func (g Gate) Run(ctx context.Context, key string, produce func(ctx context.Context) ([]byte, error)) (Outcome, error) {
	log := zap.L().With(zap.String("component", "artifact.gate"), zap.String("key", key))

	exists, err := g.Store.Exists(ctx, key)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("exists").Inc()
		return Written, eris.Wrapf(err, "artifact: check %s", key)
	}
	if exists {
		log.Info("artifact exists, skipping")
		return Skipped, nil
	}

	data, err := produce(ctx)
	if err != nil {
		return Written, err
	}
	if err := g.Store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		metrics.StoreErrors.WithLabelValues("put").Inc()
		return Written, eris.Wrapf(err, "artifact: put %s", key)
	}
	log.Info("artifact written", zap.Int("bytes", len(data)))
	return Written, nil
}
