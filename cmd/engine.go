package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/block"
	"github.com/sells-group/natural-conversion/internal/codebook"
	"github.com/sells-group/natural-conversion/internal/config"
	"github.com/sells-group/natural-conversion/internal/ledger"
	"github.com/sells-group/natural-conversion/internal/pipeline"
	"github.com/sells-group/natural-conversion/internal/transition"
)

// loadCodebooks reads the transition codebook and, when configured, the
// cover recode legend.
func loadCodebooks(c *config.Config) (transitions, recode *transition.Codebook, err error) {
	transitions, err = codebook.Load(c.Codebook.Transitions)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load transition codebook")
	}
	if c.Codebook.CoverRecode.Path != "" {
		recode, err = codebook.Load(c.Codebook.CoverRecode)
		if err != nil {
			return nil, nil, eris.Wrap(err, "load cover recode")
		}
	}
	zap.L().Info("codebooks loaded",
		zap.Int("transitions", transitions.Len()),
		zap.Bool("cover_recode", recode != nil),
	)
	return transitions, recode, nil
}

func newExecutor(c *config.Config) (*block.Executor, error) {
	transitions, recode, err := loadCodebooks(c)
	if err != nil {
		return nil, err
	}
	p, err := block.NewProcessor(transitions, recode)
	if err != nil {
		return nil, err
	}
	return &block.Executor{Processor: p, Workers: c.Workers}, nil
}

func inputLayout(c *config.Config) pipeline.Layout {
	return pipeline.Layout{
		Dir:         c.Inputs.Dir,
		Cover:       c.Inputs.Cover,
		Crops:       c.Inputs.Crops,
		Transition:  c.Inputs.Transition,
		InitialYear: c.Inputs.InitialYear,
	}
}

// initLedger opens and migrates the configured ledger. With no driver
// configured the returned ledger records nothing.
func initLedger(ctx context.Context) (ledger.Ledger, error) {
	led, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	if err := led.Migrate(ctx); err != nil {
		_ = led.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return led, nil
}
