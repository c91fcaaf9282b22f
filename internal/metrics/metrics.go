// Package metrics exposes Prometheus counters for block and tile processing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Tile outcomes recorded by TilesTotal.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	BlocksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "natconv_blocks_processed_total",
		Help: "Spatial blocks run through the block processor",
	})
	PixelsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "natconv_pixels_classified_total",
		Help: "Pixels classified, by classification code",
	}, []string{"class"})
	NaturalConversionHectares = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "natconv_natural_conversion_hectares_total",
		Help: "Natural-conversion area summed over processed blocks",
	})
	BlockSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "natconv_block_seconds",
		Help:    "Time to read and process one block",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	TilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "natconv_tiles_total",
		Help: "Tile jobs by outcome",
	}, []string{"outcome"})
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "natconv_store_errors_total",
		Help: "Artifact store failures by operation",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(BlocksProcessed, PixelsClassified, NaturalConversionHectares, BlockSeconds, TilesTotal, StoreErrors)
}

// ObserveClasses adds per-class pixel counts. counts[c] is the number of
// pixels with code c.
func ObserveClasses(counts []int64) {
	for c, n := range counts {
		if n > 0 {
			PixelsClassified.WithLabelValues(strconv.Itoa(c)).Add(float64(n))
		}
	}
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	zap.L().Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "metrics: serve")
	}
	return nil
}
