package artifact

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := max(int(perSecond), 1)
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter wait")
	}
	return nil
}
