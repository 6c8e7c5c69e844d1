package common

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outgoing provider requests so a burst of resolves does
// not hammer an upstream catalog. The zero interval disables pacing.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer that allows one request per minInterval.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request slot or the context ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
