package push

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWriteInterval keeps pushes under the CRM's 500 requests per minute
const DefaultWriteInterval = 120 * time.Millisecond

// Pacer is waited on after every remote call
type Pacer interface {
	Pause(ctx context.Context) error
}

// PacerFunc adapts a function to Pacer
type PacerFunc func(ctx context.Context) error

func (f PacerFunc) Pause(ctx context.Context) error { return f(ctx) }

// NoPause never waits. Only for tests and dry runs.
var NoPause = PacerFunc(func(ctx context.Context) error { return ctx.Err() })

// RatePacer spaces calls at least interval apart
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer creates a pacer allowing one call per interval. The initial token
// is spent so the first Pause already waits a full interval.
func NewRatePacer(interval time.Duration) *RatePacer {
	if interval <= 0 {
		interval = DefaultWriteInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()
	return &RatePacer{limiter: limiter}
}

// Pause blocks until the next call is allowed or ctx is done
func (p *RatePacer) Pause(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
