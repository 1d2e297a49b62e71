package lockwait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/marmos91/filehandle/internal/logger"
	"github.com/marmos91/filehandle/pkg/filehandle"
)

// Default poller settings.
const (
	DefaultPollRate  = 20.0
	DefaultPollBurst = 1
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Rate is the sustained number of lock attempts per second.
	// Zero means DefaultPollRate.
	Rate float64 `mapstructure:"rate" validate:"gte=0" yaml:"rate"`

	// Burst is how many attempts may be made back to back before pacing
	// kicks in. Zero means DefaultPollBurst.
	Burst int `mapstructure:"burst" validate:"gte=0" yaml:"burst"`

	// Timeout bounds the total wait. Zero means wait until the context is
	// cancelled.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
}

// Poller repeatedly makes non-blocking lock attempts, paced by a token bucket.
//
// The token bucket algorithm works as follows:
//  1. Tokens are added to the bucket at Rate per second
//  2. Each attempt consumes one token
//  3. When the bucket is empty the poller waits for the next token
//  4. Burst is the bucket capacity, so the first attempt is always immediate
//
// Unlike Blocking, a Poller honours context cancellation and its own timeout
// while the lock is contended.
//
// Thread safety:
// A Poller may be shared; concurrent Acquire calls draw from the same bucket.
type Poller struct {
	limiter *rate.Limiter
	timeout time.Duration
}

// NewPoller creates a Poller from cfg, applying defaults to zero fields.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultPollRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultPollBurst
	}

	return &Poller{
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		timeout: cfg.Timeout,
	}
}

// Timeout returns the configured total wait, 0 for none.
func (p *Poller) Timeout() time.Duration {
	return p.timeout
}

// Acquire implements Acquirer.
//
// Returns:
//   - nil once the lock is granted
//   - ctx.Err() if the caller's context is cancelled first
//   - an error wrapping ErrTimeout and filehandle.ErrWouldBlock when the
//     timeout expires while the lock is still contended
//   - any other lock failure as is, without retrying
func (p *Poller) Acquire(ctx context.Context, l Locker, mode filehandle.LockState) error {
	waitCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	var contended error
	attempts := 0

	for {
		if err := p.limiter.Wait(waitCtx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if contended == nil {
				contended = filehandle.ErrWouldBlock
			}
			return fmt.Errorf("%w after %d attempts in %v: %w",
				ErrTimeout, attempts, time.Since(start).Round(time.Millisecond), contended)
		}

		attempts++
		err := lock(l, mode, true)
		if err == nil {
			if attempts > 1 {
				logger.Debug("lockwait: %s lock granted after %d attempts in %v", mode, attempts, time.Since(start))
			}
			return nil
		}
		if !errors.Is(err, filehandle.ErrWouldBlock) {
			return err
		}
		contended = err
	}
}
