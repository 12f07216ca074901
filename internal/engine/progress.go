package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/platform"
)

// progressRelay forwards progress to an observer without letting it stall
// the copy. After one call exceeds the deadline the observer is dropped.
type progressRelay struct {
	fn      ProgressFunc
	timeout time.Duration
	logger  *zap.Logger
}

func newProgressRelay(fn ProgressFunc, timeout time.Duration, logger *zap.Logger) *progressRelay {
	return &progressRelay{fn: fn, timeout: timeout, logger: logger}
}

func (r *progressRelay) report(current, total int) {
	if r == nil || r.fn == nil {
		return
	}
	fn := r.fn
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Warn("Progress observer panicked", zap.Any("panic", rec))
			}
		}()
		fn(current, total)
	}()

	select {
	case <-done:
	case <-time.After(r.timeout):
		r.logger.Warn("Progress observer is not responding, dropping it", zap.Duration("timeout", r.timeout))
		r.fn = nil
	}
}

// retry runs push up to the configured number of attempts with a fixed
// pause between them. Unsupported operations are not retried.
func (e *Engine) retry(ctx context.Context, push func(context.Context) error) (int, error) {
	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if err = push(ctx); err == nil {
			return attempt, nil
		}
		if errors.Is(err, platform.ErrUnsupported) {
			return attempt, err
		}
		e.logger.Warn("Failed to set clipboard",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.attempts),
			zap.Error(err))
		if attempt == e.attempts {
			break
		}

		timer := time.NewTimer(e.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return e.attempts, err
}
