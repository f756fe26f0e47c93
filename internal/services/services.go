// Package services holds the portal's use cases. Every service talks to
// persistence through ports.Store and never touches a driver directly.
package services

import (
	"context"
	"errors"
	"time"

	"forum/internal/cache"
	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/metrics"
	"forum/internal/ports"
)

// DefaultStoreTimeout bounds each store call when Deps.Timeout is zero.
const DefaultStoreTimeout = 5 * time.Second

// readBackoff is the wait before each read retry. A read is attempted
// len(readBackoff)+1 times.
var readBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

// Deps are the collaborators shared by the services.
// Only Store is required.
type Deps struct {
	Store     ports.Store
	Publisher ports.EventPublisher
	Metrics   *metrics.Metrics
	Summary   cache.Cache[core.Summary]
	Logger    *log.Logger
	Timeout   time.Duration
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultStoreTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// ErrorType classifies err into one of the log.ErrorType* values.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrValidation):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return log.ErrorTypeConflict
	case errors.Is(err, core.ErrStoreUnavailable):
		return log.ErrorTypeStoreUnavailable
	default:
		return log.ErrorTypeInternal
	}
}

// withWrite runs a single store write under the store timeout. Writes are never retried.
func withWrite(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// withReadRetry runs a read under the store timeout and retries it with
// exponential backoff while the store reports itself unavailable.
func withReadRetry[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt <= len(readBackoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return out, errors.Join(core.ErrStoreUnavailable, ctx.Err())
			case <-time.After(readBackoff[attempt-1]):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err = fn(attemptCtx)
		cancel()
		if err == nil || !errors.Is(err, core.ErrStoreUnavailable) {
			return out, err
		}
	}
	return out, err
}

// SummaryKey is the cache key of the dashboard summary.
const SummaryKey = "summary"

func invalidateSummary(c cache.Cache[core.Summary]) {
	if c != nil {
		c.Delete(SummaryKey)
	}
}

func publish(ctx context.Context, d Deps, ev core.LedgerEvent) {
	if d.Publisher == nil {
		return
	}
	err := d.Publisher.PublishLedgerEvent(context.WithoutCancel(ctx), ev)
	d.Metrics.ObservePublish(string(ev.Type), err)
	if err != nil {
		d.Logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldMemberID, ev.MemberID,
			"event_type", ev.Type,
			log.FieldError, err)
	}
}
