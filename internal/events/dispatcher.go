package events

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/telemetry"
)

// HandlerFunc is one reactor: a unit of logic invoked once per delivery.
// Returning an error requests redelivery; an ALREADY_APPLIED error is
// treated as a successful no-op.
type HandlerFunc func(ctx context.Context, ev *Event) error

type registration struct {
	reactor string
	kinds   map[Kind]bool
	fn      HandlerFunc
}

// Dispatcher routes change events to the reactors registered for their
// collection. Reactors for the same event run independently: one failing
// does not stop the others, and only the failed ones are retried.
type Dispatcher struct {
	regs map[string][]registration
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{regs: make(map[string][]registration)}
}

// Register adds a reactor for a collection and set of change kinds
func (d *Dispatcher) Register(reactor, collection string, kinds []Kind, fn HandlerFunc) {
	ks := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		ks[k] = true
	}
	d.regs[collection] = append(d.regs[collection], registration{
		reactor: reactor,
		kinds:   ks,
		fn:      fn,
	})
}

// Dispatch invokes every matching reactor once. The returned error joins
// the failures of all reactors that want redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	m := metrics.Get()

	var failed []error
	for _, reg := range d.regs[ev.Collection] {
		if !reg.kinds[ev.Kind] {
			continue
		}

		m.ReactorInvocations.WithLabelValues(reg.reactor).Inc()
		spanCtx, span := telemetry.StartReactorSpan(ctx, reg.reactor, ev.ID)
		start := time.Now()

		err := reg.fn(spanCtx, ev)

		m.ReactorDuration.WithLabelValues(reg.reactor).Observe(time.Since(start).Seconds())
		span.End()

		switch {
		case err == nil:
			m.ReactorOutcomes.WithLabelValues(reg.reactor, "ok").Inc()
		case errors.IsAlreadyApplied(err):
			// Duplicate delivery or a concurrent reactor got there first
			m.ReactorOutcomes.WithLabelValues(reg.reactor, "noop").Inc()
			logger.Log.Debug("Reactor no-op",
				logger.WithReactor(reg.reactor),
				logger.WithEventID(ev.ID),
				zap.Error(err),
			)
		default:
			m.ReactorOutcomes.WithLabelValues(reg.reactor, "error").Inc()
			logger.Log.Error("Reactor failed",
				logger.WithReactor(reg.reactor),
				logger.WithEventID(ev.ID),
				logger.WithCollection(ev.Collection),
				zap.Error(err),
			)
			failed = append(failed, err)
		}
	}

	return stderrors.Join(failed...)
}

// Deliver dispatches an event with at-least-once semantics: a failed
// dispatch is redelivered with exponential backoff until it succeeds or
// the delivery window is exhausted. Redelivered attempts re-run every
// matching reactor, which is why all of them are idempotent.
func (d *Dispatcher) Deliver(ctx context.Context, ev *Event) {
	m := metrics.Get()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 5 * time.Minute

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			m.Redeliveries.WithLabelValues(ev.Collection).Inc()
		}
		if err := d.Dispatch(ctx, ev); err != nil {
			if !errors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		logger.Log.Error("Delivery exhausted retries",
			logger.WithEventID(ev.ID),
			logger.WithCollection(ev.Collection),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
}
