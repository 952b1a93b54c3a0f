package sync

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope        = "journalsync/sync"
	spanDispatch     = "outbox.dispatch"
	metricDelivered  = "journalsync.outbox.events.delivered"
	metricRetried    = "journalsync.outbox.events.retried"
	metricFailed     = "journalsync.outbox.events.failed"
	metricAuthAborts = "journalsync.sync.auth_aborts"
)

// Engine runs the dispatcher on a fixed interval and on explicit "sync now"
// triggers. Create one with [NewEngine] and start it with [Engine.Run]; it is
// owned by the caller and stops when the context is cancelled.
type Engine struct {
	dispatcher *Dispatcher
	interval   time.Duration
	runNow     chan struct{}
	log        *slog.Logger

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer        trace.Tracer
	cntDelivered  metric.Int64Counter
	cntRetried    metric.Int64Counter
	cntFailed     metric.Int64Counter
	cntAuthAborts metric.Int64Counter
}

// NewEngine creates an Engine around the dispatcher.
func NewEngine(dispatcher *Dispatcher, interval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		dispatcher: dispatcher,
		interval:   interval,
		runNow:     make(chan struct{}, 1),
		log:        logger,

		tracer:        tracer,
		cntDelivered:  mustCounter(metricDelivered, "Number of outbox events acknowledged by the backend"),
		cntRetried:    mustCounter(metricRetried, "Number of outbox events requeued with backoff"),
		cntFailed:     mustCounter(metricFailed, "Number of outbox events marked terminally failed"),
		cntAuthAborts: mustCounter(metricAuthAborts, "Number of dispatch cycles aborted on auth failure"),
	}
}

// dispatch runs one cycle, recording a trace span and metrics.
func (e *Engine) dispatch(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanDispatch)
	defer span.End()

	stats, err := e.dispatcher.RunCycle(ctx)

	if stats.Delivered > 0 {
		e.cntDelivered.Add(ctx, int64(stats.Delivered))
	}
	if stats.Retried > 0 {
		e.cntRetried.Add(ctx, int64(stats.Retried))
	}
	if stats.Failed > 0 {
		e.cntFailed.Add(ctx, int64(stats.Failed))
	}
	if stats.AuthAborted {
		e.cntAuthAborts.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Int("outbox.delivered", stats.Delivered),
		attribute.Int("outbox.retried", stats.Retried),
		attribute.Int("outbox.failed", stats.Failed),
		attribute.Int("outbox.returned", stats.Returned),
		attribute.Bool("outbox.auth_aborted", stats.AuthAborted),
	)
	if err != nil {
		span.RecordError(err)
	}
	return stats, err
}

// RunOnce performs a single dispatch cycle and returns.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.dispatch(ctx)
}

// TriggerSync requests an immediate cycle. It never blocks: if a trigger is
// already queued the call is a no-op, and an in-progress cycle is not
// interrupted — the extra cycle runs when it finishes.
func (e *Engine) TriggerSync() {
	select {
	case e.runNow <- struct{}{}:
	default:
	}
}

// Run starts the dispatch loop. It blocks until ctx is cancelled. Cycles run
// on the configured interval regardless of whether the previous cycle drained
// the queue — convergence is continuous, not one-shot.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// Run an immediate first pass.
	if _, err := e.dispatch(ctx); err != nil {
		e.log.Error("initial dispatch failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.dispatch(ctx); err != nil {
				e.log.Error("dispatch failed", "error", err)
			}
		case <-e.runNow:
			e.log.Info("manual sync triggered")
			if _, err := e.dispatch(ctx); err != nil {
				e.log.Error("triggered dispatch failed", "error", err)
			}
		}
	}
}
