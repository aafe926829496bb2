package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/messaging"
)

// HandlerRegistration binds a topic to one handler. Several registrations may share a
// topic; each of them sees every message.
type HandlerRegistration struct {
	Name    string
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine fans consumed order events out to the registered handlers.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Worker
	enabled  bool
	routes   map[string][]HandlerRegistration
	tracer   trace.Tracer
	outcomes metric.Int64Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	routes := make(map[string][]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			p.Logger.Warn("ignoring incomplete worker registration", zap.String("handler", r.Name))
			continue
		}
		if r.Name == "" {
			r.Name = r.Topic
		}
		routes[r.Topic] = append(routes[r.Topic], r)
	}

	outcomes, _ := otel.Meter("github.com/Additional-Code/loft/worker").Int64Counter("loft.worker.messages",
		metric.WithDescription("Consumed messages by handler outcome"),
	)

	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		cfg:      p.Config.Messaging.Workers,
		enabled:  p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		routes:   routes,
		tracer:   otel.Tracer("github.com/Additional-Code/loft/worker"),
		outcomes: outcomes,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := max(e.cfg.Concurrency, 1)
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go func(workerID int) {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}(i)
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", concurrency),
		zap.String("topic", e.client.Topic()),
	)
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// consumeLoop restarts Consume after transport failures, backing off up to MaxBackoff.
func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	logger := e.logger.With(zap.Int("worker", workerID))
	backoff := e.cfg.RetryBackoff
	for ctx.Err() == nil {
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, logger, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		logger.Error("consume loop error", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff *= 2; backoff > e.cfg.MaxBackoff && e.cfg.MaxBackoff > 0 {
			backoff = e.cfg.MaxBackoff
		}
	}
}

// dispatch hands msg to every handler registered for its topic and joins their failures.
func (e *Engine) dispatch(ctx context.Context, logger *zap.Logger, msg messaging.Message) error {
	routes, ok := e.routes[msg.Topic]
	if !ok {
		logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	eventType := msg.Headers[messaging.HeaderEventType]
	var errs []error
	for _, route := range routes {
		if err := e.run(ctx, route, msg, eventType); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", route.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) run(ctx context.Context, route HandlerRegistration, msg messaging.Message, eventType string) error {
	ctx, span := e.tracer.Start(ctx, "worker."+route.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
			attribute.String("loft.event_type", eventType),
		),
	)
	defer span.End()

	if e.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.HandlerTimeout)
		defer cancel()
	}

	err := route.Handler(ctx, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.outcomes != nil {
		e.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("handler", route.Name),
			attribute.String("outcome", outcome),
		))
	}
	return err
}
