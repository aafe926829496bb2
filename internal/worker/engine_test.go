package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/messaging"
)

type scriptedClient struct {
	messages []messaging.Message
	once     sync.Once
}

func (c *scriptedClient) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }

func (c *scriptedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	c.once.Do(func() {
		for _, msg := range c.messages {
			_ = handler(ctx, msg)
		}
	})
	<-ctx.Done()
	return ctx.Err()
}

func (c *scriptedClient) Topic() string { return "orders.events" }

func enabledConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers = config.Worker{
		Enabled:        true,
		Concurrency:    2,
		HandlerTimeout: time.Second,
		RetryBackoff:   10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
	return cfg
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handler(prefix string) messaging.Handler {
	return func(_ context.Context, msg messaging.Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, prefix+string(msg.Key))
		return nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestEngineDispatchesByTopic(t *testing.T) {
	rec := &recorder{}
	client := &scriptedClient{messages: []messaging.Message{
		{Topic: "orders.events", Key: []byte("o-1")},
		{Topic: "unrouted", Key: []byte("x")},
		{Topic: "orders.events", Key: []byte("o-2")},
	}}
	engine := NewEngine(Params{
		Client:        client,
		Logger:        zap.NewNop(),
		Config:        enabledConfig(),
		Registrations: []HandlerRegistration{{Name: "stats", Topic: "orders.events", Handler: rec.handler("")}},
	})

	require.NoError(t, engine.start(context.Background()))
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.stop(ctx))
	assert.Equal(t, []string{"o-1", "o-2"}, rec.seen)
}

func TestEngineFansOutAndJoinsErrors(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("cache down")
	engine := NewEngine(Params{
		Client: &scriptedClient{},
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Name: "audit", Topic: "orders.events", Handler: rec.handler("audit:")},
			{Name: "stats", Topic: "orders.events", Handler: func(context.Context, messaging.Message) error { return boom }},
			{Name: "incomplete", Topic: "orders.events"},
		},
	})

	err := engine.dispatch(context.Background(), zap.NewNop(), messaging.Message{Topic: "orders.events", Key: []byte("o-9")})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "stats")
	assert.Equal(t, []string{"audit:o-9"}, rec.seen)
	assert.Len(t, engine.routes["orders.events"], 2)
}

func TestEngineAppliesHandlerTimeout(t *testing.T) {
	cfg := enabledConfig()
	cfg.Messaging.Workers.HandlerTimeout = 20 * time.Millisecond

	slow := func(ctx context.Context, _ messaging.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}
	engine := NewEngine(Params{
		Client:        &scriptedClient{},
		Logger:        zap.NewNop(),
		Config:        cfg,
		Registrations: []HandlerRegistration{{Topic: "orders.events", Handler: slow}},
	})

	err := engine.dispatch(context.Background(), zap.NewNop(), messaging.Message{Topic: "orders.events"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngineDisabled(t *testing.T) {
	engine := NewEngine(Params{
		Client:        &scriptedClient{},
		Logger:        zap.NewNop(),
		Config:        config.Config{},
		Registrations: []HandlerRegistration{{Topic: "orders.events", Handler: func(context.Context, messaging.Message) error { return nil }}},
	})

	require.NoError(t, engine.start(context.Background()))
	assert.Nil(t, engine.cancel)
	assert.NoError(t, engine.stop(context.Background()))
}
