package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
)

// Message represents a message consumed from the bus.
type Message struct {
	Topic     string
	Partition int
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Offset    int64
	Time      time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// HeaderEventType names the header carrying the event discriminator.
const HeaderEventType = "event-type"

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; order events will not leave the process")

		return NewNoop(cfg.Messaging.Kafka.Topic), nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type noopClient struct {
	topic string
}

// NewNoop returns a client that drops published messages and blocks on Consume.
func NewNoop(topic string) Client {
	return noopClient{topic: topic}
}

func (n noopClient) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	policy RetryPolicy
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kc := cfg.Messaging.Kafka
	logger = logger.With(zap.String("topic", kc.Topic))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kc.Brokers...),
		Topic:        kc.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: kc.ConnectTimeout,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger, errors: true},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kc.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kc.Topic,
		MinBytes:       kc.MinBytes,
		MaxBytes:       kc.MaxBytes,
		CommitInterval: kc.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kc.ConnectTimeout,
			ClientID: kc.ClientID,
		},
		Logger:      kafkaLogger{logger: logger},
		ErrorLogger: kafkaLogger{logger: logger, errors: true},
	})

	client := &kafkaClient{
		writer: writer,
		reader: reader,
		topic:  kc.Topic,
		policy: PolicyFrom(cfg.Messaging.Workers),
		logger: logger,
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("closing kafka client")

			if err := writer.Close(); err != nil {
				return err
			}
			return reader.Close()
		},
	})

	return client
}

// Publish writes one message keyed by the order id, so every event of an order lands
// on the same partition and is consumed in the order it was produced.
func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	msg := kafka.Message{Key: key, Value: value}
	for name, v := range InjectTrace(ctx, headers) {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(v)})
	}
	return k.writer.WriteMessages(ctx, msg)
}

// Consume fetches messages until ctx is cancelled. A message is committed once its handler
// succeeds or the retry policy gives up on it; shutdown mid-delivery leaves it uncommitted.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		raw, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			if err := sleep(ctx, k.policy.Backoff); err != nil {
				return err
			}
			continue
		}

		msg := fromKafka(raw)
		attempts, err := Deliver(ctx, k.policy, handler, msg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("dropping message after failed deliveries",
				zap.Int("attempts", attempts),
				zap.Int64("offset", raw.Offset),
				zap.ByteString("key", raw.Key),
				zap.String("event_type", msg.Headers[HeaderEventType]),
				zap.Error(err),
			)
		}

		if err := k.reader.CommitMessages(ctx, raw); err != nil {
			k.logger.Warn("commit failed", zap.Int64("offset", raw.Offset), zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func fromKafka(msg kafka.Message) Message {
	out := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Key:       append([]byte(nil), msg.Key...),
		Value:     append([]byte(nil), msg.Value...),
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

// RetryPolicy bounds how often a failing message is handed back to its handler.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// PolicyFrom derives the retry policy from worker configuration.
func PolicyFrom(w config.Worker) RetryPolicy {
	return RetryPolicy{MaxAttempts: w.MaxAttempts, Backoff: w.RetryBackoff, MaxBackoff: w.MaxBackoff}
}

// Deliver runs handler until it succeeds or the policy is exhausted, doubling the wait
// between attempts. The trace context carried in the headers is restored for each attempt.
func Deliver(ctx context.Context, policy RetryPolicy, handler Handler, msg Message) (int, error) {
	maxAttempts := max(policy.MaxAttempts, 1)
	backoff := policy.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = handler(ExtractTrace(ctx, msg.Headers), msg); err == nil {
			return attempt, nil
		}
		if attempt >= maxAttempts {
			return attempt, err
		}
		if werr := sleep(ctx, backoff); werr != nil {
			return attempt, werr
		}
		if backoff *= 2; policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

// InjectTrace returns a copy of headers carrying the active trace context.
func InjectTrace(ctx context.Context, headers map[string]string) map[string]string {
	carrier := make(propagation.MapCarrier, len(headers)+2)
	for k, v := range headers {
		carrier[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// ExtractTrace restores a trace context injected by the producer.
func ExtractTrace(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	if k.errors {
		k.logger.Sugar().Warnf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
