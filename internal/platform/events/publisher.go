// Package events publishes domain events to Kafka behind a circuit breaker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("platform/events: circuit open")

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

// Config tunes the writer and breaker.
type Config struct {
	Brokers          []string
	Topic            string
	Source           string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewKafkaWriter builds a synchronous writer for one topic.
func NewKafkaWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// Publisher writes envelopes through a gobreaker circuit.
type Publisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	source  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher wraps writer. Consecutive failures beyond the threshold open
// the circuit for OpenTimeout.
func NewPublisher(writer MessageWriter, cfg Config, logger *slog.Logger) *Publisher {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	source := cfg.Source
	if source == "" {
		source = "odyssey-pos"
	}
	settings := gobreaker.Settings{
		Name:    "kafka:" + cfg.Topic,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Publisher{
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker(settings),
		source:  source,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish marshals data into an envelope keyed by key.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, data any) error {
	if p == nil || p.writer == nil {
		return nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("platform/events: marshal %s: %w", eventType, err)
	}
	env := Envelope{ID: uuid.NewString(), Type: eventType, Source: p.source, Time: p.now().UTC(), Data: body}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("platform/events: marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "ce-id", Value: []byte(env.ID)},
			{Key: "ce-type", Value: []byte(eventType)},
			{Key: "ce-source", Value: []byte(env.Source)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: env.Time,
	}
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err != nil {
		return fmt.Errorf("platform/events: publish %s: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
