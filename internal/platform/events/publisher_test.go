package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	calls    int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublishWritesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, Config{Topic: "pos.sales"}, discard())

	require.NoError(t, p.Publish(context.Background(), "sale.completed", "sale-1", map[string]any{"total_cents": 3500}))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "sale-1", string(w.messages[0].Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &env))
	assert.Equal(t, "sale.completed", env.Type)
	assert.Equal(t, "odyssey-pos", env.Source)
	assert.JSONEq(t, `{"total_cents":3500}`, string(env.Data))
}

func TestPublishOpensCircuitAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(w, Config{Topic: "pos.sales", FailureThreshold: 2, OpenTimeout: time.Minute}, discard())
	ctx := context.Background()

	require.Error(t, p.Publish(ctx, "sale.completed", "a", nil))
	require.Error(t, p.Publish(ctx, "sale.completed", "b", nil))
	err := p.Publish(ctx, "sale.completed", "c", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, w.calls)
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	require.NoError(t, p.Publish(context.Background(), "x", "y", nil))
	require.NoError(t, p.Close())
}
