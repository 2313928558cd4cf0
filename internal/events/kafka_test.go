package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducer_PublishDeliversOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, zap.NewNop(), 8)

	env, err := NewEnvelope(EventBookingConfirmed, "test", "req-1", BookingChanged{BookingID: "b1", FlightID: "f1"})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), TopicBookingConfirmed, []byte("f1"), env))
	p.Close()

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicBookingConfirmed, msg.Topic)
	assert.Equal(t, "f1", string(msg.Key))
	assert.True(t, w.closed)

	var got Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, 1, got.EventVersion)
	assert.Equal(t, "req-1", got.CorrelationID)

	var payload BookingChanged
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "b1", payload.BookingID)
}

func TestProducer_PublishAfterClose(t *testing.T) {
	p := newProducer(&fakeWriter{}, zap.NewNop(), 1)
	p.Close()
	p.Close()

	err := p.Publish(context.Background(), TopicFlightScheduled, nil, Envelope{})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducer_WriteErrorsAreNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, zap.NewNop(), 4)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), TopicBookingCancelled, []byte("k"), Envelope{}))
	}
	p.Close()
	assert.Empty(t, w.msgs)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, TopicBookingConfirmed, []byte("a"), Envelope{EventType: EventBookingConfirmed}))
	require.NoError(t, r.Publish(ctx, TopicBookingCancelled, []byte("a"), Envelope{EventType: EventBookingCancelled}))

	assert.Len(t, r.Messages(), 2)
	cancelled := r.Topic(TopicBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, EventBookingCancelled, cancelled[0].Envelope.EventType)
}
