package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("producer closed")

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes envelopes to Kafka from a buffered inbox so request
// paths never wait on the broker.
type Producer struct {
	w      messageWriter
	logger *zap.Logger

	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	writeTimeout time.Duration
}

// NewProducer starts a producer writing to brokers. Each message carries its
// own topic.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, logger, 1024)
}

func newProducer(w messageWriter, logger *zap.Logger, buffer int) *Producer {
	p := &Producer{
		w:            w,
		logger:       logger,
		inbox:        make(chan kafka.Message, buffer),
		done:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	go p.loop()
	return p
}

func (p *Producer) loop() {
	defer close(p.done)
	for msg := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		if err := p.w.WriteMessages(ctx, msg); err != nil {
			p.logger.Error("kafka write failed",
				zap.String("topic", msg.Topic),
				zap.String("key", string(msg.Key)),
				zap.Error(err))
		}
		cancel()
	}
	if err := p.w.Close(); err != nil {
		p.logger.Warn("kafka writer close", zap.Error(err))
	}
}

// Publish queues env for delivery. It only blocks while the inbox is full.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_version", Value: []byte(fmt.Sprint(env.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued messages and closes the writer.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
