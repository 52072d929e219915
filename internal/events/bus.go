// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

const (
	breakerName = "events_publisher"

	directionPublish = "publish"
	directionConsume = "consume"
)

// ErrClosed is returned by a bus that has been closed.
var ErrClosed = errors.New("event bus is closed")

// Handler processes one decoded event. A returned error is logged and the
// message is still acked: redelivering a version that fails to load would
// fail the same way.
type Handler func(ctx context.Context, event ModelPublished) error

// Bus publishes and consumes model events on one topic.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New builds the bus selected by cfg.Backend.
func New(cfg *config.EventsConfig) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBus(topic, logger), nil
	case "nats":
		pub, sub, err := newNATSPubSub(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		return newBus(pub, sub, topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NewMemoryBus returns an in-process bus. Messages published while no
// subscriber is attached are dropped. Publish returns once every attached
// subscriber has acked, so events are delivered in publish order.
func NewMemoryBus(topic string, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            16,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return newBus(ch, ch, topic, logger)
}

func newBus(pub message.Publisher, sub message.Subscriber, topic string, logger watermill.LoggerAdapter) *Bus {
	b := &Bus{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		logger:     logger,
	}
	b.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Event publisher circuit breaker state transition", watermill.LogFields{
				"from": from.String(),
				"to":   to.String(),
			})
			metrics.RecordBreakerState(name, from.String(), to.String(), stateToFloat(to))
		},
	})
	return b
}

// Topic returns the topic the bus publishes on.
func (b *Bus) Topic() string {
	return b.topic
}

// PublishModel sends a model-published event. The correlation id of ctx,
// if any, travels in the message metadata.
func (b *Bus) PublishModel(ctx context.Context, event ModelPublished) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if err := event.Validate(); err != nil {
		return err
	}
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	msg.Metadata.Set("model_type", event.ModelType)
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.publisher.Publish(b.topic, msg)
	})
	metrics.RecordEvent(b.topic, directionPublish, err)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(breakerName, "rejected")
	case err != nil:
		metrics.RecordBreakerRequest(breakerName, "failure")
	default:
		metrics.RecordBreakerRequest(breakerName, "success")
	}
	if err != nil {
		return fmt.Errorf("publish model event: %w", err)
	}
	return nil
}

// Consume delivers events to fn until ctx is canceled or the subscription
// closes. Undecodable messages are acked and dropped so they cannot block
// the subscription. A handler error is logged and the message acked too;
// the next published version supersedes it.
func (b *Bus) Consume(ctx context.Context, fn Handler) error {
	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.handle(ctx, msg, fn)
		}
	}
}

func (b *Bus) handle(ctx context.Context, msg *message.Message, fn Handler) {
	fields := watermill.LogFields{"message_uuid": msg.UUID, "topic": b.topic}

	event, err := UnmarshalModelPublished(msg.Payload)
	if err != nil {
		b.logger.Error("Dropping undecodable model event", err, fields)
		metrics.RecordEvent(b.topic, directionConsume, err)
		msg.Ack()
		return
	}

	if id := msg.Metadata.Get("correlation_id"); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	if err := fn(ctx, event); err != nil {
		b.logger.Error("Model event handler failed", err, fields)
		metrics.RecordEvent(b.topic, directionConsume, err)
		msg.Ack()
		return
	}
	metrics.RecordEvent(b.topic, directionConsume, nil)
	msg.Ack()
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.publisher.Close()
	if any(b.subscriber) != any(b.publisher) {
		err = errors.Join(err, b.subscriber.Close())
	}
	return err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
