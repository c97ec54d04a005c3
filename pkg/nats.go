package pkg

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("epicure-publisher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber delivers core NATS messages to handlers. When a queue group
// is set, each message is handled by a single member of the group, so a topic
// like the OTP dispatch one is processed once across service instances.
type NATSSubscriber struct {
	conn   *nats.Conn
	queue  string
	logger apt.Logger
}

func NewNATSSubscriber(url, queue string, logger apt.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	conn, err := nats.Connect(url, nats.Name("epicure-subscriber"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn, queue: queue, logger: logger}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	cb := func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			s.logger.Error("event handler failed", "topic", topic, "error", err)
		}
	}

	if s.queue != "" {
		_, err := s.conn.QueueSubscribe(topic, s.queue, cb)
		return err
	}
	_, err := s.conn.Subscribe(topic, cb)
	return err
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
