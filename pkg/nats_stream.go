package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStream persists loyalty ledger events in JetStream. It publishes like a
// regular publisher and exposes a durable consumer for replay and live updates.
type NATSStream struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	logger   apt.Logger
}

// NATSStreamConfig configures a NATSStream instance.
type NATSStreamConfig struct {
	URL          string
	StreamName   string // e.g. "LOYALTY_EVENTS"
	Subjects     []string
	ConsumerName string // empty creates an ephemeral consumer
	MaxAge       time.Duration
	MaxMsgs      int64 // 0 keeps the server default

	// InactiveThreshold removes the consumer after it has been idle this long.
	InactiveThreshold time.Duration
}

// NewNATSStream connects and makes sure the stream and its durable consumer exist.
func NewNATSStream(ctx context.Context, cfg NATSStreamConfig, logger apt.Logger) (*NATSStream, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.StreamName == "" || len(cfg.Subjects) == 0 {
		return nil, errors.New("stream name and subjects are required")
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("epicure-stream"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamConfig := jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		Retention: jetstream.LimitsPolicy,
	}
	if cfg.MaxMsgs > 0 {
		streamConfig.MaxMsgs = cfg.MaxMsgs
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,

		InactiveThreshold: cfg.InactiveThreshold,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.ConsumerName, err)
	}

	return &NATSStream{
		conn:     conn,
		js:       js,
		stream:   stream,
		consumer: consumer,
		logger:   logger,
	}, nil
}

func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Fetch returns up to limit pending messages, acknowledging each one.
func (s *NATSStream) Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error) {
	if limit <= 0 {
		limit = 500
	}

	batch, err := s.consumer.Fetch(limit, jetstream.FetchMaxWait(3*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []events.StreamMessage
	for msg := range batch.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			s.logger.Debug("skipping stream message without metadata", "error", err)
			_ = msg.Ack()
			continue
		}
		messages = append(messages, events.StreamMessage{
			Data:      msg.Data(),
			Sequence:  meta.Sequence.Stream,
			Timestamp: meta.Timestamp.UnixNano(),
		})
		_ = msg.Ack()
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return messages, fmt.Errorf("fetch batch: %w", err)
	}

	return messages, nil
}

// SubscribeStream consumes new messages as they arrive. Failed handlers get the
// message redelivered.
func (s *NATSStream) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	_, err := s.consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			s.logger.Error("stream handler failed", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	return err
}

// Subscribe satisfies events.Subscriber. The consumer is already bound to the
// stream subjects so topic is not used.
func (s *NATSStream) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	return s.SubscribeStream(ctx, handler)
}

func (s *NATSStream) Close() error {
	s.conn.Close()
	return nil
}
