package notify

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/utils/retry"
)

// AMQPSink publishes envelopes on a durable topic exchange, routed by
// RoutingKey.
type AMQPSink struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPSink dials url with backoff and declares the exchange.
func NewAMQPSink(ctx context.Context, url, exchange string, log waLog.Logger) (*AMQPSink, error) {
	cfg := retry.DefaultConfig()
	cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warnf("AMQP dial failed (attempt %d, retrying in %s): %v", attempt, wait, err)
	}
	conn, err := retry.Do(ctx, cfg, func(context.Context) (*amqp.Connection, error) {
		return amqp.Dial(url)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to AMQP broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open AMQP channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to declare exchange %s", exchange)
	}
	return &AMQPSink{conn: conn, exchange: exchange, ch: ch}, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Send(ctx context.Context, env Envelope, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil || s.ch.IsClosed() {
		ch, err := s.conn.Channel()
		if err != nil {
			return err
		}
		s.ch = ch
	}
	return s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(env.SessionID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    time.UnixMilli(env.Timestamp),
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		s.ch.Close()
	}
	return s.conn.Close()
}
