package event

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"plant-monitor-service/internal/config"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// BrokerConnection is the single AMQP connection and channel the plant
// event publisher writes to. A lost connection is reported by IsClosed and
// is not re-dialled.
type BrokerConnection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  atomic.Bool
}

// ConnectRabbitMQ dials the broker with exponential backoff.
func ConnectRabbitMQ(cfg config.RabbitMQConfig, maxRetries uint64) (*BrokerConnection, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var conn *amqp.Connection
	dial := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("RabbitMQ not reachable, retrying", "host", cfg.Host, "error", err)
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(dial, backoff.WithMaxRetries(bo, maxRetries)); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	bc := &BrokerConnection{conn: conn, channel: ch}
	go bc.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	slog.Info("Connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port)
	return bc, nil
}

func (b *BrokerConnection) watch(closed <-chan *amqp.Error) {
	if amqpErr, ok := <-closed; ok && amqpErr != nil {
		slog.Error("RabbitMQ connection lost", "code", amqpErr.Code, "reason", amqpErr.Reason)
	}
	b.closed.Store(true)
}

func (b *BrokerConnection) Channel() *amqp.Channel {
	return b.channel
}

func (b *BrokerConnection) IsClosed() bool {
	return b.closed.Load() || b.conn.IsClosed()
}

func (b *BrokerConnection) Close() error {
	if err := b.channel.Close(); err != nil && !b.IsClosed() {
		slog.Error("failed to close RabbitMQ channel", "error", err)
	}
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	slog.Info("RabbitMQ connection closed")
	return nil
}
