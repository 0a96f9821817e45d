package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"plant-monitor-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PlantEventPublisher publishes alert transitions and analysis results.
// An amqp channel is not safe for concurrent use, so publishes are serialized.
type PlantEventPublisher struct {
	mu                sync.Mutex
	channel           Channel
	declared          map[string]bool
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewPlantEventPublisher(channel Channel) *PlantEventPublisher {
	return &PlantEventPublisher{
		channel:         channel,
		declared:        map[string]bool{},
		lastPublishTime: time.Now(),
	}
}

// Notify implements services.AlertNotifier.
func (p *PlantEventPublisher) Notify(ctx context.Context, evt models.AlertEvent) error {
	return p.publish(ctx, AlertQueue, evt)
}

func (p *PlantEventPublisher) PublishAnalysis(ctx context.Context, result models.AnalysisResult) error {
	return p.publish(ctx, AnalysisQueue, NewAnalysisEvent(result))
}

func (p *PlantEventPublisher) publish(ctx context.Context, queue string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if _, err := p.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.messagesFailed++
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared[queue] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish event to %s: %w", queue, err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()
	slog.Info("plant event published", "queue", queue, "bytes", len(body))
	return nil
}

// GetStats returns publisher statistics.
func (p *PlantEventPublisher) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"last_publish_time":  p.lastPublishTime,
	}
}

// HealthCheck fails when publishing has failed more than it succeeded.
func (p *PlantEventPublisher) HealthCheck() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return fmt.Errorf("RabbitMQ channel is nil")
	}
	if p.messagesFailed > 0 && p.messagesFailed > p.messagesPublished {
		return fmt.Errorf("more failed publishes (%d) than successful ones (%d)", p.messagesFailed, p.messagesPublished)
	}
	return nil
}
