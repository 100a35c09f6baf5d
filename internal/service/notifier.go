package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/config"
	"github.com/iliyamo/seat-allotment/internal/queue"
)

// Notifier dispatches allotment events to applicants.  Calls happen after
// commit; a returned error is logged by the caller and never undoes the
// change that triggered it.
type Notifier interface {
	Notify(ctx context.Context, ev queue.AllotmentEvent) error
}

// LogNotifier writes events to the logger only.  It is used when no broker
// is configured.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev queue.AllotmentEvent) error {
	n.Log.Info("notification",
		zap.String("type", string(ev.Type)),
		zap.Uint64("allotment_id", ev.AllotmentID),
		zap.Uint64("applicant_id", ev.ApplicantID))
	return nil
}

// QueuePublisher publishes events to a durable RabbitMQ queue.  The
// connection is opened on first use and re-opened after any failure.
// Messages are marked as persistent.
type QueuePublisher struct {
	url   string
	queue string
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewQueuePublisher returns a publisher for cfg.  No connection is made
// until the first Notify.
func NewQueuePublisher(cfg config.QueueConfig, log *zap.Logger) *QueuePublisher {
	return &QueuePublisher{url: cfg.URL, queue: cfg.Queue, log: log}
}

func (p *QueuePublisher) Notify(ctx context.Context, ev queue.AllotmentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return err
	}
	return nil
}

// channel returns the open channel, dialling when needed.  p.mu must be held.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if p.url == "" {
		return nil, errors.New("rabbitmq: no url configured")
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.log.Info("rabbitmq publisher connected", zap.String("queue", p.queue))
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
