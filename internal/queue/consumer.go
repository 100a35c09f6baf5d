package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/config"
)

// NotificationLogFile is the file, inside the configured log directory,
// that receives one line per delivered event.
const NotificationLogFile = "notifications.log"

// StartNotificationConsumer connects to RabbitMQ, declares the event queue
// (durable) and appends every message to <LogDir>/notifications.log in a
// single-line, human-friendly format.  It reconnects with exponential
// backoff and only returns once ctx is cancelled.  Messages that cannot be
// handled are rejected without requeue so the loop never spins.
func StartNotificationConsumer(ctx context.Context, cfg config.QueueConfig, log *zap.Logger) error {
	if cfg.URL == "" {
		return errors.New("notification consumer: no broker url configured")
	}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("notification consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("notification consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.QueueConfig, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("notification consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(cfg.LogDir, d.Body); err != nil {
				log.Warn("notification consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends it to the notification log
// in dir.
func HandleMessage(dir string, body []byte) error {
	var ev AllotmentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, NotificationLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as one newline-terminated log line.
func FormatEvent(ev AllotmentEvent) string {
	line := fmt.Sprintf("[%s] %s | allotment_id=%d | applicant_id=%d | user_id=%d | round=%d | course_id=%d | category=%s | rank=%d | status=%s",
		ev.OccurredAt, ev.Type, ev.AllotmentID, ev.ApplicantID, ev.UserID, ev.RoundNumber, ev.CourseID, ev.Category, ev.Rank, ev.Status)
	if ev.ReplacedAllotmentID != 0 {
		line += fmt.Sprintf(" | replaces=%d", ev.ReplacedAllotmentID)
	}
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	if ev.RunID != "" {
		line += " | run_id=" + ev.RunID
	}
	return line + "\n"
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
