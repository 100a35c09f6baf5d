package config

import "os"

// QueueConfig configures notification dispatch over RabbitMQ.
type QueueConfig struct {
	URL             string // AMQP URL; empty disables publishing
	Queue           string // durable queue carrying allotment events
	ConsumerEnabled bool   // run the notification consumer inside the server
	LogDir          string // directory receiving notifications.log
}

func LoadQueueConfig() QueueConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return QueueConfig{
		URL:             url,
		Queue:           envStr("NOTIFY_QUEUE", "allotment.events"),
		ConsumerEnabled: envBool("NOTIFY_CONSUMER_ENABLED", true),
		LogDir:          envStr("NOTIFY_LOG_DIR", "logs"),
	}
}
