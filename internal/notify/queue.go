package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// ResultEvent is the queue message body for one Result
type ResultEvent struct {
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage"`
	Subject string    `json:"subject"`
	Value   string    `json:"value,omitempty"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueReporter publishes every Result as JSON to a durable queue
type QueueReporter struct {
	channel channelPublisher
	queue   string
	close   func() error
	now     func() time.Time
}

// DialQueueReporter connects to the broker and declares the queue.
func DialQueueReporter(url, queue string) (*QueueReporter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &QueueReporter{
		channel: ch,
		queue:   queue,
		close:   conn.Close,
		now:     time.Now,
	}, nil
}

func (q *QueueReporter) Report(ctx context.Context, runID string, res domain.Result) {
	event := ResultEvent{
		RunID:   runID,
		Stage:   string(res.Stage),
		Subject: res.Subject,
		Value:   res.Value,
		OK:      res.OK(),
		At:      q.now(),
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error encoding result for queue: %v", err)
		return
	}

	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: runID,
		Timestamp:     event.At,
		Body:          body,
	})
	if err != nil {
		log.Printf("Error publishing result to queue %s: %v", q.queue, err)
	}
}

// Close closes the broker connection.
func (q *QueueReporter) Close() error {
	if q.close == nil {
		return nil
	}
	return q.close()
}
