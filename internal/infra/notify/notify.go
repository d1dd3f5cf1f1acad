package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// BadgeAwardedEvent is the message published for every new badge.
type BadgeAwardedEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	BadgeID   string    `json:"badgeId"`
	BadgeName string    `json:"badgeName"`
	Icon      string    `json:"icon"`
	QuizIndex *int      `json:"quizIndex,omitempty"`
	EarnedAt  time.Time `json:"earnedAt"`
}

func newEvent(badge domain.EarnedBadge, def app.Badge) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		Type:      "badge_awarded",
		UserID:    badge.UserID,
		BadgeID:   badge.BadgeID,
		BadgeName: def.Name.Get(domain.LangEN),
		Icon:      def.Icon,
		QuizIndex: badge.QuizIndex,
		EarnedAt:  badge.EarnedAt,
	}
}

// LogNotifier writes awards to the standard logger.
type LogNotifier struct{}

func (LogNotifier) BadgeAwarded(_ context.Context, badge domain.EarnedBadge, def app.Badge) error {
	log.Printf("badge awarded: user=%s badge=%s (%s)", badge.UserID, badge.BadgeID, def.Name.Get(domain.LangEN))
	return nil
}

// Publisher sends a message body to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// QueueNotifier publishes BadgeAwardedEvent JSON to a queue.
type QueueNotifier struct {
	publisher Publisher
	queue     string
}

func NewQueueNotifier(publisher Publisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue}
}

func (n *QueueNotifier) BadgeAwarded(ctx context.Context, badge domain.EarnedBadge, def app.Badge) error {
	body, err := json.Marshal(newEvent(badge, def))
	if err != nil {
		return err
	}
	if err := n.publisher.Publish(ctx, n.queue, body); err != nil {
		return fmt.Errorf("publish badge %s for %s: %w", badge.BadgeID, badge.UserID, err)
	}
	return nil
}

// RabbitMQ is a Publisher on a single AMQP channel.
type RabbitMQ struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

func DialRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &RabbitMQ{conn: conn, channel: channel, declared: make(map[string]bool)}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.declared[queue] {
		if _, err := r.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		r.declared[queue] = true
	}
	return r.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
