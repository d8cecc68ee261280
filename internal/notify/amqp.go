package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// AMQPNotifier publishes notifications to a durable topic exchange; a
// downstream mail worker turns them into email. Routing key is
// "notify.<type>".
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

type notificationEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *AMQPNotifier) Send(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notificationEvent{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Type:      string(notification.Type),
		Subject:   notification.Subject,
		Body:      notification.Body,
		CreatedAt: notification.CreatedAt,
	})
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, n.exchange, "notify."+string(notification.Type), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   notification.ID,
		Body:        body,
	})
}

func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
