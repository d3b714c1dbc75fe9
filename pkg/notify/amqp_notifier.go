package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const changeExchange = "ideamint.changes"

// AMQPNotifier publishes and subscribes change signals over a RabbitMQ topic
// exchange, with the entity kind as routing key. Deployments that already run
// a broker select this backend over Redis via config.
type AMQPNotifier struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPNotifier dials the broker and declares the change exchange.
func NewAMQPNotifier(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(changeExchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch}, nil
}

// Publish emits one signal for the entity kind.
func (n *AMQPNotifier) Publish(ctx context.Context, kind string) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return errors.New("entity kind required")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch.PublishWithContext(ctx, changeExchange, kind, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(kind),
	})
}

// Subscribe binds an exclusive queue to the exchange and forwards signals
// until ctx is done.
func (n *AMQPNotifier) Subscribe(ctx context.Context, kind string) (<-chan struct{}, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, errors.New("entity kind required")
	}
	ch, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, kind, changeExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close releases the broker connection.
func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}
