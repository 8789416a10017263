// Package broker publishes chat events to a RabbitMQ topic exchange and lets
// background workers consume them.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatwire/backend/internal/models"
)

const (
	// Exchange is the topic exchange all chat events flow through.
	Exchange = "chat.events"

	// QueueMessageNotifications feeds the push-notification worker.
	QueueMessageNotifications = "message.notifications"

	// QueueUserStatus collects read receipts and status updates.
	QueueUserStatus = "user.status"
)

// Publisher owns one connection and one channel to the broker. A channel is
// not safe for concurrent use, so every operation is serialized by the mutex.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects to the broker and declares the exchange and queues.
// A broker that is down is not fatal: the publisher comes up degraded and
// every Publish reports the backend as unavailable until restart.
func NewPublisher(url string) *Publisher {
	p := &Publisher{}

	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("WARNING: RabbitMQ unavailable, events will not be published: %v", err)
		return p
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("WARNING: opening RabbitMQ channel: %v", err)
		conn.Close()
		return p
	}
	if err := declareTopology(ch); err != nil {
		log.Printf("WARNING: declaring RabbitMQ topology: %v", err)
		ch.Close()
		conn.Close()
		return p
	}

	p.conn = conn
	p.ch = ch
	log.Println("Connected to RabbitMQ")
	return p
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	for queue, keys := range map[string][]string{
		QueueMessageNotifications: {"message.*", "messages.*"},
		QueueUserStatus:           {"user.*"},
	} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
		for _, key := range keys {
			if err := ch.QueueBind(queue, key, Exchange, false, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// Publish sends one JSON-encoded event to the exchange under the given
// routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return fmt.Errorf("publish %s: %w", routingKey, models.ErrUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", routingKey, err)
	}

	return p.ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume delivers messages from a queue to fn, acking each one that fn
// accepts without error. It blocks until the channel is torn down.
func (p *Publisher) Consume(queue string, fn func(body []byte) error) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("consume %s: %w", queue, models.ErrUnavailable)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for d := range deliveries {
		if err := fn(d.Body); err != nil {
			log.Printf("WARNING: handling delivery from %s: %v", queue, err)
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
