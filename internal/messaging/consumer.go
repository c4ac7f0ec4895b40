package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"channel-history/internal/domain"
)

// ChangeConsumer delivers changes published to the changes exchange
type ChangeConsumer struct {
	rmq        *RabbitMQ
	bindingKey string
}

// NewChangeConsumer creates a consumer for routing keys matching
// bindingKey, "history.#" when empty
func NewChangeConsumer(rmq *RabbitMQ, bindingKey string) *ChangeConsumer {
	if bindingKey == "" {
		bindingKey = "history.#"
	}
	return &ChangeConsumer{
		rmq:        rmq,
		bindingKey: bindingKey,
	}
}

// Start binds a private queue and calls handle for every change until
// ctx is done or the broker closes the delivery channel
func (c *ChangeConsumer) Start(ctx context.Context, handle func(domain.Change)) error {
	queue, err := c.rmq.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.rmq.channel.QueueBind(
		queue.Name,
		c.bindingKey,
		ChangesExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := c.rmq.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming history changes",
		slog.String("queue", queue.Name),
		slog.String("binding_key", c.bindingKey))

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping change consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("change consumer channel closed")
					return
				}
				if err := dispatchChange(msg.Body, handle); err != nil {
					slog.Error("error decoding change",
						slog.String("error", err.Error()),
						slog.String("routing_key", msg.RoutingKey))
				}
			}
		}
	}()

	return nil
}

func dispatchChange(body []byte, handle func(domain.Change)) error {
	var change domain.Change
	if err := json.Unmarshal(body, &change); err != nil {
		return err
	}
	handle(change)
	return nil
}
