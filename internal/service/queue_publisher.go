// Package service holds the outbound integrations handlers call into.
// Publishing is best effort: errors are logged and returned so callers can
// ignore them without failing the request that produced the event.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/teststack/test-management-service/internal/queue"
)

// PublishImportCompleted publishes an ImportCompletedEvent to the
// import.completed queue.
func PublishImportCompleted(ctx context.Context, event q.ImportCompletedEvent) error {
	return publish(ctx, q.ImportCompletedQueue, event)
}

// PublishResultRecorded publishes a ResultRecordedEvent to the
// result.recorded queue.
func PublishResultRecorded(ctx context.Context, event q.ResultRecordedEvent) error {
	return publish(ctx, q.ResultRecordedQueue, event)
}

// publish opens a short-lived connection, declares the durable queue and
// sends one persistent JSON message on the default exchange.
func publish(ctx context.Context, queueName string, event interface{}) error {
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
