// Package queue carries the external-trigger transport: scheduler tick
// jobs published to and consumed from RabbitMQ. The broker only says
// "run a pass now"; all send-queue state lives in Postgres.
package queue

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

const TickQueueName = "outreach_ticks"

// TickJob asks the worker to run one scheduler pass over a scope.
// An empty scope means a global sweep.
type TickJob struct {
	Scope repository.Scope `json:"scope"`
}

// maxRedeliveries bounds republishes of a tick message whose pass
// errored. Ticks are cheap and periodic, so dropping one is harmless.
const maxRedeliveries = 3

// retryCountHeader travels with a republished tick job. A plain Nack
// requeue would not do: the broker redelivers with headers unchanged,
// so the count could never grow and a persistently failing pass would
// spin on the same message.
const retryCountHeader = "x-retry-count"

// retryDecision reads the delivery's retry count and reports whether
// the job gets another attempt, and with what count.
func retryDecision(headers amqp.Table) (int32, bool) {
	var retries int32
	if v, ok := headers[retryCountHeader].(int32); ok {
		retries = v
	}
	if retries >= maxRedeliveries {
		return 0, false
	}
	return retries + 1, true
}

// Publisher pushes tick jobs onto the durable queue.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher declares the tick queue and returns a publisher bound to
// the given connection.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := declareTickQueue(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(job TickJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",            // default exchange
		TickQueueName, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error { return p.ch.Close() }

// Consume reads tick jobs and runs the handler for each, acking on
// success and republishing with an incremented retry count on failure,
// up to maxRedeliveries attempts. It blocks until ctx is cancelled or
// the channel closes.
func Consume(ctx context.Context, conn *amqp.Connection, logger *zap.Logger, handler func(context.Context, TickJob) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := declareTickQueue(ch)
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		false, // autoAck off for reliability
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}

			var job TickJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				logger.Warn("dropping malformed tick job", zap.Error(err))
				d.Ack(false)
				continue
			}

			if err := handler(ctx, job); err != nil {
				logger.Error("tick pass failed", zap.Error(err))
				if next, again := retryDecision(d.Headers); again {
					if pubErr := ch.Publish("", TickQueueName, false, false, amqp.Publishing{
						ContentType:  "application/json",
						DeliveryMode: amqp.Persistent,
						Headers:      amqp.Table{retryCountHeader: next},
						Body:         d.Body,
					}); pubErr != nil {
						logger.Error("tick republish failed", zap.Error(pubErr))
						d.Nack(false, true)
						continue
					}
				} else {
					logger.Warn("dropping tick job after repeated failures")
				}
			}
			d.Ack(false)
		}
	}
}

func declareTickQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		TickQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}
