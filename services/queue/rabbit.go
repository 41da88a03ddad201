package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/madrasa/core"
)

const routingPrefix = "job."

var ErrPublishNacked = errors.New("broker did not accept the job")

// Rabbit is the durable broker-backed queue. Jobs are published as persistent messages on a topic
// exchange; consumers ack after the runner returns and dead-letter jobs that finally failed.
type Rabbit struct {
	conf   core.QueueConfig
	logger core.Logger

	conn  *amqp.Connection
	ch    *amqp.Channel
	pubMu sync.Mutex
}

var _ core.JobQueue = (*Rabbit)(nil)

func DialRabbit(conf core.QueueConfig, logger core.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(conf.RabbitURL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	q := &Rabbit{conf: conf, logger: logger, conn: conn, ch: ch}
	if err = q.declare(); err != nil {
		_ = q.Close()
		return nil, err
	}
	if err = ch.Confirm(false); err != nil {
		_ = q.Close()
		return nil, errors.Wrap(err, "enabling publisher confirms")
	}
	return q, nil
}

func (q *Rabbit) declare() error {
	if err := q.ch.ExchangeDeclare(q.conf.DLX, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declaring dead-letter exchange")
	}
	if _, err := q.ch.QueueDeclare(q.conf.DLQ, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declaring dead-letter queue")
	}
	if err := q.ch.QueueBind(q.conf.DLQ, "#", q.conf.DLX, false, nil); err != nil {
		return errors.Wrap(err, "binding dead-letter queue")
	}

	if err := q.ch.ExchangeDeclare(q.conf.Exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declaring exchange")
	}
	args := amqp.Table{"x-dead-letter-exchange": q.conf.DLX}
	if _, err := q.ch.QueueDeclare(q.conf.Queue, true, false, false, false, args); err != nil {
		return errors.Wrap(err, "declaring queue")
	}
	if err := q.ch.QueueBind(q.conf.Queue, routingPrefix+"#", q.conf.Exchange, false, nil); err != nil {
		return errors.Wrap(err, "binding queue")
	}

	prefetch := q.conf.Prefetch
	if prefetch <= 0 {
		prefetch = 8
	}
	return errors.Wrap(q.ch.Qos(prefetch, 0, false), "setting qos")
}

func (q *Rabbit) Enqueue(ctx context.Context, job core.Job) error {
	job = prepare(job)
	body, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}

	q.pubMu.Lock()
	dc, err := q.ch.PublishWithDeferredConfirmWithContext(ctx, q.conf.Exchange, routingPrefix+job.Handler, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	q.pubMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "publishing job")
	}
	if dc == nil { // channel not in confirm mode
		return nil
	}
	return errors.Wrap(waitConfirm(ctx, dc), "publishing job "+job.ID)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// waitConfirm blocks until the broker has taken responsibility for the message.
func waitConfirm(ctx context.Context, dc confirmation) error {
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return errors.Wrap(err, "waiting for confirm")
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// Consume runs deliveries on conf.Workers goroutines until ctx is done or the channel closes.
func (q *Rabbit) Consume(ctx context.Context, consumer string, runner JobRunner) error {
	deliveries, err := q.ch.ConsumeWithContext(ctx, q.conf.Queue, consumer, false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consuming")
	}

	workers := q.conf.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					q.handle(ctx, runner, d)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *Rabbit) handle(ctx context.Context, runner JobRunner, d amqp.Delivery) {
	var job core.Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.logger.Error(fmt.Sprintf("decoding job %s: %v", d.MessageId, err), err)
		_ = d.Nack(false, false)
		return
	}

	if err := runner.Run(ctx, job); err != nil {
		if ctx.Err() != nil { // shutting down: let another worker take it
			_ = d.Nack(false, true)
			return
		}
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (q *Rabbit) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
