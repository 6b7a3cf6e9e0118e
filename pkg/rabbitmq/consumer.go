package rabbitmq

import (
	"audio-service/config"
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

// Binding names the queue a consumer reads and how it is bound to the
// exchange.
type Binding struct {
	Queue      string
	RoutingKey string
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	binding    Binding
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	logger := zerolog.Ctx(ctx).With().Str("queue", c.binding.Queue).Str("routing_key", c.binding.RoutingKey).Logger()
	ctx = logger.WithContext(ctx)

	if err := declareExchange(ch, c.cfg); err != nil {
		logger.Error().Err(err).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(c.binding.Queue, true, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, c.binding.RoutingKey, c.cfg.ExchangeName, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to consume queue")
		return err
	}

	return dispatch(ctx, deliveries, c.numWorkers, func(workerId int, msg amqp.Delivery) {
		settle(ctx, workerId, msg, c.handler(ctx, msg, dependencies))
	})
}

// dispatch fans deliveries out to numWorkers workers until the channel
// closes or ctx is done. Deliveries not yet handed to a worker stay unacked
// so the broker redelivers them.
func dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, numWorkers int, handle func(workerId int, msg amqp.Delivery)) error {
	jobs := make(chan amqp.Delivery, numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				handle(workerId, msg)
			}
		}(i)
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				stop()
				return nil
			}

			select {
			case jobs <- delivery:
			case <-ctx.Done():
				stop()
				return ctx.Err()
			}
		case <-ctx.Done():
			stop()
			return ctx.Err()
		}
	}
}

// acknowledger is the part of amqp.Delivery the workers settle messages
// through.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks a handled delivery. Messages the handler rejects are
// dropped rather than requeued so a poison message cannot spin.
func settle(ctx context.Context, workerId int, msg acknowledger, handleErr error) {
	if handleErr != nil {
		zerolog.Ctx(ctx).Error().Err(handleErr).Int("worker", workerId).Msg("failed to handle message")
		if err := msg.Nack(false, false); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to reject message")
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to acknowledge message")
	}
}

func declareExchange(ch *amqp.Channel, cfg *config.RabbitMQ) error {
	return ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	binding Binding,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		binding:    binding,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
