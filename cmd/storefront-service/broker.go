package main

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/notify"
)

// amqpPublisher owns the connection behind an AMQPPublisher.
type amqpPublisher struct {
	*notify.AMQPPublisher
	conn *amqp.Connection
}

func (p amqpPublisher) Close() error {
	_ = p.AMQPPublisher.Close()
	return p.conn.Close()
}

func newPublisher(cfg config.Config, logger *zap.Logger) (notify.Publisher, error) {
	switch cfg.NotifyBroker {
	case config.BrokerRabbitMQ:
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		pub, err := notify.NewAMQPPublisher(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return amqpPublisher{AMQPPublisher: pub, conn: conn}, nil
	case config.BrokerKafka:
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return notify.NewLogPublisher(logger), nil
	}
}
