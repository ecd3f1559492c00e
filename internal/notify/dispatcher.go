// Package notify publishes order confirmation requests to the mail pipeline
// over RabbitMQ or Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sequence"
)

type Notifier interface {
	OrderConfirmed(ctx context.Context, c OrderConfirmation)
}

type DispatcherOptions struct {
	Producer string
	Timeout  time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Dispatcher sends confirmations in the background. Failures are logged and
// counted; they never reach the caller.
type Dispatcher struct {
	pub      Publisher
	seq      sequence.Sequencer
	producer string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	wg sync.WaitGroup
}

func NewDispatcher(pub Publisher, seq sequence.Sequencer, opts DispatcherOptions) *Dispatcher {
	if opts.Producer == "" {
		opts.Producer = "storefront-service"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if seq == nil {
		seq = sequence.NewMemorySequencer()
	}
	return &Dispatcher{
		pub:      pub,
		seq:      seq,
		producer: opts.Producer,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// OrderConfirmed publishes one message per recipient on a detached goroutine.
// The request context only contributes its correlation id and logger.
func (d *Dispatcher) OrderConfirmed(ctx context.Context, c OrderConfirmation) {
	cid := logging.CorrelationID(ctx)
	log := logging.FromContext(ctx, d.logger).With(zap.String("order_id", c.OrderID))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, rcpt := range c.Recipients() {
			msg := c
			msg.Recipient = rcpt
			if err := d.send(sendCtx, cid, msg); err != nil {
				d.metrics.NotificationOutcome("error")
				log.Error("order confirmation failed", zap.String("recipient", rcpt), zap.Error(err))
				continue
			}
			d.metrics.NotificationOutcome("sent")
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, correlationID string, c OrderConfirmation) error {
	seq, err := d.seq.Next(ctx, c.OrderID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env, err := newEnvelope(EventOrderConfirmation, orderConfirmationSchema, orderConfirmationVersion, envelopeMeta{
		CorrelationID: correlationID,
		PartitionKey:  c.OrderID,
		Sequence:      seq,
		Producer:      d.producer,
	}, c, time.Now().UTC())
	if err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return d.pub.Publish(ctx, c.OrderID, body)
}

// Close waits for in-flight dispatches, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
