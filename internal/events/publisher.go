package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/sirupsen/logrus"
)

// Channel is the publishing half of *amqp091.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher sends a LedgerEvent for every committed mutation.
type Publisher struct {
	channel  Channel
	exchange string
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPublisher(ch Channel, exchange string, logger logrus.FieldLogger) *Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		log:      logger.WithField("component", "events"),
		now:      time.Now,
	}
}

var _ ledger.Observer = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, e *LedgerEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.EventID,
			Timestamp:    e.OccurredAt,
			Type:         string(e.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// LedgerChanged publishes the change. A failed publish is logged only; the
// mutation has already committed.
func (p *Publisher) LedgerChanged(ctx context.Context, c ledger.Change) {
	e := NewLedgerEvent(c, p.now())
	fields := logrus.Fields{
		"event_id":       e.EventID,
		"type":           e.Type,
		"member_id":      e.MemberID,
		"transaction_id": e.TransactionID,
	}
	if err := p.Publish(ctx, e); err != nil {
		p.log.WithError(err).WithFields(fields).Error("ledger event not published")
		return
	}
	p.log.WithFields(fields).Debug("ledger event published")
}
