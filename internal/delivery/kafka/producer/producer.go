package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/util"
)

type Producer interface {
	PublishQueueJoined(ctx context.Context, event kafka.QueueJoinedEvent) error
	PublishQueuePromoted(ctx context.Context, event kafka.QueuePromotedEvent) error
	PublishQueueReleased(ctx context.Context, event kafka.QueueReleasedEvent) error
	PublishSeatStatusChanged(ctx context.Context, event kafka.SeatStatusChangedEvent) error
	PublishReservationCreated(ctx context.Context, event kafka.ReservationEvent) error
	PublishReservationConfirmed(ctx context.Context, event kafka.ReservationEvent) error
	PublishReservationCancelled(ctx context.Context, event kafka.ReservationEvent) error
	PublishPaymentCompleted(ctx context.Context, event kafka.PaymentEvent) error
	PublishPaymentFailed(ctx context.Context, event kafka.PaymentEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishQueueJoined(ctx context.Context, event kafka.QueueJoinedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicQueueJoined, event.UserID, event)
}

func (p *implProducer) PublishQueuePromoted(ctx context.Context, event kafka.QueuePromotedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicQueuePromoted, event.UserID, event)
}

func (p *implProducer) PublishQueueReleased(ctx context.Context, event kafka.QueueReleasedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicQueueReleased, event.UserID, event)
}

func (p *implProducer) PublishSeatStatusChanged(ctx context.Context, event kafka.SeatStatusChangedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicSeatStatusChanged, event.SeatID, event)
}

func (p *implProducer) PublishReservationCreated(ctx context.Context, event kafka.ReservationEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicReservationCreated, event.SeatID, event)
}

func (p *implProducer) PublishReservationConfirmed(ctx context.Context, event kafka.ReservationEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicReservationConfirmed, event.SeatID, event)
}

func (p *implProducer) PublishReservationCancelled(ctx context.Context, event kafka.ReservationEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicReservationCancelled, event.SeatID, event)
}

func (p *implProducer) PublishPaymentCompleted(ctx context.Context, event kafka.PaymentEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicPaymentCompleted, event.UserID, event)
}

func (p *implProducer) PublishPaymentFailed(ctx context.Context, event kafka.PaymentEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicPaymentFailed, event.UserID, event)
}

func (p *implProducer) publish(ctx context.Context, topic, key string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key), // Partition by key for per-entity ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(util.TimeToISO8601Str(time.Now())),
			},
		},
	}

	if _, _, err := p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: topic=%s: %v", topic, err)
		return err
	}

	return nil
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
