package producer

import (
	"context"

	kafka "github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
)

// nopProducer backs deployments that run without a broker; services
// publish unconditionally and the events go nowhere.
type nopProducer struct{}

func NewNopProducer() Producer {
	return nopProducer{}
}

func (nopProducer) PublishQueueJoined(context.Context, kafka.QueueJoinedEvent) error   { return nil }
func (nopProducer) PublishQueuePromoted(context.Context, kafka.QueuePromotedEvent) error {
	return nil
}
func (nopProducer) PublishQueueReleased(context.Context, kafka.QueueReleasedEvent) error {
	return nil
}
func (nopProducer) PublishSeatStatusChanged(context.Context, kafka.SeatStatusChangedEvent) error {
	return nil
}
func (nopProducer) PublishReservationCreated(context.Context, kafka.ReservationEvent) error {
	return nil
}
func (nopProducer) PublishReservationConfirmed(context.Context, kafka.ReservationEvent) error {
	return nil
}
func (nopProducer) PublishReservationCancelled(context.Context, kafka.ReservationEvent) error {
	return nil
}
func (nopProducer) PublishPaymentCompleted(context.Context, kafka.PaymentEvent) error { return nil }
func (nopProducer) PublishPaymentFailed(context.Context, kafka.PaymentEvent) error    { return nil }
func (nopProducer) Close() error                                                      { return nil }
