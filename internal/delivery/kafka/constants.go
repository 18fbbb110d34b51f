package kafka

const (
	TopicQueueJoined   = "queue.joined"
	TopicQueuePromoted = "queue.promoted"
	TopicQueueReleased = "queue.released"

	TopicSeatStatusChanged = "seat.status_changed"

	TopicReservationCreated   = "reservation.created"
	TopicReservationConfirmed = "reservation.confirmed"
	TopicReservationCancelled = "reservation.cancelled"

	TopicPaymentCompleted = "payment.completed"
	TopicPaymentFailed    = "payment.failed"
)
