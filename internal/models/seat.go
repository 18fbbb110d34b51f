package models

import "time"

type SeatStatus string

const (
	SeatStatusAvailable   SeatStatus = "available"
	SeatStatusReserved    SeatStatus = "reserved"
	SeatStatusConfirmed   SeatStatus = "confirmed"
	SeatStatusMaintenance SeatStatus = "maintenance"
)

// Seat belongs to a concert schedule. Its status is mutated only
// through the reservation flow, under the seat's lock.
type Seat struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"schedule_id"`
	ConcertID  string     `json:"concert_id"`
	SeatNumber string     `json:"seat_number"`
	Price      int64      `json:"price"`
	Status     SeatStatus `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *Seat) Reservable() bool {
	return s.Status == SeatStatusAvailable || s.Status == SeatStatusReserved
}
