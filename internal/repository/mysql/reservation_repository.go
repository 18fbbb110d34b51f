package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// ReservationRepository owns the reservation rows and the seat-status
// side of every lifecycle transition. Each method is one atomic
// transaction; state guards are expressed as conditional updates so a
// stale read or a write-write race degrades to a state error, never to
// a silent double transition.
type ReservationRepository interface {
	// CreateTemporary inserts a temporary reservation and flips the seat
	// to reserved in one transaction. A seat row that is no longer
	// available surfaces as ErrSeatHeld.
	CreateTemporary(ctx context.Context, resv *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	// FindActiveBySeat returns the reservation currently claiming the
	// seat (confirmed, or temporary and unexpired), or nil if none.
	FindActiveBySeat(ctx context.Context, seatID string, now time.Time) (*models.Reservation, error)
	Confirm(ctx context.Context, id, paymentID string, now time.Time) error
	Cancel(ctx context.Context, id, reason string, now time.Time) error
	FindExpiredTemporary(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type mysqlReservationRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewMySQLReservationRepository(db *sql.DB, l logger.Logger) ReservationRepository {
	return &mysqlReservationRepository{db: db, l: l}
}

const reservationColumns = `id, user_id, concert_id, seat_id, seat_number, price, status,
	reserved_at, expires_at, confirmed_at, cancelled_at, cancel_reason, payment_id`

func (r *mysqlReservationRepository) CreateTemporary(ctx context.Context, resv *models.Reservation) error {
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP()
			 WHERE id = ? AND status = ?`,
			string(models.SeatStatusReserved), resv.SeatID, string(models.SeatStatusAvailable))
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErrors.ErrSeatHeld
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reservations
			 (id, user_id, concert_id, seat_id, seat_number, price, status, reserved_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			resv.ID, resv.UserID, resv.ConcertID, resv.SeatID, resv.SeatNumber, resv.Price,
			string(resv.Status), resv.ReservedAt.UTC(), resv.ExpiresAt.UTC())
		return err
	})
	if err != nil {
		if err != appErrors.ErrSeatHeld {
			r.l.Errorf(ctx, "mysqlReservationRepository.CreateTemporary: %v", err)
		}
		return err
	}

	return nil
}

func (r *mysqlReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)

	resv, err := scanReservation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrReservationNotFound
		}
		r.l.Errorf(ctx, "mysqlReservationRepository.FindByID: %v", err)
		return nil, err
	}

	return resv, nil
}

func (r *mysqlReservationRepository) FindActiveBySeat(ctx context.Context, seatID string, now time.Time) (*models.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE seat_id = ?
		   AND (status = ? OR (status = ? AND expires_at > ?))
		 LIMIT 1`,
		seatID, string(models.ReservationStatusConfirmed),
		string(models.ReservationStatusTemporary), now.UTC())

	resv, err := scanReservation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.l.Errorf(ctx, "mysqlReservationRepository.FindActiveBySeat: %v", err)
		return nil, err
	}

	return resv, nil
}

func (r *mysqlReservationRepository) Confirm(ctx context.Context, id, paymentID string, now time.Time) error {
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var seatID string
		if err := tx.QueryRowContext(ctx,
			`SELECT seat_id FROM reservations WHERE id = ? FOR UPDATE`, id,
		).Scan(&seatID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.ErrReservationNotFound
			}
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, confirmed_at = ?, payment_id = ?
			 WHERE id = ? AND status = ? AND expires_at > ?`,
			string(models.ReservationStatusConfirmed), now.UTC(), paymentID,
			id, string(models.ReservationStatusTemporary), now.UTC())
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErrors.ErrReservationState
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
			string(models.SeatStatusConfirmed), seatID)
		return err
	})
	if err != nil {
		if err != appErrors.ErrReservationState && err != appErrors.ErrReservationNotFound {
			r.l.Errorf(ctx, "mysqlReservationRepository.Confirm: %v", err)
		}
		return err
	}

	return nil
}

func (r *mysqlReservationRepository) Cancel(ctx context.Context, id, reason string, now time.Time) error {
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var seatID string
		if err := tx.QueryRowContext(ctx,
			`SELECT seat_id FROM reservations WHERE id = ? FOR UPDATE`, id,
		).Scan(&seatID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.ErrReservationNotFound
			}
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, cancelled_at = ?, cancel_reason = ?
			 WHERE id = ? AND status = ?`,
			string(models.ReservationStatusCancelled), now.UTC(), reason,
			id, string(models.ReservationStatusTemporary))
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErrors.ErrReservationState
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
			string(models.SeatStatusAvailable), seatID)
		return err
	})
	if err != nil {
		if err != appErrors.ErrReservationState && err != appErrors.ErrReservationNotFound {
			r.l.Errorf(ctx, "mysqlReservationRepository.Cancel: %v", err)
		}
		return err
	}

	return nil
}

func (r *mysqlReservationRepository) FindExpiredTemporary(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at
		 LIMIT ?`,
		string(models.ReservationStatusTemporary), now.UTC(), limit)
	if err != nil {
		r.l.Errorf(ctx, "mysqlReservationRepository.FindExpiredTemporary: %v", err)
		return nil, err
	}
	defer rows.Close()

	var resvs []models.Reservation
	for rows.Next() {
		resv, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		resvs = append(resvs, *resv)
	}

	return resvs, rows.Err()
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var resv models.Reservation
	var status string
	var confirmedAt, cancelledAt sql.NullTime
	var cancelReason, paymentID sql.NullString

	if err := row.Scan(&resv.ID, &resv.UserID, &resv.ConcertID, &resv.SeatID, &resv.SeatNumber,
		&resv.Price, &status, &resv.ReservedAt, &resv.ExpiresAt,
		&confirmedAt, &cancelledAt, &cancelReason, &paymentID); err != nil {
		return nil, err
	}

	resv.Status = models.ReservationStatus(status)
	if confirmedAt.Valid {
		resv.ConfirmedAt = &confirmedAt.Time
	}
	if cancelledAt.Valid {
		resv.CancelledAt = &cancelledAt.Time
	}
	resv.CancelReason = cancelReason.String
	resv.PaymentID = paymentID.String

	return &resv, nil
}
