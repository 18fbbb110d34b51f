package repository

import (
	"context"
	"database/sql"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

type SeatRepository interface {
	FindByID(ctx context.Context, id string) (*models.Seat, error)
	FindBySchedule(ctx context.Context, scheduleID string) ([]models.Seat, error)
	UpdateStatus(ctx context.Context, id string, status models.SeatStatus) error
}

type mysqlSeatRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewMySQLSeatRepository(db *sql.DB, l logger.Logger) SeatRepository {
	return &mysqlSeatRepository{db: db, l: l}
}

const seatColumns = `id, schedule_id, concert_id, seat_number, price, status, updated_at`

func (r *mysqlSeatRepository) FindByID(ctx context.Context, id string) (*models.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = ?`, id)

	s, err := scanSeat(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrSeatNotFound
		}
		r.l.Errorf(ctx, "mysqlSeatRepository.FindByID: %v", err)
		return nil, err
	}

	return s, nil
}

func (r *mysqlSeatRepository) FindBySchedule(ctx context.Context, scheduleID string) ([]models.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE schedule_id = ? ORDER BY seat_number`, scheduleID)
	if err != nil {
		r.l.Errorf(ctx, "mysqlSeatRepository.FindBySchedule: %v", err)
		return nil, err
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}

	return seats, rows.Err()
}

func (r *mysqlSeatRepository) UpdateStatus(ctx context.Context, id string, status models.SeatStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		string(status), id)
	if err != nil {
		r.l.Errorf(ctx, "mysqlSeatRepository.UpdateStatus: %v", err)
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.ErrSeatNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*models.Seat, error) {
	var s models.Seat
	var status string
	if err := row.Scan(&s.ID, &s.ScheduleID, &s.ConcertID, &s.SeatNumber, &s.Price, &status, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = models.SeatStatus(status)
	return &s, nil
}
