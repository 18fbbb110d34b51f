package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// PaymentRepository persists payment attempts. Terminal transitions are
// conditional on the pending status so a payment reaches exactly one
// outcome, no matter how calls race.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Complete(ctx context.Context, id string, paidAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkRefunded(ctx context.Context, id, reason string) error
}

type mysqlPaymentRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewMySQLPaymentRepository(db *sql.DB, l logger.Logger) PaymentRepository {
	return &mysqlPaymentRepository{db: db, l: l}
}

func (r *mysqlPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, reservation_id, amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.ReservationID, p.Amount, string(p.Status), p.CreatedAt.UTC())
	if err != nil {
		r.l.Errorf(ctx, "mysqlPaymentRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *mysqlPaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, reservation_id, amount, status, failure_reason, created_at, paid_at
		 FROM payments WHERE id = ?`, id)

	var p models.Payment
	var status string
	var failureReason sql.NullString
	var paidAt sql.NullTime

	if err := row.Scan(&p.ID, &p.UserID, &p.ReservationID, &p.Amount, &status,
		&failureReason, &p.CreatedAt, &paidAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrPaymentNotFound
		}
		r.l.Errorf(ctx, "mysqlPaymentRepository.FindByID: %v", err)
		return nil, err
	}

	p.Status = models.PaymentStatus(status)
	p.FailureReason = failureReason.String
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}

	return &p, nil
}

func (r *mysqlPaymentRepository) Complete(ctx context.Context, id string, paidAt time.Time) error {
	return r.transition(ctx, id,
		`UPDATE payments SET status = ?, paid_at = ? WHERE id = ? AND status = ?`,
		string(models.PaymentStatusCompleted), paidAt.UTC(), id, string(models.PaymentStatusPending))
}

func (r *mysqlPaymentRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.transition(ctx, id,
		`UPDATE payments SET status = ?, failure_reason = ? WHERE id = ? AND status = ?`,
		string(models.PaymentStatusFailed), reason, id, string(models.PaymentStatusPending))
}

func (r *mysqlPaymentRepository) MarkRefunded(ctx context.Context, id, reason string) error {
	return r.transition(ctx, id,
		`UPDATE payments SET status = ?, failure_reason = ? WHERE id = ? AND status = ?`,
		string(models.PaymentStatusRefunded), reason, id, string(models.PaymentStatusPending))
}

func (r *mysqlPaymentRepository) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.l.Errorf(ctx, "mysqlPaymentRepository.transition: %v", err)
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.ErrPaymentState
	}

	return nil
}
