package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// BalanceRepository mutates user balances under the store's own
// row-level lock (SELECT ... FOR UPDATE) rather than the external lock
// manager: on the high-contention debit path, blocking on the row is
// cheaper than lease retries. Every mutation appends exactly one
// history row in the same transaction.
type BalanceRepository interface {
	Get(ctx context.Context, userID string) (*models.Balance, error)
	Charge(ctx context.Context, userID string, amount int64, description string) (*models.Balance, error)
	Debit(ctx context.Context, userID string, amount int64, description string) (*models.Balance, error)
	History(ctx context.Context, userID string, limit int) ([]models.BalanceEntry, error)
}

type mysqlBalanceRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewMySQLBalanceRepository(db *sql.DB, l logger.Logger) BalanceRepository {
	return &mysqlBalanceRepository{db: db, l: l}
}

// repeatable-read keeps a concurrent debit from reading a mid-flight
// amount even on paths that fall outside the row lock.
var balanceTxOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}

func (r *mysqlBalanceRepository) Get(ctx context.Context, userID string) (*models.Balance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, amount, updated_at FROM balances WHERE user_id = ?`, userID)

	var b models.Balance
	if err := row.Scan(&b.UserID, &b.Amount, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			// A user with no balance row simply has nothing charged yet.
			return &models.Balance{UserID: userID, Amount: 0}, nil
		}
		r.l.Errorf(ctx, "mysqlBalanceRepository.Get: %v", err)
		return nil, err
	}

	return &b, nil
}

func (r *mysqlBalanceRepository) Charge(ctx context.Context, userID string, amount int64, description string) (*models.Balance, error) {
	var b models.Balance

	err := withTx(ctx, r.db, balanceTxOpts, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO balances (user_id, amount, updated_at) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount), updated_at = VALUES(updated_at)`,
			userID, amount, now); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT user_id, amount, updated_at FROM balances WHERE user_id = ?`, userID,
		).Scan(&b.UserID, &b.Amount, &b.UpdatedAt); err != nil {
			return err
		}

		return appendHistory(ctx, tx, userID, amount, models.BalanceEntryCharge, description, now)
	})
	if err != nil {
		r.l.Errorf(ctx, "mysqlBalanceRepository.Charge: %v", err)
		return nil, err
	}

	return &b, nil
}

func (r *mysqlBalanceRepository) Debit(ctx context.Context, userID string, amount int64, description string) (*models.Balance, error) {
	var b models.Balance

	err := withTx(ctx, r.db, balanceTxOpts, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		var current int64
		if err := tx.QueryRowContext(ctx,
			`SELECT amount FROM balances WHERE user_id = ? FOR UPDATE`, userID,
		).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.ErrInsufficientBalance
			}
			return err
		}

		if current < amount {
			return appErrors.ErrInsufficientBalance
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE balances SET amount = amount - ?, updated_at = ? WHERE user_id = ?`,
			amount, now, userID); err != nil {
			return err
		}

		b = models.Balance{UserID: userID, Amount: current - amount, UpdatedAt: now}

		return appendHistory(ctx, tx, userID, amount, models.BalanceEntryUse, description, now)
	})
	if err != nil {
		if err != appErrors.ErrInsufficientBalance {
			r.l.Errorf(ctx, "mysqlBalanceRepository.Debit: %v", err)
		}
		return nil, err
	}

	return &b, nil
}

func (r *mysqlBalanceRepository) History(ctx context.Context, userID string, limit int) ([]models.BalanceEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, type, description, created_at
		 FROM balance_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		r.l.Errorf(ctx, "mysqlBalanceRepository.History: %v", err)
		return nil, err
	}
	defer rows.Close()

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &entryType, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = models.BalanceEntryType(entryType)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func appendHistory(ctx context.Context, tx *sql.Tx, userID string, amount int64, entryType models.BalanceEntryType, description string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balance_history (user_id, amount, type, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, amount, string(entryType), description, at)
	return err
}
