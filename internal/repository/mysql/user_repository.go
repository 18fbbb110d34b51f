package repository

import (
	"context"
	"database/sql"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// UserRepository is the read-only collaborator slice of the accounts
// store; account CRUD belongs to another service.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type mysqlUserRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewMySQLUserRepository(db *sql.DB, l logger.Logger) UserRepository {
	return &mysqlUserRepository{db: db, l: l}
}

func (r *mysqlUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrUserNotFound
		}
		r.l.Errorf(ctx, "mysqlUserRepository.FindByID: %v", err)
		return nil, err
	}

	return &u, nil
}
