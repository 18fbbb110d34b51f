package service

import (
	"context"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	repository "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/mysql"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// BalanceService exposes the point balance users pay with. Debits only
// happen inside the payment flow; the public surface is charge and
// read.
type BalanceService interface {
	Charge(ctx context.Context, in ChargeInput) (*models.Balance, error)
	// Get returns a zero balance for users who were never charged.
	Get(ctx context.Context, userID string) (*models.Balance, error)
	History(ctx context.Context, userID string, limit int) ([]models.BalanceEntry, error)
}

type implBalanceService struct {
	l           logger.Logger
	balanceRepo repository.BalanceRepository
	userRepo    repository.UserRepository
}

func NewBalanceService(
	l logger.Logger,
	balanceRepo repository.BalanceRepository,
	userRepo repository.UserRepository,
) BalanceService {
	return &implBalanceService{
		l:           l,
		balanceRepo: balanceRepo,
		userRepo:    userRepo,
	}
}

func (s *implBalanceService) Charge(ctx context.Context, in ChargeInput) (*models.Balance, error) {
	if in.Amount <= 0 {
		return nil, appErrors.ErrInvalidAmount
	}

	if _, err := s.userRepo.FindByID(ctx, in.UserID); err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = "balance charge"
	}

	return s.balanceRepo.Charge(ctx, in.UserID, in.Amount, description)
}

func (s *implBalanceService) Get(ctx context.Context, userID string) (*models.Balance, error) {
	return s.balanceRepo.Get(ctx, userID)
}

func (s *implBalanceService) History(ctx context.Context, userID string, limit int) ([]models.BalanceEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return s.balanceRepo.History(ctx, userID, limit)
}
