package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/xid"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	amount := round2(req.Amount)
	if !amount.IsPositive() {
		return domain.Expense{}, validationError("valid amount is required")
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		CreatedAt:   s.now().UTC(),
	}
	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}

	s.invalidateReports(ctx)
	s.metrics.ExpenseCreated()
	s.logger.Info("expense recorded",
		zap.String("expense_id", created.ID),
		zap.String("amount", created.Amount.StringFixed(2)),
		zap.String("category", created.Category),
		zap.String("actor", actorName(ctx)),
	)
	return *created, nil
}
