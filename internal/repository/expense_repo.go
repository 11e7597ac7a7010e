package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"budgetapp/chatsync/internal/model"
)

type ExpenseRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Expense, error)
	// ListByUserBetween returns expenses with from <= spent_at < to.
	ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Expense, error)
	Create(ctx context.Context, expense *model.Expense) error
}
