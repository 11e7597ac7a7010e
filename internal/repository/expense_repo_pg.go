package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"budgetapp/chatsync/internal/model"
)

type pgExpenseRepository struct {
	db *gorm.DB
}

func NewPGExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &pgExpenseRepository{db: db}
}

func (r *pgExpenseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("spent_at DESC").
		Find(&expenses).Error
	return expenses, err
}

func (r *pgExpenseRepository) ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Expense, error) {
	var expenses []model.Expense
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND spent_at >= ? AND spent_at < ?", userID, from, to).
		Order("spent_at ASC").
		Find(&expenses).Error
	return expenses, err
}

func (r *pgExpenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}
