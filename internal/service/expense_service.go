package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/repository"
)

const (
	monthLayout     = "2006-01"
	defaultCurrency = "USD"
)

type ExpenseService interface {
	ListUserExpenses(ctx context.Context, userID uuid.UUID) ([]model.Expense, error)
	// MonthlySummary totals a user's expenses for month ("YYYY-MM", UTC).
	MonthlySummary(ctx context.Context, userID uuid.UUID, month string) (*model.ExpenseSummary, error)
	AddExpense(ctx context.Context, expense *model.Expense) (*model.Expense, error)
}

type expenseService struct {
	expenses repository.ExpenseRepository
	cache    *cache.Manager
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewExpenseService(expenses repository.ExpenseRepository, c *cache.Manager, cb *gobreaker.CircuitBreaker, logger *zap.Logger) ExpenseService {
	return &expenseService{expenses: expenses, cache: c, breaker: cb, logger: logger.Named("expenses")}
}

var (
	expenseListCodec cache.JSONCodec[[]model.Expense]
	summaryCodec     cache.JSONCodec[model.ExpenseSummary]
)

func (s *expenseService) ListUserExpenses(ctx context.Context, userID uuid.UUID) ([]model.Expense, error) {
	return cache.GetOrPut(ctx, s.cache, cache.UserExpensesKey(userID), s.cache.DefaultTTL(), expenseListCodec,
		func(ctx context.Context) ([]model.Expense, error) {
			return remote(s.breaker, func() ([]model.Expense, error) {
				return s.expenses.ListByUser(ctx, userID)
			})
		})
}

func (s *expenseService) MonthlySummary(ctx context.Context, userID uuid.UUID, month string) (*model.ExpenseSummary, error) {
	from, err := time.ParseInLocation(monthLayout, month, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)
	}
	to := from.AddDate(0, 1, 0)

	summary, err := cache.GetOrPut(ctx, s.cache, cache.ExpenseSummaryKey(userID, month), s.cache.DefaultTTL(), summaryCodec,
		func(ctx context.Context) (model.ExpenseSummary, error) {
			expenses, err := remote(s.breaker, func() ([]model.Expense, error) {
				return s.expenses.ListByUserBetween(ctx, userID, from, to)
			})
			if err != nil {
				return model.ExpenseSummary{}, err
			}
			return s.summarize(userID, month, expenses), nil
		})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// summarize totals expenses in the currency of the first one. Expenses in
// other currencies are left out.
func (s *expenseService) summarize(userID uuid.UUID, month string, expenses []model.Expense) model.ExpenseSummary {
	summary := model.ExpenseSummary{
		UserID:   userID,
		Month:    month,
		Currency: defaultCurrency,
		Total:    decimal.Zero,
		ByCat:    make(map[model.ExpenseCategory]decimal.Decimal),
	}
	if len(expenses) > 0 {
		summary.Currency = expenses[0].Currency
	}

	for _, e := range expenses {
		if e.Currency != summary.Currency {
			s.logger.Warn("expense skipped in summary",
				zap.Stringer("expense", e.ID),
				zap.String("currency", e.Currency),
				zap.String("summary_currency", summary.Currency),
			)
			continue
		}
		summary.Total = summary.Total.Add(e.Amount)
		summary.ByCat[e.Category] = summary.ByCat[e.Category].Add(e.Amount)
		summary.Count++
	}
	return summary
}

func (s *expenseService) AddExpense(ctx context.Context, expense *model.Expense) (*model.Expense, error) {
	if err := validateExpense(expense); err != nil {
		return nil, err
	}
	if err := remoteExec(s.breaker, func() error { return s.expenses.Create(ctx, expense) }); err != nil {
		return nil, fmt.Errorf("add expense: %w", err)
	}

	s.cache.Remove(ctx, cache.UserExpensesKey(expense.UserID))
	s.cache.RemovePrefix(ctx, cache.ExpenseSummaryPrefix(expense.UserID))
	return expense, nil
}

func validateExpense(e *model.Expense) error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	switch e.Category {
	case model.ExpenseCategoryExpense, model.ExpenseCategoryEmergency, model.ExpenseCategorySavings:
	case "":
		e.Category = model.ExpenseCategoryExpense
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, e.Category)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if e.Currency == "" {
		e.Currency = defaultCurrency
	}
	if len(e.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	if e.SpentAt.IsZero() {
		e.SpentAt = time.Now().UTC()
	}
	return nil
}
