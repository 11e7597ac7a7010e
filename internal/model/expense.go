package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	ExpenseCategoryExpense   ExpenseCategory = "expense"
	ExpenseCategoryEmergency ExpenseCategory = "emergency"
	ExpenseCategorySavings   ExpenseCategory = "savings"
)

type Expense struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Category  ExpenseCategory `gorm:"type:varchar(32);not null" json:"category"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Note      string          `gorm:"type:varchar(512)" json:"note,omitempty"`
	SpentAt   time.Time       `gorm:"not null;index" json:"spent_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Expense) TableName() string { return "expenses" }

// ExpenseSummary is the per-category total for one user and month.
type ExpenseSummary struct {
	UserID   uuid.UUID                           `json:"user_id"`
	Month    string                              `json:"month"`
	Currency string                              `json:"currency"`
	Total    decimal.Decimal                     `json:"total"`
	ByCat    map[ExpenseCategory]decimal.Decimal `json:"by_category"`
	Count    int                                 `json:"count"`
}
