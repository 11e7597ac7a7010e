package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/service"
	"budgetapp/chatsync/pkg/response"
)

type ExpenseHandler struct {
	expenseService service.ExpenseService
	logger         *zap.Logger
}

func NewExpenseHandler(expenseService service.ExpenseService, logger *zap.Logger) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService, logger: logger}
}

type AddExpenseRequest struct {
	Category model.ExpenseCategory `json:"category"`
	Amount   decimal.Decimal       `json:"amount"`
	Currency string                `json:"currency"`
	Note     string                `json:"note"`
	SpentAt  *time.Time            `json:"spent_at,omitempty"`
}

func (h *ExpenseHandler) List(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		return
	}

	expenses, err := h.expenseService.ListUserExpenses(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err, "list expenses")
		return
	}
	response.Success(c, expenses)
}

// Summary totals one month, ?month=YYYY-MM. The current month is used when
// month is omitted.
func (h *ExpenseHandler) Summary(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		return
	}
	month := c.DefaultQuery("month", time.Now().UTC().Format("2006-01"))

	summary, err := h.expenseService.MonthlySummary(c.Request.Context(), userID, month)
	if err != nil {
		writeServiceError(c, h.logger, err, "summarize expenses")
		return
	}
	response.Success(c, summary)
}

func (h *ExpenseHandler) Add(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		return
	}

	var req AddExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	expense := &model.Expense{
		UserID:   userID,
		Category: req.Category,
		Amount:   req.Amount,
		Currency: req.Currency,
		Note:     req.Note,
	}
	if req.SpentAt != nil {
		expense.SpentAt = req.SpentAt.UTC()
	}

	created, err := h.expenseService.AddExpense(c.Request.Context(), expense)
	if err != nil {
		writeServiceError(c, h.logger, err, "add expense")
		return
	}
	response.Created(c, created)
}
