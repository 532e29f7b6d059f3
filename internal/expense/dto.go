package expense

import (
	"strings"
	"time"

	"github.com/expenseflow/expense-approval/internal"
)

// CreateExpenseDTO represents the request payload for submitting an expense
type CreateExpenseDTO struct {
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	ExpenseType string    `json:"expense_type"`
	Description string    `json:"description"`
	ExpenseDate time.Time `json:"expense_date"`
}

func (dto CreateExpenseDTO) Validate() error {
	if dto.AmountCents <= 0 {
		return internal.NewValidationFieldError("amount_cents", "amount must be greater than 0", internal.ErrCodeInvalidAmount)
	}
	if len(dto.Currency) != 3 {
		return internal.NewValidationFieldError("currency", "currency must be a 3-letter code", internal.ErrCodeInvalidCurrency)
	}
	if !ValidExpenseType(dto.ExpenseType) {
		return internal.NewValidationFieldError("expense_type", "expense type must be one of travel, meal, supplies, software, training, other", internal.ErrCodeInvalidType)
	}
	if strings.TrimSpace(dto.Description) == "" {
		return internal.NewValidationFieldError("description", "description is required", internal.ErrCodeValidationFailed)
	}
	if len(dto.Description) > 500 {
		return internal.NewValidationFieldError("description", "description must be less than 500 characters", internal.ErrCodeValidationFailed)
	}
	if dto.ExpenseDate.IsZero() {
		return internal.NewValidationFieldError("expense_date", "expense date is required", internal.ErrCodeInvalidDate)
	}
	if dto.ExpenseDate.After(time.Now()) {
		return internal.NewValidationFieldError("expense_date", "expense date cannot be in the future", internal.ErrCodeInvalidDate)
	}
	return nil
}

// DecisionDTO carries the optional comment on approve/reject actions. An
// empty or whitespace-only comment is treated as absent.
type DecisionDTO struct {
	Comment string `json:"comment,omitempty"`
}

func (dto DecisionDTO) TrimmedComment() string {
	return strings.TrimSpace(dto.Comment)
}
