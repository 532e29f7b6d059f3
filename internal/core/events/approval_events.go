package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeExpenseSubmitted = "expense.submitted"
	EventTypeExpenseResolved  = "expense.resolved"
	EventTypeApprovalRecorded = "expense.approval_recorded"
)

type ExpenseSubmittedEvent struct {
	BaseEvent
	ExpenseID      int64  `json:"expense_id"`
	UserID         int64  `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
}

func NewExpenseSubmittedEvent(expenseID, userID, orgID, amountCents int64, currency string) *ExpenseSubmittedEvent {
	return &ExpenseSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":      expenseID,
				"user_id":         userID,
				"organization_id": orgID,
				"amount_cents":    amountCents,
				"currency":        currency,
			},
		},
		ExpenseID:      expenseID,
		UserID:         userID,
		OrganizationID: orgID,
		AmountCents:    amountCents,
		Currency:       currency,
	}
}

// ExpenseResolvedEvent fires when an expense reaches a terminal status.
// ResolvedBy is zero for system auto-approval.
type ExpenseResolvedEvent struct {
	BaseEvent
	ExpenseID      int64  `json:"expense_id"`
	UserID         int64  `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	Status         string `json:"status"`
	ResolvedBy     int64  `json:"resolved_by"`
}

func NewExpenseResolvedEvent(expenseID, userID, orgID int64, status string, resolvedBy int64) *ExpenseResolvedEvent {
	return &ExpenseResolvedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseResolved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":      expenseID,
				"user_id":         userID,
				"organization_id": orgID,
				"status":          status,
				"resolved_by":     resolvedBy,
			},
		},
		ExpenseID:      expenseID,
		UserID:         userID,
		OrganizationID: orgID,
		Status:         status,
		ResolvedBy:     resolvedBy,
	}
}

// ApprovalRecordedEvent fires on every non-terminal approval in the
// threshold path, so listeners can track progress.
type ApprovalRecordedEvent struct {
	BaseEvent
	ExpenseID  int64 `json:"expense_id"`
	ApproverID int64 `json:"approver_id"`
	Percentage int   `json:"percentage"`
}

func NewApprovalRecordedEvent(expenseID, approverID int64, percentage int) *ApprovalRecordedEvent {
	return &ApprovalRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeApprovalRecorded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":  expenseID,
				"approver_id": approverID,
				"percentage":  percentage,
			},
		},
		ExpenseID:  expenseID,
		ApproverID: approverID,
		Percentage: percentage,
	}
}
