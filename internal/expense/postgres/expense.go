package postgres

import (
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository implements expense.Repository and the approval engine's
// ExpenseStore on GORM. Every mutation of an existing expense is conditioned
// on the version the caller read, inside one transaction with the appended
// approval event, so concurrent approvers cannot double-count.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(exp *expense.Expense) error {
	return r.db.Create(exp).Error
}

func (r *ExpenseRepository) GetByID(id int64) (*expense.Expense, error) {
	var exp expense.Expense
	err := r.db.Preload("Approvals", func(db *gorm.DB) *gorm.DB {
		return db.Order("approval_events.id ASC")
	}).Where("id = ?", id).First(&exp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

func (r *ExpenseRepository) ListByUser(userID int64, limit, offset int) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&expenses).Error
	return expenses, err
}

func (r *ExpenseRepository) ListByOrganization(orgID int64, limit, offset int) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("organization_id = ?", orgID).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&expenses).Error
	return expenses, err
}

func (r *ExpenseRepository) ListPendingByOrganization(orgID int64, limit, offset int) ([]*expense.Expense, error) {
	var expenses []*expense.Expense
	err := r.db.Where("organization_id = ? AND expense_status = ?", orgID, expense.StatusPendingApproval).
		Order("submitted_at ASC"). // FIFO for the approval queue
		Limit(limit).
		Offset(offset).
		Find(&expenses).Error
	return expenses, err
}

// AppendApproval records a non-terminal approval: the event row plus the
// recomputed percentage, status unchanged.
func (r *ExpenseRepository) AppendApproval(exp *expense.Expense, event expense.Approval, percentage int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"current_approval_percentage": percentage,
			"version":                     exp.Version + 1,
			"updated_at":                  time.Now(),
		}
		if err := r.guardedUpdate(tx, exp, updates); err != nil {
			return err
		}

		event.ExpenseID = exp.ID
		return tx.Create(&event).Error
	})
}

// ResolveApproved transitions the expense to approved. event is nil on the
// no-rule fallback path, where no approval history is kept.
func (r *ExpenseRepository) ResolveApproved(exp *expense.Expense, event *expense.Approval, percentage int, approverID int64, comment string, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"expense_status":              expense.StatusApproved,
			"current_approval_percentage": percentage,
			"approved_by":                 approverID,
			"approved_at":                 at,
			"version":                     exp.Version + 1,
			"updated_at":                  time.Now(),
		}
		if comment != "" {
			updates["manager_comment"] = comment
		}
		if err := r.guardedUpdate(tx, exp, updates); err != nil {
			return err
		}

		if event != nil {
			event.ExpenseID = exp.ID
			return tx.Create(event).Error
		}
		return nil
	})
}

// ResolveRejected transitions the expense to rejected without touching the
// approvals history.
func (r *ExpenseRepository) ResolveRejected(exp *expense.Expense, approverID int64, comment string, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"expense_status": expense.StatusRejected,
			"rejected_by":    approverID,
			"rejected_at":    at,
			"version":        exp.Version + 1,
			"updated_at":     time.Now(),
		}
		if comment != "" {
			updates["manager_comment"] = comment
		}
		return r.guardedUpdate(tx, exp, updates)
	})
}

// guardedUpdate applies updates only if the row still matches the version the
// caller read and is still pending. Zero rows affected means a concurrent
// writer won.
func (r *ExpenseRepository) guardedUpdate(tx *gorm.DB, exp *expense.Expense, updates map[string]interface{}) error {
	res := tx.Model(&expense.Expense{}).
		Where("id = ? AND version = ? AND expense_status = ?", exp.ID, exp.Version, expense.StatusPendingApproval).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrVersionConflict
	}
	return nil
}
