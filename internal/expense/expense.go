package expense

import (
	"time"
)

// Expense statuses. pending_approval is the only mutable state; approved and
// rejected are terminal.
const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
)

// Expense types accepted at submission.
const (
	TypeTravel   = "travel"
	TypeMeal     = "meal"
	TypeSupplies = "supplies"
	TypeSoftware = "software"
	TypeTraining = "training"
	TypeOther    = "other"
)

func ValidExpenseType(t string) bool {
	switch t {
	case TypeTravel, TypeMeal, TypeSupplies, TypeSoftware, TypeTraining, TypeOther:
		return true
	}
	return false
}

type Expense struct {
	ID             int64  `json:"id" gorm:"primaryKey"`
	ExternalRef    string `json:"external_ref" gorm:"column:external_ref;uniqueIndex;not null"`
	OrganizationID int64  `json:"organization_id" gorm:"column:organization_id;not null"`
	UserID         int64  `json:"user_id" gorm:"column:user_id;not null"`

	AmountCents int64     `json:"amount_cents" gorm:"column:amount_cents;not null"`
	Currency    string    `json:"currency" gorm:"column:currency;not null"`
	ExpenseType string    `json:"expense_type" gorm:"column:expense_type;not null"`
	Description string    `json:"description" gorm:"not null"`
	ExpenseDate time.Time `json:"expense_date" gorm:"column:expense_date;type:date"`

	ExpenseStatus string `json:"expense_status" gorm:"column:expense_status;default:pending_approval"`

	// Rule snapshot, fixed at submission. Later rule edits never affect an
	// in-flight expense.
	ApprovalRuleID            *int64 `json:"approval_rule_id,omitempty" gorm:"column:approval_rule_id"`
	ApprovalThreshold         *int   `json:"approval_threshold,omitempty" gorm:"column:approval_threshold"`
	ApproverSequence          bool   `json:"approver_sequence" gorm:"column:approver_sequence"`
	CurrentApprovalPercentage int    `json:"current_approval_percentage" gorm:"column:current_approval_percentage"`

	ApprovedBy     *int64     `json:"approved_by,omitempty" gorm:"column:approved_by"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`
	RejectedBy     *int64     `json:"rejected_by,omitempty" gorm:"column:rejected_by"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty" gorm:"column:rejected_at"`
	ManagerComment *string    `json:"manager_comment,omitempty" gorm:"column:manager_comment"`

	// Optimistic concurrency token: every approval or resolution bumps it,
	// and writers condition on the value they read.
	Version int64 `json:"-" gorm:"column:version;default:0"`

	Approvals []Approval `json:"approvals" gorm:"foreignKey:ExpenseID"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"column:submitted_at"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Expense) TableName() string {
	return "expenses"
}

// Approval is one recorded approval event. Immutable once appended; an
// approver appears at most once per expense.
type Approval struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	ExpenseID  int64     `json:"expense_id" gorm:"column:expense_id;not null;index"`
	ApproverID int64     `json:"approver_id" gorm:"column:approver_id;not null"`
	SequenceNo int       `json:"sequence_no" gorm:"column:sequence_no"`
	Comment    string    `json:"comment,omitempty" gorm:"column:comment"`
	ApprovedAt time.Time `json:"approved_at" gorm:"column:approved_at"`
}

func (Approval) TableName() string {
	return "approval_events"
}

func (e *Expense) IsPending() bool {
	return e.ExpenseStatus == StatusPendingApproval
}

func (e *Expense) IsResolved() bool {
	return !e.IsPending()
}

// HasApprovalFrom reports whether the approver already has a recorded event.
func (e *Expense) HasApprovalFrom(approverID int64) bool {
	for _, a := range e.Approvals {
		if a.ApproverID == approverID {
			return true
		}
	}
	return false
}

// HasRuleSnapshot reports whether a rule was matched at submission time, i.e.
// whether threshold evaluation applies to this expense at all.
func (e *Expense) HasRuleSnapshot() bool {
	return e.ApprovalRuleID != nil
}

// SnapshotThreshold returns the approval threshold pinned at submission, or
// zero when the expense carries no rule snapshot.
func (e *Expense) SnapshotThreshold() int {
	if e.ApprovalThreshold == nil {
		return 0
	}
	return *e.ApprovalThreshold
}
