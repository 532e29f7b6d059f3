package approval

import (
	"sort"
	"time"

	"github.com/expenseflow/expense-approval/internal"
)

// Rule configures how expenses submitted by AppliesToUser get approved:
// which users may approve, whether they must act in sequence order, and what
// share of them must approve before the expense resolves.
//
// At most one rule exists per (organization, applies_to_user); the database
// enforces uniqueness so rule matching is never ambiguous.
type Rule struct {
	ID              int64  `json:"id" gorm:"primaryKey"`
	OrganizationID  int64  `json:"organization_id" gorm:"column:organization_id;not null;uniqueIndex:idx_rule_org_user"`
	Name            string `json:"name" gorm:"not null"`
	Description     string `json:"description,omitempty"`
	AppliesToUserID int64  `json:"applies_to_user_id" gorm:"column:applies_to_user_id;not null;uniqueIndex:idx_rule_org_user"`
	ManagerID       *int64 `json:"manager_id,omitempty" gorm:"column:manager_id"`

	// IsManagerApprover is informational; it records whether the default
	// manager was added to the approver list when the rule was created.
	IsManagerApprover bool `json:"is_manager_approver" gorm:"column:is_manager_approver"`

	// ApproverSequence selects sequential (prefix-complete) approval order
	// over parallel any-order approval.
	ApproverSequence   bool `json:"approver_sequence" gorm:"column:approver_sequence"`
	MinApprovalPercent int  `json:"min_approval_percent" gorm:"column:min_approval_percent"`

	Approvers []RuleApprover `json:"approvers" gorm:"foreignKey:RuleID"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Rule) TableName() string {
	return "approval_rules"
}

// RuleApprover is one entry on a rule's approver list. AutoApprove entries
// contribute a synthetic approval the moment an expense is submitted.
type RuleApprover struct {
	ID          int64 `json:"id" gorm:"primaryKey"`
	RuleID      int64 `json:"rule_id" gorm:"column:rule_id;not null;uniqueIndex:idx_rule_approver"`
	UserID      int64 `json:"user_id" gorm:"column:user_id;not null;uniqueIndex:idx_rule_approver"`
	Required    bool  `json:"required" gorm:"column:required"`
	SequenceNo  int   `json:"sequence_no" gorm:"column:sequence_no"`
	AutoApprove bool  `json:"auto_approve" gorm:"column:auto_approve"`
}

func (RuleApprover) TableName() string {
	return "rule_approvers"
}

// Validate rejects rules the engine cannot evaluate: an empty approver list
// would make the percentage denominator zero, duplicate approvers would break
// the one-approval-per-approver invariant.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if r.AppliesToUserID == 0 {
		return internal.NewValidationFieldError("applies_to_user_id", "applies_to_user_id is required", internal.ErrCodeValidationFailed)
	}
	if r.MinApprovalPercent < 0 || r.MinApprovalPercent > 100 {
		return internal.NewValidationFieldError("min_approval_percent", "min_approval_percent must be between 0 and 100", internal.ErrCodeValidationFailed)
	}
	if len(r.Approvers) == 0 {
		return internal.NewValidationError("rule must have at least one approver", internal.ErrCodeRuleHasNoApprovers)
	}

	seen := make(map[int64]bool, len(r.Approvers))
	for _, a := range r.Approvers {
		if a.UserID == 0 {
			return internal.NewValidationFieldError("approvers", "approver user_id is required", internal.ErrCodeValidationFailed)
		}
		if a.SequenceNo < 0 {
			return internal.NewValidationFieldError("approvers", "sequence_no cannot be negative", internal.ErrCodeValidationFailed)
		}
		if seen[a.UserID] {
			return internal.NewValidationFieldError("approvers", "approver list contains duplicate users", internal.ErrCodeValidationFailed)
		}
		seen[a.UserID] = true
	}
	return nil
}

// ApproverEntry returns the rule entry for a user, if listed.
func (r *Rule) ApproverEntry(userID int64) (*RuleApprover, bool) {
	for i := range r.Approvers {
		if r.Approvers[i].UserID == userID {
			return &r.Approvers[i], true
		}
	}
	return nil, false
}

// ApproversInOrder returns the approver list sorted by sequence number
// ascending. Ties keep configuration order.
func (r *Rule) ApproversInOrder() []RuleApprover {
	ordered := make([]RuleApprover, len(r.Approvers))
	copy(ordered, r.Approvers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceNo < ordered[j].SequenceNo
	})
	return ordered
}
