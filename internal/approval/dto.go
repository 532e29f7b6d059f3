package approval

import (
	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/expense"
)

// DecisionResult is the success payload of an approval action. The threshold
// fields are only populated on the threshold path; the fallback and reject
// paths carry just the message and the updated expense.
type DecisionResult struct {
	Message                   string           `json:"message"`
	Expense                   *expense.Expense `json:"expense"`
	ThresholdMet              *bool            `json:"threshold_met,omitempty"`
	CurrentApprovalPercentage *int             `json:"current_approval_percentage,omitempty"`
	ApprovalThreshold         *int             `json:"approval_threshold,omitempty"`
	ApprovalsNeeded           *int             `json:"approvals_needed,omitempty"`
}

type RuleApproverDTO struct {
	UserID      int64 `json:"user_id"`
	Required    bool  `json:"required"`
	SequenceNo  int   `json:"sequence_no"`
	AutoApprove bool  `json:"auto_approve"`
}

type CreateRuleDTO struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	AppliesToUserID    int64             `json:"applies_to_user_id"`
	ManagerID          *int64            `json:"manager_id,omitempty"`
	IsManagerApprover  bool              `json:"is_manager_approver"`
	ApproverSequence   bool              `json:"approver_sequence"`
	MinApprovalPercent int               `json:"min_approval_percent"`
	Approvers          []RuleApproverDTO `json:"approvers"`
}

func (dto CreateRuleDTO) toRule(orgID int64) *Rule {
	rule := &Rule{
		OrganizationID:     orgID,
		Name:               dto.Name,
		Description:        dto.Description,
		AppliesToUserID:    dto.AppliesToUserID,
		ManagerID:          dto.ManagerID,
		IsManagerApprover:  dto.IsManagerApprover,
		ApproverSequence:   dto.ApproverSequence,
		MinApprovalPercent: dto.MinApprovalPercent,
	}
	for _, a := range dto.Approvers {
		rule.Approvers = append(rule.Approvers, RuleApprover{
			UserID:      a.UserID,
			Required:    a.Required,
			SequenceNo:  a.SequenceNo,
			AutoApprove: a.AutoApprove,
		})
	}
	return rule
}

type UpdateRuleDTO struct {
	Name               *string           `json:"name,omitempty"`
	Description        *string           `json:"description,omitempty"`
	ApproverSequence   *bool             `json:"approver_sequence,omitempty"`
	MinApprovalPercent *int              `json:"min_approval_percent,omitempty"`
	Approvers          []RuleApproverDTO `json:"approvers,omitempty"`
}

func (dto UpdateRuleDTO) Validate() error {
	if dto.MinApprovalPercent != nil && (*dto.MinApprovalPercent < 0 || *dto.MinApprovalPercent > 100) {
		return internal.NewValidationFieldError("min_approval_percent", "min_approval_percent must be between 0 and 100", internal.ErrCodeValidationFailed)
	}
	if dto.Name != nil && *dto.Name == "" {
		return internal.NewValidationFieldError("name", "name cannot be empty", internal.ErrCodeValidationFailed)
	}
	return nil
}
