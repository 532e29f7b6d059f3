package approval

import (
	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/user"
)

// Rule administration. Admin-only; rules are always scoped to the acting
// admin's organization. Edits never touch in-flight expenses because the
// threshold and sequence flags were snapshotted at submission.

func (s *Service) CreateRule(actor *user.User, dto CreateRuleDTO) (*Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrManagerRequired
	}

	rule := dto.toRule(actor.OrganizationID)
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.validateApprovers(actor.OrganizationID, rule.Approvers); err != nil {
		return nil, err
	}

	if existing, err := s.rules.FindForUser(actor.OrganizationID, rule.AppliesToUserID); err == nil && existing != nil {
		return nil, internal.ErrDuplicateRule
	}

	if err := s.rules.Create(rule); err != nil {
		s.logger.Error("failed to create approval rule", "error", err, "organization_id", actor.OrganizationID)
		return nil, internal.NewInternalError("failed to create approval rule", err)
	}

	s.logger.Info("approval rule created",
		"rule_id", rule.ID,
		"organization_id", rule.OrganizationID,
		"applies_to_user_id", rule.AppliesToUserID,
		"approvers", len(rule.Approvers),
		"sequential", rule.ApproverSequence,
		"min_percent", rule.MinApprovalPercent)
	return rule, nil
}

func (s *Service) GetRule(actor *user.User, ruleID int64) (*Rule, error) {
	if !actor.IsManager() {
		return nil, internal.ErrManagerRequired
	}
	rule, err := s.rules.GetByID(ruleID)
	if err != nil {
		return nil, internal.ErrRuleNotFound
	}
	if rule.OrganizationID != actor.OrganizationID {
		return nil, internal.ErrUnauthorizedAccess
	}
	return rule, nil
}

func (s *Service) ListRules(actor *user.User) ([]*Rule, error) {
	if !actor.IsManager() {
		return nil, internal.ErrManagerRequired
	}
	rules, err := s.rules.ListByOrganization(actor.OrganizationID)
	if err != nil {
		s.logger.Error("failed to list approval rules", "error", err, "organization_id", actor.OrganizationID)
		return nil, internal.NewInternalError("failed to list approval rules", err)
	}
	return rules, nil
}

func (s *Service) UpdateRule(actor *user.User, ruleID int64, dto UpdateRuleDTO) (*Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrManagerRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	rule, err := s.rules.GetByID(ruleID)
	if err != nil {
		return nil, internal.ErrRuleNotFound
	}
	if rule.OrganizationID != actor.OrganizationID {
		return nil, internal.ErrUnauthorizedAccess
	}

	if dto.Name != nil {
		rule.Name = *dto.Name
	}
	if dto.Description != nil {
		rule.Description = *dto.Description
	}
	if dto.ApproverSequence != nil {
		rule.ApproverSequence = *dto.ApproverSequence
	}
	if dto.MinApprovalPercent != nil {
		rule.MinApprovalPercent = *dto.MinApprovalPercent
	}
	if dto.Approvers != nil {
		rule.Approvers = nil
		for _, a := range dto.Approvers {
			rule.Approvers = append(rule.Approvers, RuleApprover{
				RuleID:      rule.ID,
				UserID:      a.UserID,
				Required:    a.Required,
				SequenceNo:  a.SequenceNo,
				AutoApprove: a.AutoApprove,
			})
		}
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateApprovers(actor.OrganizationID, rule.Approvers); err != nil {
		return nil, err
	}

	if err := s.rules.Update(rule); err != nil {
		s.logger.Error("failed to update approval rule", "error", err, "rule_id", ruleID)
		return nil, internal.NewInternalError("failed to update approval rule", err)
	}

	s.logger.Info("approval rule updated", "rule_id", rule.ID, "actor_id", actor.ID)
	return rule, nil
}

func (s *Service) DeleteRule(actor *user.User, ruleID int64) error {
	if !actor.IsAdmin() {
		return internal.ErrManagerRequired
	}

	rule, err := s.rules.GetByID(ruleID)
	if err != nil {
		return internal.ErrRuleNotFound
	}
	if rule.OrganizationID != actor.OrganizationID {
		return internal.ErrUnauthorizedAccess
	}

	if err := s.rules.Delete(ruleID); err != nil {
		s.logger.Error("failed to delete approval rule", "error", err, "rule_id", ruleID)
		return internal.NewInternalError("failed to delete approval rule", err)
	}

	s.logger.Info("approval rule deleted", "rule_id", ruleID, "actor_id", actor.ID)
	return nil
}

// validateApprovers checks every listed approver exists and belongs to the
// rule's organization.
func (s *Service) validateApprovers(orgID int64, approvers []RuleApprover) error {
	for _, a := range approvers {
		u, err := s.users.GetByID(a.UserID)
		if err != nil {
			return internal.NewValidationFieldError("approvers", "approver does not exist", internal.ErrCodeValidationFailed)
		}
		if u.OrganizationID != orgID {
			return internal.NewValidationFieldError("approvers", "approver belongs to a different organization", internal.ErrCodeValidationFailed)
		}
	}
	return nil
}
