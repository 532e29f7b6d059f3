package postgres

import (
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/approval"
	"gorm.io/gorm"
)

// RuleRepository implements approval.RuleStore using GORM
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) approval.RuleStore {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(rule *approval.Rule) error {
	return r.db.Create(rule).Error
}

func (r *RuleRepository) GetByID(id int64) (*approval.Rule, error) {
	var rule approval.Rule
	err := r.db.Preload("Approvers").Where("id = ?", id).First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindForUser resolves the single rule governing a submitter. The unique
// index on (organization_id, applies_to_user_id) guarantees at most one.
func (r *RuleRepository) FindForUser(orgID, appliesToUserID int64) (*approval.Rule, error) {
	var rule approval.Rule
	err := r.db.Preload("Approvers").
		Where("organization_id = ? AND applies_to_user_id = ?", orgID, appliesToUserID).
		First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *RuleRepository) ListByOrganization(orgID int64) ([]*approval.Rule, error) {
	var rules []*approval.Rule
	err := r.db.Preload("Approvers").
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&rules).Error
	return rules, err
}

// Update rewrites the rule row and replaces its approver list.
func (r *RuleRepository) Update(rule *approval.Rule) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":                 rule.Name,
			"description":          rule.Description,
			"manager_id":           rule.ManagerID,
			"is_manager_approver":  rule.IsManagerApprover,
			"approver_sequence":    rule.ApproverSequence,
			"min_approval_percent": rule.MinApprovalPercent,
			"updated_at":           time.Now(),
		}
		if err := tx.Model(&approval.Rule{}).Where("id = ?", rule.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("rule_id = ?", rule.ID).Delete(&approval.RuleApprover{}).Error; err != nil {
			return err
		}
		for i := range rule.Approvers {
			rule.Approvers[i].ID = 0
			rule.Approvers[i].RuleID = rule.ID
		}
		return tx.Create(&rule.Approvers).Error
	})
}

func (r *RuleRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&approval.RuleApprover{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&approval.Rule{}).Error
	})
}
