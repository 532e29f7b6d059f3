package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/core/events"
	"github.com/expenseflow/expense-approval/internal/expense"
	"github.com/expenseflow/expense-approval/internal/user"
)

// ExpenseStore is the mutable half of the engine's collaborators. Every write
// is conditioned on the expense version the service read, so a concurrent
// writer surfaces as internal.ErrVersionConflict instead of a lost update.
type ExpenseStore interface {
	GetByID(id int64) (*expense.Expense, error)
	AppendApproval(exp *expense.Expense, event expense.Approval, percentage int) error
	ResolveApproved(exp *expense.Expense, event *expense.Approval, percentage int, approverID int64, comment string, at time.Time) error
	ResolveRejected(exp *expense.Expense, approverID int64, comment string, at time.Time) error
}

// RuleStore reads and manages approval rules. The engine only ever reads.
type RuleStore interface {
	Create(rule *Rule) error
	GetByID(id int64) (*Rule, error)
	FindForUser(orgID, appliesToUserID int64) (*Rule, error)
	ListByOrganization(orgID int64) ([]*Rule, error)
	Update(rule *Rule) error
	Delete(id int64) error
}

// UserDirectory resolves user ids into records, used for display names in
// sequential-order failures and for validating rule approvers.
type UserDirectory interface {
	GetByID(id int64) (*user.User, error)
}

type Service struct {
	expenses ExpenseStore
	rules    RuleStore
	users    UserDirectory
	bus      *events.EventBus
	locks    *expenseLocks
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(expenses ExpenseStore, rules RuleStore, users UserDirectory, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		expenses: expenses,
		rules:    rules,
		users:    users,
		bus:      bus,
		locks:    newExpenseLocks(),
		logger:   logger,
		now:      time.Now,
	}
}

// Approve records one approval by the actor on the expense and decides the
// resulting state. Expenses carrying a rule snapshot take the threshold path;
// expenses submitted with no matching rule fall back to a single
// unconditional approval by any manager or admin in the organization.
func (s *Service) Approve(actor *user.User, expenseID int64, comment string) (*DecisionResult, error) {
	s.locks.Lock(expenseID)
	defer s.locks.Unlock(expenseID)

	exp, err := s.guardAction(actor, expenseID)
	if err != nil {
		return nil, err
	}

	if !exp.HasRuleSnapshot() {
		return s.approveFallback(actor, exp, comment)
	}

	// The snapshot pins the rule by id; it is never re-resolved against the
	// current (organization, owner) mapping.
	rule, err := s.rules.GetByID(*exp.ApprovalRuleID)
	if err != nil {
		s.logger.Error("snapshot references missing rule", "expense_id", exp.ID, "rule_id", *exp.ApprovalRuleID, "error", err)
		return nil, internal.ErrRuleNotFound
	}

	now := s.now()
	decision, err := Evaluate(rule, exp, actor.ID, comment, now)
	if err != nil {
		var orderErr *OrderError
		if errors.As(err, &orderErr) {
			return nil, s.sequentialOrderError(orderErr)
		}
		s.logger.Warn("approval rejected by engine", "expense_id", exp.ID, "approver_id", actor.ID, "error", err)
		return nil, err
	}

	if decision.ThresholdMet {
		if err := s.expenses.ResolveApproved(exp, &decision.Event, decision.Percentage, actor.ID, comment, now); err != nil {
			return nil, s.persistError(exp.ID, err)
		}
	} else {
		if err := s.expenses.AppendApproval(exp, decision.Event, decision.Percentage); err != nil {
			return nil, s.persistError(exp.ID, err)
		}
	}

	updated, err := s.expenses.GetByID(exp.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload expense", err)
	}

	s.logger.Info("approval recorded",
		"expense_id", exp.ID,
		"approver_id", actor.ID,
		"percentage", decision.Percentage,
		"threshold", exp.SnapshotThreshold(),
		"threshold_met", decision.ThresholdMet)

	if s.bus != nil {
		if decision.ThresholdMet {
			_ = s.bus.Publish(context.Background(), events.NewExpenseResolvedEvent(exp.ID, exp.UserID, exp.OrganizationID, expense.StatusApproved, actor.ID))
		} else {
			_ = s.bus.Publish(context.Background(), events.NewApprovalRecordedEvent(exp.ID, actor.ID, decision.Percentage))
		}
	}

	threshold := exp.SnapshotThreshold()
	pct := decision.Percentage
	needed := decision.ApprovalsNeeded
	met := decision.ThresholdMet
	message := "approval recorded, expense still pending"
	if met {
		message = "expense approved"
	}

	return &DecisionResult{
		Message:                   message,
		Expense:                   updated,
		ThresholdMet:              &met,
		CurrentApprovalPercentage: &pct,
		ApprovalThreshold:         &threshold,
		ApprovalsNeeded:           &needed,
	}, nil
}

// Reject is a single-step terminal transition: no threshold, no sequence, no
// membership check. Any manager or admin in the organization may reject a
// pending expense, but must say why.
func (s *Service) Reject(actor *user.User, expenseID int64, comment string) (*DecisionResult, error) {
	s.locks.Lock(expenseID)
	defer s.locks.Unlock(expenseID)

	exp, err := s.guardAction(actor, expenseID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(comment) == "" {
		return nil, internal.ErrCommentRequired
	}

	now := s.now()
	if err := s.expenses.ResolveRejected(exp, actor.ID, comment, now); err != nil {
		return nil, s.persistError(exp.ID, err)
	}

	updated, err := s.expenses.GetByID(exp.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload expense", err)
	}

	s.logger.Info("expense rejected", "expense_id", exp.ID, "rejected_by", actor.ID)

	if s.bus != nil {
		_ = s.bus.Publish(context.Background(), events.NewExpenseResolvedEvent(exp.ID, exp.UserID, exp.OrganizationID, expense.StatusRejected, actor.ID))
	}

	return &DecisionResult{
		Message: "expense rejected",
		Expense: updated,
	}, nil
}

// approveFallback handles expenses that had no matching rule at submission.
func (s *Service) approveFallback(actor *user.User, exp *expense.Expense, comment string) (*DecisionResult, error) {
	now := s.now()
	if err := s.expenses.ResolveApproved(exp, nil, exp.CurrentApprovalPercentage, actor.ID, comment, now); err != nil {
		return nil, s.persistError(exp.ID, err)
	}

	updated, err := s.expenses.GetByID(exp.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload expense", err)
	}

	s.logger.Info("expense approved without rule", "expense_id", exp.ID, "approver_id", actor.ID)

	if s.bus != nil {
		_ = s.bus.Publish(context.Background(), events.NewExpenseResolvedEvent(exp.ID, exp.UserID, exp.OrganizationID, expense.StatusApproved, actor.ID))
	}

	return &DecisionResult{
		Message: "expense approved",
		Expense: updated,
	}, nil
}

// guardAction enforces the preconditions shared by every mutating action:
// manager/admin role, same organization as the expense owner, and an
// unresolved expense.
func (s *Service) guardAction(actor *user.User, expenseID int64) (*expense.Expense, error) {
	if !actor.IsManager() {
		s.logger.Warn("approval action denied: manager role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrManagerRequired
	}

	exp, err := s.expenses.GetByID(expenseID)
	if err != nil {
		return nil, internal.ErrExpenseNotFound
	}

	if exp.OrganizationID != actor.OrganizationID {
		s.logger.Warn("cross-organization approval denied", "expense_id", expenseID, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	if exp.IsResolved() {
		return nil, internal.ErrExpenseResolved
	}

	return exp, nil
}

// SnapshotForUser implements expense.ApprovalPolicy: it resolves the rule
// governing a submitter and precomputes the auto-approve seed events. A nil
// snapshot means no rule applies and the expense takes the fallback path.
func (s *Service) SnapshotForUser(orgID, userID int64, now time.Time) (*expense.PolicySnapshot, error) {
	rule, err := s.rules.FindForUser(orgID, userID)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Code == internal.ErrCodeRuleNotFound {
			return nil, nil
		}
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}

	seeded := SeedAutoApprovals(rule, now)
	pct := Percentage(len(seeded), len(rule.Approvers))

	return &expense.PolicySnapshot{
		RuleID:       rule.ID,
		Threshold:    rule.MinApprovalPercent,
		Sequential:   rule.ApproverSequence,
		Seeded:       seeded,
		Percentage:   pct,
		ThresholdMet: len(seeded) > 0 && pct >= rule.MinApprovalPercent,
	}, nil
}

func (s *Service) sequentialOrderError(orderErr *OrderError) error {
	name := "a predecessor approver"
	if u, err := s.users.GetByID(orderErr.WaitingForUserID); err == nil {
		name = u.Name
	}
	return internal.NewSequentialOrderError(orderErr.WaitingForUserID, name)
}

func (s *Service) persistError(expenseID int64, err error) error {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr
	}
	s.logger.Error("failed to persist approval action", "expense_id", expenseID, "error", err)
	return internal.NewInternalError("failed to persist approval action", err)
}
