package expense

import (
	"context"
	"log/slog"
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/core/events"
	"github.com/expenseflow/expense-approval/internal/user"
	"github.com/google/uuid"
)

// Repository defines the data access methods for expenses
type Repository interface {
	Create(exp *Expense) error
	GetByID(id int64) (*Expense, error)
	ListByUser(userID int64, limit, offset int) ([]*Expense, error)
	ListByOrganization(orgID int64, limit, offset int) ([]*Expense, error)
	ListPendingByOrganization(orgID int64, limit, offset int) ([]*Expense, error)
}

// PolicySnapshot is what the approval domain resolves for a submitter at
// submission time. The snapshot is copied onto the expense and never
// re-resolved afterwards.
type PolicySnapshot struct {
	RuleID       int64
	Threshold    int
	Sequential   bool
	Seeded       []Approval
	Percentage   int
	ThresholdMet bool
}

// ApprovalPolicy resolves the approval rule governing a submitter. A nil
// snapshot with nil error means no rule applies.
type ApprovalPolicy interface {
	SnapshotForUser(orgID, userID int64, now time.Time) (*PolicySnapshot, error)
}

type Service struct {
	repo   Repository
	policy ApprovalPolicy
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, policy ApprovalPolicy, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		bus:    bus,
		logger: logger,
	}
}

// SubmitExpense creates a new expense for the submitter, snapshotting the
// organization's approval rule (threshold, sequence mode) onto the record and
// seeding auto-approve events.
func (s *Service) SubmitExpense(submitter *user.User, dto CreateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "user_id", submitter.ID)
		return nil, err
	}

	now := time.Now()
	exp := &Expense{
		ExternalRef:    uuid.New().String(),
		OrganizationID: submitter.OrganizationID,
		UserID:         submitter.ID,
		AmountCents:    dto.AmountCents,
		Currency:       dto.Currency,
		ExpenseType:    dto.ExpenseType,
		Description:    dto.Description,
		ExpenseDate:    dto.ExpenseDate,
		ExpenseStatus:  StatusPendingApproval,
		SubmittedAt:    now,
	}

	snapshot, err := s.policy.SnapshotForUser(submitter.OrganizationID, submitter.ID, now)
	if err != nil {
		s.logger.Error("failed to resolve approval rule", "error", err, "user_id", submitter.ID)
		return nil, internal.NewInternalError("failed to resolve approval rule", err)
	}

	if snapshot != nil {
		threshold := snapshot.Threshold
		exp.ApprovalRuleID = &snapshot.RuleID
		exp.ApprovalThreshold = &threshold
		exp.ApproverSequence = snapshot.Sequential
		exp.Approvals = snapshot.Seeded
		exp.CurrentApprovalPercentage = snapshot.Percentage

		// Auto-approve entries alone can satisfy the threshold; the system
		// (actor 0) is recorded as the resolver.
		if snapshot.ThresholdMet {
			systemActor := int64(0)
			exp.ExpenseStatus = StatusApproved
			exp.ApprovedBy = &systemActor
			exp.ApprovedAt = &now
		}
	}

	if err := s.repo.Create(exp); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", submitter.ID)
		return nil, internal.NewInternalError("failed to create expense", err)
	}

	s.logger.Info("expense submitted",
		"expense_id", exp.ID,
		"user_id", submitter.ID,
		"amount_cents", exp.AmountCents,
		"status", exp.ExpenseStatus,
		"has_rule", exp.HasRuleSnapshot())

	if s.bus != nil {
		_ = s.bus.Publish(context.Background(), events.NewExpenseSubmittedEvent(exp.ID, exp.UserID, exp.OrganizationID, exp.AmountCents, exp.Currency))
		if exp.ExpenseStatus == StatusApproved {
			_ = s.bus.Publish(context.Background(), events.NewExpenseResolvedEvent(exp.ID, exp.UserID, exp.OrganizationID, StatusApproved, 0))
		}
	}

	return exp, nil
}

// GetExpenseByID retrieves an expense with access control: owners see their
// own, managers and admins see anything in their organization.
func (s *Service) GetExpenseByID(id int64, actor *user.User) (*Expense, error) {
	exp, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrExpenseNotFound
	}

	if exp.OrganizationID != actor.OrganizationID {
		s.logger.Warn("cross-organization expense access denied", "expense_id", id, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	if !actor.IsManager() && exp.UserID != actor.ID {
		s.logger.Warn("unauthorized access to expense", "expense_id", id, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	return exp, nil
}

// GetUserExpenses retrieves the actor's own expenses.
func (s *Service) GetUserExpenses(actor *user.User, limit, offset int) ([]*Expense, error) {
	expenses, err := s.repo.ListByUser(actor.ID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list user expenses", "error", err, "user_id", actor.ID)
		return nil, internal.NewInternalError("failed to list expenses", err)
	}
	return expenses, nil
}

// GetOrganizationExpenses returns all expenses in the actor's organization.
// Managers and admins only.
func (s *Service) GetOrganizationExpenses(actor *user.User, limit, offset int) ([]*Expense, error) {
	if !actor.IsManager() {
		return nil, internal.ErrManagerRequired
	}
	expenses, err := s.repo.ListByOrganization(actor.OrganizationID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list organization expenses", "error", err, "organization_id", actor.OrganizationID)
		return nil, internal.NewInternalError("failed to list expenses", err)
	}
	return expenses, nil
}

// GetPendingExpenses returns the pending-approval queue for the actor's
// organization, oldest first. Managers and admins only.
func (s *Service) GetPendingExpenses(actor *user.User, limit, offset int) ([]*Expense, error) {
	if !actor.IsManager() {
		return nil, internal.ErrManagerRequired
	}
	expenses, err := s.repo.ListPendingByOrganization(actor.OrganizationID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list pending expenses", "error", err, "organization_id", actor.OrganizationID)
		return nil, internal.NewInternalError("failed to list expenses", err)
	}
	return expenses, nil
}
