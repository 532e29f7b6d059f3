package approval_test

import (
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/approval"
	"github.com/expenseflow/expense-approval/internal/expense"
	"github.com/expenseflow/expense-approval/internal/user"
)

type mockExpenseStore struct {
	expenses     map[int64]*expense.Expense
	appendErr    error
	resolveErr   error
	appended     []expense.Approval
	approvedBy   *int64
	rejectedBy   *int64
	lastPct      int
	resolvedNoEv bool
}

func newMockExpenseStore() *mockExpenseStore {
	return &mockExpenseStore{expenses: make(map[int64]*expense.Expense)}
}

func (m *mockExpenseStore) GetByID(id int64) (*expense.Expense, error) {
	exp, ok := m.expenses[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return exp, nil
}

func (m *mockExpenseStore) AppendApproval(exp *expense.Expense, event expense.Approval, percentage int) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, event)
	m.lastPct = percentage
	exp.Approvals = append(exp.Approvals, event)
	exp.CurrentApprovalPercentage = percentage
	exp.Version++
	return nil
}

func (m *mockExpenseStore) ResolveApproved(exp *expense.Expense, event *expense.Approval, percentage int, approverID int64, comment string, at time.Time) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	if event != nil {
		exp.Approvals = append(exp.Approvals, *event)
	} else {
		m.resolvedNoEv = true
	}
	m.approvedBy = &approverID
	m.lastPct = percentage
	exp.ExpenseStatus = expense.StatusApproved
	exp.CurrentApprovalPercentage = percentage
	exp.ApprovedBy = &approverID
	exp.ApprovedAt = &at
	exp.Version++
	return nil
}

func (m *mockExpenseStore) ResolveRejected(exp *expense.Expense, approverID int64, comment string, at time.Time) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.rejectedBy = &approverID
	exp.ExpenseStatus = expense.StatusRejected
	exp.RejectedBy = &approverID
	exp.RejectedAt = &at
	exp.Version++
	return nil
}

type mockRuleStore struct {
	rules       map[int64]*approval.Rule
	rulesByUser map[int64]*approval.Rule
	findErr     error
}

func newMockRuleStore() *mockRuleStore {
	return &mockRuleStore{
		rules:       make(map[int64]*approval.Rule),
		rulesByUser: make(map[int64]*approval.Rule),
	}
}

func (m *mockRuleStore) Create(rule *approval.Rule) error {
	rule.ID = int64(len(m.rules) + 1)
	m.rules[rule.ID] = rule
	m.rulesByUser[rule.AppliesToUserID] = rule
	return nil
}

func (m *mockRuleStore) GetByID(id int64) (*approval.Rule, error) {
	rule, ok := m.rules[id]
	if !ok {
		return nil, internal.ErrRuleNotFound
	}
	return rule, nil
}

func (m *mockRuleStore) FindForUser(orgID, appliesToUserID int64) (*approval.Rule, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	rule, ok := m.rulesByUser[appliesToUserID]
	if !ok || rule.OrganizationID != orgID {
		return nil, internal.ErrRuleNotFound
	}
	return rule, nil
}

func (m *mockRuleStore) ListByOrganization(orgID int64) ([]*approval.Rule, error) {
	var out []*approval.Rule
	for _, r := range m.rules {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleStore) Update(rule *approval.Rule) error {
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleStore) Delete(id int64) error {
	delete(m.rules, id)
	return nil
}

type mockUserDirectory struct {
	users map[int64]*user.User
}

func (m *mockUserDirectory) GetByID(id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

var _ = Describe("Approval Service", func() {
	var (
		store   *mockExpenseStore
		rules   *mockRuleStore
		users   *mockUserDirectory
		service *approval.Service
		logger  *slog.Logger

		manager  *user.User
		manager2 *user.User
		employee *user.User
		outsider *user.User
	)

	registerRule := func(rule *approval.Rule) {
		Expect(rules.Create(rule)).To(Succeed())
	}

	pendingExpense := func(id int64, rule *approval.Rule) *expense.Expense {
		exp := &expense.Expense{
			ID:             id,
			OrganizationID: 1,
			UserID:         employee.ID,
			AmountCents:    75000,
			Currency:       "USD",
			ExpenseStatus:  expense.StatusPendingApproval,
		}
		if rule != nil {
			threshold := rule.MinApprovalPercent
			exp.ApprovalRuleID = &rule.ID
			exp.ApprovalThreshold = &threshold
			exp.ApproverSequence = rule.ApproverSequence
		}
		store.expenses[id] = exp
		return exp
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = newMockExpenseStore()
		rules = newMockRuleStore()

		manager = &user.User{ID: 201, OrganizationID: 1, Name: "Marta", Role: user.RoleManager, IsActive: true}
		manager2 = &user.User{ID: 202, OrganizationID: 1, Name: "Miguel", Role: user.RoleManager, IsActive: true}
		employee = &user.User{ID: 100, OrganizationID: 1, Name: "Eve", Role: user.RoleEmployee, IsActive: true}
		outsider = &user.User{ID: 300, OrganizationID: 2, Name: "Oscar", Role: user.RoleManager, IsActive: true}

		users = &mockUserDirectory{users: map[int64]*user.User{
			manager.ID:  manager,
			manager2.ID: manager2,
			employee.ID: employee,
		}}

		service = approval.NewService(store, rules, users, nil, logger)
	})

	Describe("Approve", func() {
		It("denies employees", func() {
			pendingExpense(1, nil)
			_, err := service.Approve(employee, 1, "")
			Expect(err).To(MatchError(internal.ErrManagerRequired))
		})

		It("denies managers from another organization", func() {
			pendingExpense(1, nil)
			_, err := service.Approve(outsider, 1, "")
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("returns not found for missing expenses", func() {
			_, err := service.Approve(manager, 42, "")
			Expect(err).To(MatchError(internal.ErrExpenseNotFound))
		})

		It("conflicts on an already-resolved expense", func() {
			exp := pendingExpense(1, nil)
			exp.ExpenseStatus = expense.StatusApproved

			_, err := service.Approve(manager, 1, "")
			Expect(err).To(MatchError(internal.ErrExpenseResolved))
		})

		It("approves without a rule snapshot in a single step", func() {
			pendingExpense(1, nil)

			result, err := service.Approve(manager, 1, "ok")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("expense approved"))
			Expect(store.resolvedNoEv).To(BeTrue())
			Expect(result.Expense.ExpenseStatus).To(Equal(expense.StatusApproved))
			Expect(result.ThresholdMet).To(BeNil())
		})

		It("records a partial approval below the threshold", func() {
			rule := buildRule(false, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			result, err := service.Approve(manager, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("approval recorded, expense still pending"))
			Expect(store.appended).To(HaveLen(1))
			Expect(*result.CurrentApprovalPercentage).To(Equal(50))
			Expect(*result.ThresholdMet).To(BeFalse())
			Expect(*result.ApprovalsNeeded).To(Equal(1))
			Expect(result.Expense.ExpenseStatus).To(Equal(expense.StatusPendingApproval))
		})

		It("resolves the expense when the threshold is met", func() {
			rule := buildRule(false, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			_, err := service.Approve(manager, 1, "")
			Expect(err).NotTo(HaveOccurred())

			result, err := service.Approve(manager2, 1, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("expense approved"))
			Expect(*result.ThresholdMet).To(BeTrue())
			Expect(*result.CurrentApprovalPercentage).To(Equal(100))
			Expect(result.Expense.ExpenseStatus).To(Equal(expense.StatusApproved))
			Expect(*result.Expense.ApprovedBy).To(Equal(manager2.ID))
		})

		It("rejects duplicate approvals from the same manager", func() {
			rule := buildRule(false, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			_, err := service.Approve(manager, 1, "")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(manager, 1, "")
			Expect(err).To(MatchError(internal.ErrAlreadyApproved))
		})

		It("names the blocking approver on a sequence violation", func() {
			rule := buildRule(true, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			_, err := service.Approve(manager2, 1, "")
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeSequentialOrder))
			Expect(appErr.Message).To(ContainSubstring("Marta"))

			details, ok := appErr.Details.(map[string]interface{})
			Expect(ok).To(BeTrue())
			Expect(details["waiting_for_id"]).To(Equal(manager.ID))
		})

		It("evaluates against the snapshot after the rule is edited", func() {
			rule := buildRule(false, 50, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			// admin raises the threshold while the expense is in flight
			rule.MinApprovalPercent = 100

			result, err := service.Approve(manager, 1, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("expense approved"))
			Expect(*result.ThresholdMet).To(BeTrue())
			Expect(*result.ApprovalThreshold).To(Equal(50))
			Expect(result.Expense.ExpenseStatus).To(Equal(expense.StatusApproved))
		})

		It("surfaces version conflicts from the store", func() {
			rule := buildRule(false, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)
			store.appendErr = internal.ErrVersionConflict

			_, err := service.Approve(manager, 1, "")
			Expect(err).To(MatchError(internal.ErrVersionConflict))
		})
	})

	Describe("Reject", func() {
		It("rejects a pending expense unconditionally", func() {
			rule := buildRule(true, 100, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			// manager2 is second in sequence but rejection ignores order
			result, err := service.Reject(manager2, 1, "duplicate receipt")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("expense rejected"))
			Expect(result.Expense.ExpenseStatus).To(Equal(expense.StatusRejected))
			Expect(*store.rejectedBy).To(Equal(manager2.ID))
		})

		It("allows managers not on the rule to reject", func() {
			extra := &user.User{ID: 500, OrganizationID: 1, Name: "Nina", Role: user.RoleManager, IsActive: true}
			rule := buildRule(false, 100, manager.ID)
			rule.OrganizationID = 1
			registerRule(rule)
			pendingExpense(1, rule)

			_, err := service.Reject(extra, 1, "not a reimbursable expense")
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a comment", func() {
			pendingExpense(1, nil)

			_, err := service.Reject(manager, 1, "   ")
			Expect(err).To(MatchError(internal.ErrCommentRequired))

			_, err = service.Reject(manager, 1, "")
			Expect(err).To(MatchError(internal.ErrCommentRequired))
		})

		It("conflicts on an already-resolved expense", func() {
			exp := pendingExpense(1, nil)
			exp.ExpenseStatus = expense.StatusRejected

			_, err := service.Reject(manager, 1, "")
			Expect(err).To(MatchError(internal.ErrExpenseResolved))
		})

		It("denies employees", func() {
			pendingExpense(1, nil)
			_, err := service.Reject(employee, 1, "")
			Expect(err).To(MatchError(internal.ErrManagerRequired))
		})
	})

	Describe("SnapshotForUser", func() {
		now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		It("returns nil when no rule applies", func() {
			snapshot, err := service.SnapshotForUser(1, employee.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot).To(BeNil())
		})

		It("copies the rule configuration into the snapshot", func() {
			rule := buildRule(true, 60, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			rule.AppliesToUserID = employee.ID
			registerRule(rule)

			snapshot, err := service.SnapshotForUser(1, employee.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot).NotTo(BeNil())
			Expect(snapshot.RuleID).To(Equal(rule.ID))
			Expect(snapshot.Threshold).To(Equal(60))
			Expect(snapshot.Sequential).To(BeTrue())
			Expect(snapshot.Seeded).To(BeEmpty())
			Expect(snapshot.ThresholdMet).To(BeFalse())
		})

		It("seeds auto-approve events and can meet the threshold alone", func() {
			rule := buildRule(false, 50, manager.ID, manager2.ID)
			rule.OrganizationID = 1
			rule.AppliesToUserID = employee.ID
			rule.Approvers[0].AutoApprove = true
			registerRule(rule)

			snapshot, err := service.SnapshotForUser(1, employee.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot.Seeded).To(HaveLen(1))
			Expect(snapshot.Percentage).To(Equal(50))
			Expect(snapshot.ThresholdMet).To(BeTrue())
		})
	})
})
