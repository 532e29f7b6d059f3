package approval_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/approval"
	"github.com/expenseflow/expense-approval/internal/user"
)

var _ = Describe("Rule administration", func() {
	var (
		rules   *mockRuleStore
		users   *mockUserDirectory
		service *approval.Service

		admin    *user.User
		manager  *user.User
		employee *user.User
	)

	validDTO := func() approval.CreateRuleDTO {
		return approval.CreateRuleDTO{
			Name:               "travel approvals",
			AppliesToUserID:    100,
			ApproverSequence:   true,
			MinApprovalPercent: 100,
			Approvers: []approval.RuleApproverDTO{
				{UserID: 201, Required: true, SequenceNo: 1},
				{UserID: 202, Required: true, SequenceNo: 2},
			},
		}
	}

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		rules = newMockRuleStore()

		admin = &user.User{ID: 1, OrganizationID: 1, Name: "Ada", Role: user.RoleAdmin, IsActive: true}
		manager = &user.User{ID: 201, OrganizationID: 1, Name: "Marta", Role: user.RoleManager, IsActive: true}
		employee = &user.User{ID: 100, OrganizationID: 1, Name: "Eve", Role: user.RoleEmployee, IsActive: true}
		manager2 := &user.User{ID: 202, OrganizationID: 1, Name: "Miguel", Role: user.RoleManager, IsActive: true}

		users = &mockUserDirectory{users: map[int64]*user.User{
			admin.ID:    admin,
			manager.ID:  manager,
			manager2.ID: manager2,
			employee.ID: employee,
		}}

		service = approval.NewService(newMockExpenseStore(), rules, users, nil, logger)
	})

	Describe("CreateRule", func() {
		It("creates a rule scoped to the admin's organization", func() {
			rule, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())
			Expect(rule.ID).To(BeNumerically(">", 0))
			Expect(rule.OrganizationID).To(Equal(admin.OrganizationID))
			Expect(rule.Approvers).To(HaveLen(2))
		})

		It("denies managers", func() {
			_, err := service.CreateRule(manager, validDTO())
			Expect(err).To(MatchError(internal.ErrManagerRequired))
		})

		It("conflicts when the user already has a rule", func() {
			_, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateRule(admin, validDTO())
			Expect(err).To(MatchError(internal.ErrDuplicateRule))
		})

		It("rejects rules with no approvers", func() {
			dto := validDTO()
			dto.Approvers = nil
			_, err := service.CreateRule(admin, dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects approvers who do not exist", func() {
			dto := validDTO()
			dto.Approvers = append(dto.Approvers, approval.RuleApproverDTO{UserID: 999, SequenceNo: 3})
			_, err := service.CreateRule(admin, dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects approvers from another organization", func() {
			users.users[400] = &user.User{ID: 400, OrganizationID: 2, Role: user.RoleManager, IsActive: true}
			dto := validDTO()
			dto.Approvers = append(dto.Approvers, approval.RuleApproverDTO{UserID: 400, SequenceNo: 3})
			_, err := service.CreateRule(admin, dto)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("UpdateRule", func() {
		var ruleID int64

		BeforeEach(func() {
			rule, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())
			ruleID = rule.ID
		})

		It("applies partial updates", func() {
			newPct := 50
			sequential := false
			updated, err := service.UpdateRule(admin, ruleID, approval.UpdateRuleDTO{
				MinApprovalPercent: &newPct,
				ApproverSequence:   &sequential,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MinApprovalPercent).To(Equal(50))
			Expect(updated.ApproverSequence).To(BeFalse())
			Expect(updated.Name).To(Equal("travel approvals"))
		})

		It("replaces the approver list when one is given", func() {
			updated, err := service.UpdateRule(admin, ruleID, approval.UpdateRuleDTO{
				Approvers: []approval.RuleApproverDTO{
					{UserID: 201, Required: true, SequenceNo: 1},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Approvers).To(HaveLen(1))
		})

		It("rejects out-of-range thresholds", func() {
			bad := 120
			_, err := service.UpdateRule(admin, ruleID, approval.UpdateRuleDTO{MinApprovalPercent: &bad})
			Expect(err).To(HaveOccurred())
		})

		It("denies managers", func() {
			_, err := service.UpdateRule(manager, ruleID, approval.UpdateRuleDTO{})
			Expect(err).To(MatchError(internal.ErrManagerRequired))
		})
	})

	Describe("GetRule and ListRules", func() {
		BeforeEach(func() {
			_, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets managers read rules", func() {
			listed, err := service.ListRules(manager)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))

			rule, err := service.GetRule(manager, listed[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rule.Name).To(Equal("travel approvals"))
		})

		It("denies employees", func() {
			_, err := service.ListRules(employee)
			Expect(err).To(MatchError(internal.ErrManagerRequired))
		})

		It("hides rules from other organizations", func() {
			other := &user.User{ID: 900, OrganizationID: 2, Role: user.RoleManager, IsActive: true}
			listed, err := service.ListRules(other)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(BeEmpty())
		})
	})

	Describe("DeleteRule", func() {
		It("deletes and then reports not found", func() {
			rule, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteRule(admin, rule.ID)).To(Succeed())

			_, err = service.GetRule(admin, rule.ID)
			Expect(err).To(MatchError(internal.ErrRuleNotFound))
		})

		It("denies managers", func() {
			rule, err := service.CreateRule(admin, validDTO())
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DeleteRule(manager, rule.ID)).To(MatchError(internal.ErrManagerRequired))
		})
	})
})
