package approval_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/approval"
	"github.com/expenseflow/expense-approval/internal/expense"
)

func TestApproval(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Approval Module Suite")
}

func buildRule(sequential bool, threshold int, approverIDs ...int64) *approval.Rule {
	rule := &approval.Rule{
		ID:                 10,
		OrganizationID:     1,
		Name:               "test rule",
		AppliesToUserID:    100,
		ApproverSequence:   sequential,
		MinApprovalPercent: threshold,
	}
	for i, id := range approverIDs {
		rule.Approvers = append(rule.Approvers, approval.RuleApprover{
			RuleID:     rule.ID,
			UserID:     id,
			Required:   true,
			SequenceNo: i + 1,
		})
	}
	return rule
}

// buildPendingExpense copies the rule configuration onto the expense the way
// submission snapshots it.
func buildPendingExpense(rule *approval.Rule, approvals ...expense.Approval) *expense.Expense {
	threshold := rule.MinApprovalPercent
	return &expense.Expense{
		ID:                1,
		OrganizationID:    1,
		UserID:            100,
		AmountCents:       50000,
		Currency:          "USD",
		ExpenseStatus:     expense.StatusPendingApproval,
		ApprovalRuleID:    &rule.ID,
		ApprovalThreshold: &threshold,
		ApproverSequence:  rule.ApproverSequence,
		Approvals:         approvals,
	}
}

var _ = Describe("Evaluate", func() {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	Context("rule membership", func() {
		It("rejects an approver who is not on the rule", func() {
			rule := buildRule(false, 100, 201, 202)
			exp := buildPendingExpense(rule)

			_, err := approval.Evaluate(rule, exp, 999, "", now)
			Expect(err).To(MatchError(internal.ErrNotOnApprovalRule))
		})
	})

	Context("idempotency", func() {
		It("rejects a second approval from the same approver", func() {
			rule := buildRule(false, 100, 201, 202)
			exp := buildPendingExpense(rule, expense.Approval{ApproverID: 201, ApprovedAt: now})

			_, err := approval.Evaluate(rule, exp, 201, "", now)
			Expect(err).To(MatchError(internal.ErrAlreadyApproved))
		})
	})

	Context("sequential rules", func() {
		It("blocks a later approver while a predecessor has not acted", func() {
			rule := buildRule(true, 100, 201, 202, 203)
			exp := buildPendingExpense(rule)

			_, err := approval.Evaluate(rule, exp, 202, "", now)

			var orderErr *approval.OrderError
			Expect(err).To(BeAssignableToTypeOf(orderErr))
			Expect(err.(*approval.OrderError).WaitingForUserID).To(Equal(int64(201)))
		})

		It("names the earliest missing predecessor", func() {
			rule := buildRule(true, 100, 201, 202, 203)
			exp := buildPendingExpense(rule)

			_, err := approval.Evaluate(rule, exp, 203, "", now)
			Expect(err.(*approval.OrderError).WaitingForUserID).To(Equal(int64(201)))
		})

		It("allows the first approver in sequence", func() {
			rule := buildRule(true, 100, 201, 202)
			exp := buildPendingExpense(rule)

			decision, err := approval.Evaluate(rule, exp, 201, "looks fine", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Event.ApproverID).To(Equal(int64(201)))
			Expect(decision.Event.SequenceNo).To(Equal(1))
			Expect(decision.Event.Comment).To(Equal("looks fine"))
		})

		It("allows a later approver once every predecessor has acted", func() {
			rule := buildRule(true, 100, 201, 202, 203)
			exp := buildPendingExpense(rule,
				expense.Approval{ApproverID: 201, ApprovedAt: now},
				expense.Approval{ApproverID: 202, ApprovedAt: now},
			)

			decision, err := approval.Evaluate(rule, exp, 203, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.ThresholdMet).To(BeTrue())
		})
	})

	Context("parallel rules", func() {
		It("accepts approvals in any order", func() {
			rule := buildRule(false, 100, 201, 202, 203)
			exp := buildPendingExpense(rule)

			decision, err := approval.Evaluate(rule, exp, 203, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Percentage).To(Equal(33))
			Expect(decision.ThresholdMet).To(BeFalse())
			Expect(decision.ApprovalsNeeded).To(Equal(2))
		})

		It("reaches the same outcome regardless of approval order", func() {
			orders := [][]int64{
				{201, 202},
				{202, 201},
			}
			for _, order := range orders {
				rule := buildRule(false, 100, 201, 202)
				exp := buildPendingExpense(rule)

				first, err := approval.Evaluate(rule, exp, order[0], "", now)
				Expect(err).NotTo(HaveOccurred())
				Expect(first.ThresholdMet).To(BeFalse())
				exp.Approvals = append(exp.Approvals, first.Event)

				second, err := approval.Evaluate(rule, exp, order[1], "", now)
				Expect(err).NotTo(HaveOccurred())
				Expect(second.Percentage).To(Equal(100))
				Expect(second.ThresholdMet).To(BeTrue())
			}
		})
	})

	Context("threshold evaluation", func() {
		It("does not resolve below the threshold", func() {
			rule := buildRule(false, 60, 201, 202, 203, 204, 205)
			exp := buildPendingExpense(rule, expense.Approval{ApproverID: 201, ApprovedAt: now})

			decision, err := approval.Evaluate(rule, exp, 202, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Percentage).To(Equal(40))
			Expect(decision.ThresholdMet).To(BeFalse())
		})

		It("resolves exactly at the threshold", func() {
			rule := buildRule(false, 60, 201, 202, 203, 204, 205)
			exp := buildPendingExpense(rule,
				expense.Approval{ApproverID: 201, ApprovedAt: now},
				expense.Approval{ApproverID: 202, ApprovedAt: now},
			)

			decision, err := approval.Evaluate(rule, exp, 203, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Percentage).To(Equal(60))
			Expect(decision.ThresholdMet).To(BeTrue())
			Expect(decision.ApprovalsNeeded).To(Equal(2))
		})

		It("counts non-required approvers in the denominator", func() {
			rule := buildRule(false, 100, 201, 202)
			rule.Approvers[1].Required = false
			exp := buildPendingExpense(rule)

			decision, err := approval.Evaluate(rule, exp, 201, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Percentage).To(Equal(50))
			Expect(decision.ThresholdMet).To(BeFalse())
		})
	})

	Context("rule edits after submission", func() {
		It("keeps the threshold pinned at submission when the rule is raised", func() {
			rule := buildRule(false, 50, 201, 202)
			exp := buildPendingExpense(rule)
			rule.MinApprovalPercent = 100

			decision, err := approval.Evaluate(rule, exp, 201, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Percentage).To(Equal(50))
			Expect(decision.ThresholdMet).To(BeTrue())
		})

		It("keeps the threshold pinned at submission when the rule is lowered", func() {
			rule := buildRule(false, 100, 201, 202)
			exp := buildPendingExpense(rule)
			rule.MinApprovalPercent = 50

			decision, err := approval.Evaluate(rule, exp, 201, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.ThresholdMet).To(BeFalse())
		})

		It("keeps the sequence mode pinned at submission", func() {
			rule := buildRule(false, 100, 201, 202)
			exp := buildPendingExpense(rule)
			rule.ApproverSequence = true

			decision, err := approval.Evaluate(rule, exp, 202, "", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Event.ApproverID).To(Equal(int64(202)))
		})
	})
})

var _ = Describe("Percentage", func() {
	It("rounds to the nearest integer", func() {
		Expect(approval.Percentage(1, 3)).To(Equal(33))
		Expect(approval.Percentage(2, 3)).To(Equal(67))
		Expect(approval.Percentage(1, 6)).To(Equal(17))
	})

	It("is zero for an empty approver list", func() {
		Expect(approval.Percentage(0, 0)).To(Equal(0))
		Expect(approval.Percentage(3, 0)).To(Equal(0))
	})

	It("is 100 when everyone approved", func() {
		Expect(approval.Percentage(5, 5)).To(Equal(100))
	})
})

var _ = Describe("SeedAutoApprovals", func() {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	It("creates synthetic events only for auto-approve entries", func() {
		rule := buildRule(false, 100, 201, 202, 203)
		rule.Approvers[1].AutoApprove = true

		seeded := approval.SeedAutoApprovals(rule, now)
		Expect(seeded).To(HaveLen(1))
		Expect(seeded[0].ApproverID).To(Equal(int64(202)))
		Expect(seeded[0].Comment).To(Equal("auto-approved"))
		Expect(seeded[0].ApprovedAt).To(Equal(now))
	})

	It("returns nothing when no entry is flagged", func() {
		rule := buildRule(false, 100, 201, 202)
		Expect(approval.SeedAutoApprovals(rule, now)).To(BeEmpty())
	})

	It("keeps sequence order", func() {
		rule := buildRule(true, 100, 201, 202, 203)
		rule.Approvers[0].AutoApprove = true
		rule.Approvers[2].AutoApprove = true

		seeded := approval.SeedAutoApprovals(rule, now)
		Expect(seeded).To(HaveLen(2))
		Expect(seeded[0].ApproverID).To(Equal(int64(201)))
		Expect(seeded[1].ApproverID).To(Equal(int64(203)))
	})
})

var _ = Describe("Rule validation", func() {
	It("rejects a rule with no approvers", func() {
		rule := buildRule(false, 100)
		err := rule.Validate()
		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeRuleHasNoApprovers))
	})

	It("rejects duplicate approvers", func() {
		rule := buildRule(false, 100, 201)
		rule.Approvers = append(rule.Approvers, approval.RuleApprover{UserID: 201, SequenceNo: 2})
		Expect(rule.Validate()).To(HaveOccurred())
	})

	It("rejects thresholds outside 0..100", func() {
		rule := buildRule(false, 101, 201)
		Expect(rule.Validate()).To(HaveOccurred())

		rule = buildRule(false, -1, 201)
		Expect(rule.Validate()).To(HaveOccurred())
	})

	It("accepts a well-formed rule", func() {
		rule := buildRule(true, 60, 201, 202)
		Expect(rule.Validate()).To(Succeed())
	})
})
