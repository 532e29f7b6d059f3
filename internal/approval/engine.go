package approval

import (
	"math"
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/expense"
)

// Decision is the outcome of evaluating one approval action against a rule.
// When ThresholdMet is true the caller transitions the expense to approved in
// the same persisted update as the appended event.
type Decision struct {
	Event           expense.Approval
	Percentage      int
	ThresholdMet    bool
	ApprovalsNeeded int
}

// OrderError signals a sequential-mode approval attempted before a
// predecessor has acted. The service layer resolves WaitingForUserID into a
// display name for the client.
type OrderError struct {
	WaitingForUserID int64
}

func (e *OrderError) Error() string {
	return "a predecessor approver has not acted yet"
}

// Evaluate runs the threshold decision path for one approval action: rule
// membership, idempotency, sequence prefix when the snapshot is sequential,
// then the appended event and recomputed percentage.
//
// The threshold and sequence mode come from the snapshot pinned on the
// expense at submission; the rule supplies only membership, sequence numbers
// and the denominator. Pure with respect to its inputs; the caller owns
// persistence and locking.
func Evaluate(rule *Rule, exp *expense.Expense, approverID int64, comment string, now time.Time) (*Decision, error) {
	entry, listed := rule.ApproverEntry(approverID)
	if !listed {
		return nil, internal.ErrNotOnApprovalRule
	}

	if exp.HasApprovalFrom(approverID) {
		return nil, internal.ErrAlreadyApproved
	}

	if exp.ApproverSequence {
		if err := checkSequencePrefix(rule, exp, approverID); err != nil {
			return nil, err
		}
	}

	event := expense.Approval{
		ExpenseID:  exp.ID,
		ApproverID: approverID,
		SequenceNo: entry.SequenceNo,
		Comment:    comment,
		ApprovedAt: now,
	}

	approvedCount := len(exp.Approvals) + 1
	total := len(rule.Approvers)
	pct := Percentage(approvedCount, total)

	return &Decision{
		Event:           event,
		Percentage:      pct,
		ThresholdMet:    pct >= exp.SnapshotThreshold(),
		ApprovalsNeeded: total - approvedCount,
	}, nil
}

// checkSequencePrefix enforces prefix-completeness: every approver ordered
// before the actor must already have an event. Approvers are not forced into
// strict turn-taking beyond that.
func checkSequencePrefix(rule *Rule, exp *expense.Expense, approverID int64) error {
	for _, predecessor := range rule.ApproversInOrder() {
		if predecessor.UserID == approverID {
			return nil
		}
		if !exp.HasApprovalFrom(predecessor.UserID) {
			return &OrderError{WaitingForUserID: predecessor.UserID}
		}
	}
	return nil
}

// Percentage computes the approval share over the configured approver count,
// rounded to the nearest integer. Non-required approvers count the same as
// required ones, in both numerator and denominator.
func Percentage(approved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(approved) * 100 / float64(total)))
}

// SeedAutoApprovals returns synthetic approval events for every approver the
// rule flags auto_approve, dated at submission time.
func SeedAutoApprovals(rule *Rule, now time.Time) []expense.Approval {
	var seeded []expense.Approval
	for _, a := range rule.ApproversInOrder() {
		if !a.AutoApprove {
			continue
		}
		seeded = append(seeded, expense.Approval{
			ApproverID: a.UserID,
			SequenceNo: a.SequenceNo,
			Comment:    "auto-approved",
			ApprovedAt: now,
		})
	}
	return seeded
}
