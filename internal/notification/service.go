package notification

import (
	"fmt"
	"log/slog"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/user"
)

type Repository interface {
	Create(n *Notification) error
	ListByUser(userID int64, limit, offset int) ([]*Notification, error)
	MarkRead(userID, notificationID int64) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) NotifyExpenseResolved(userID, expenseID int64, status string, resolvedBy int64) error {
	msg := fmt.Sprintf("your expense was %s", status)
	if resolvedBy == 0 {
		msg = fmt.Sprintf("your expense was automatically %s", status)
	}
	n := &Notification{
		UserID:    userID,
		ExpenseID: expenseID,
		Kind:      KindExpenseResolved,
		Message:   msg,
	}
	if err := s.repo.Create(n); err != nil {
		s.logger.Error("failed to persist notification", "error", err, "user_id", userID, "expense_id", expenseID)
		return err
	}
	return nil
}

func (s *Service) NotifyApprovalProgress(userID, expenseID int64, percentage int) error {
	n := &Notification{
		UserID:    userID,
		ExpenseID: expenseID,
		Kind:      KindApprovalRecorded,
		Message:   fmt.Sprintf("approval progress is now %d%%", percentage),
	}
	if err := s.repo.Create(n); err != nil {
		s.logger.Error("failed to persist notification", "error", err, "user_id", userID, "expense_id", expenseID)
		return err
	}
	return nil
}

func (s *Service) ListNotifications(actor *user.User, limit, offset int) ([]*Notification, error) {
	items, err := s.repo.ListByUser(actor.ID, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list notifications", err)
	}
	return items, nil
}

func (s *Service) MarkRead(actor *user.User, notificationID int64) error {
	if err := s.repo.MarkRead(actor.ID, notificationID); err != nil {
		return internal.ErrNotificationNotFound
	}
	return nil
}
