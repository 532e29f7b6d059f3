package notification_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenseflow/expense-approval/internal/core/events"
	"github.com/expenseflow/expense-approval/internal/expense"
	"github.com/expenseflow/expense-approval/internal/notification"
	"github.com/expenseflow/expense-approval/internal/user"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Module Suite")
}

type mockNotificationRepo struct {
	created   []*notification.Notification
	createErr error
}

func (m *mockNotificationRepo) Create(n *notification.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(userID int64, limit, offset int) ([]*notification.Notification, error) {
	var out []*notification.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(userID, notificationID int64) error {
	for _, n := range m.created {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return errors.New("not found")
}

var _ = Describe("Notification EventHandler", func() {
	var (
		repo    *mockNotificationRepo
		bus     *events.EventBus
		service *notification.Service
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = &mockNotificationRepo{}
		service = notification.NewService(repo, logger)
		bus = events.NewEventBus(logger)
		notification.NewEventHandler(service, logger).RegisterHandlers(bus)
	})

	It("notifies the owner when an expense resolves", func() {
		event := events.NewExpenseResolvedEvent(10, 100, 1, expense.StatusApproved, 201)
		Expect(bus.PublishSync(context.Background(), event)).To(Succeed())

		Expect(repo.created).To(HaveLen(1))
		Expect(repo.created[0].UserID).To(Equal(int64(100)))
		Expect(repo.created[0].ExpenseID).To(Equal(int64(10)))
		Expect(repo.created[0].Kind).To(Equal(notification.KindExpenseResolved))
		Expect(repo.created[0].Message).To(ContainSubstring("approved"))
	})

	It("mentions automatic approval when the system resolved it", func() {
		event := events.NewExpenseResolvedEvent(10, 100, 1, expense.StatusApproved, 0)
		Expect(bus.PublishSync(context.Background(), event)).To(Succeed())

		Expect(repo.created[0].Message).To(ContainSubstring("automatically"))
	})

	It("records approval progress for the acting approver", func() {
		event := events.NewApprovalRecordedEvent(10, 201, 50)
		Expect(bus.PublishSync(context.Background(), event)).To(Succeed())

		Expect(repo.created).To(HaveLen(1))
		Expect(repo.created[0].UserID).To(Equal(int64(201)))
		Expect(repo.created[0].Kind).To(Equal(notification.KindApprovalRecorded))
		Expect(repo.created[0].Message).To(ContainSubstring("50%"))
	})
})

var _ = Describe("Notification Service", func() {
	var (
		repo    *mockNotificationRepo
		service *notification.Service
		actor   *user.User
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = &mockNotificationRepo{}
		service = notification.NewService(repo, logger)
		actor = &user.User{ID: 100, OrganizationID: 1, Role: user.RoleEmployee, IsActive: true}
	})

	It("lists only the actor's notifications", func() {
		Expect(service.NotifyExpenseResolved(100, 10, expense.StatusRejected, 201)).To(Succeed())
		Expect(service.NotifyExpenseResolved(999, 11, expense.StatusApproved, 201)).To(Succeed())

		out, err := service.ListNotifications(actor, 20, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ExpenseID).To(Equal(int64(10)))
	})

	It("marks the actor's notification as read", func() {
		Expect(service.NotifyExpenseResolved(100, 10, expense.StatusApproved, 201)).To(Succeed())

		Expect(service.MarkRead(actor, repo.created[0].ID)).To(Succeed())
		Expect(repo.created[0].IsRead).To(BeTrue())
	})

	It("refuses to mark someone else's notification", func() {
		Expect(service.NotifyExpenseResolved(999, 10, expense.StatusApproved, 201)).To(Succeed())

		err := service.MarkRead(actor, repo.created[0].ID)
		Expect(err).To(HaveOccurred())
	})
})
