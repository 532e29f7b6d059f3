package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expenseflow/expense-approval/internal/core/events"
)

// EventHandler bridges the event bus to the notification service. Expense
// owners get an inbox entry when their expense resolves and on each
// recorded approval.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

// RegisterHandlers subscribes this handler to the domain events it cares about.
func (h *EventHandler) RegisterHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeExpenseResolved, h.handleExpenseResolved)
	bus.Subscribe(events.EventTypeApprovalRecorded, h.handleApprovalRecorded)
}

func (h *EventHandler) handleExpenseResolved(ctx context.Context, event events.Event) error {
	resolved, ok := event.(*events.ExpenseResolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	h.logger.Info("handling expense resolved event",
		"expense_id", resolved.ExpenseID,
		"status", resolved.Status,
		"resolved_by", resolved.ResolvedBy)

	return h.service.NotifyExpenseResolved(resolved.UserID, resolved.ExpenseID, resolved.Status, resolved.ResolvedBy)
}

func (h *EventHandler) handleApprovalRecorded(ctx context.Context, event events.Event) error {
	recorded, ok := event.(*events.ApprovalRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	// Progress notifications go to the approver who acted, the owner only
	// hears about terminal resolution.
	return h.service.NotifyApprovalProgress(recorded.ApproverID, recorded.ExpenseID, recorded.Percentage)
}
