package notification

import "time"

const (
	KindExpenseResolved  = "expense_resolved"
	KindApprovalRecorded = "approval_recorded"
)

// Notification is a per-user inbox entry produced from domain events.
type Notification struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;index;not null"`
	ExpenseID int64     `json:"expense_id" gorm:"column:expense_id;not null"`
	Kind      string    `json:"kind" gorm:"column:kind;not null"`
	Message   string    `json:"message" gorm:"column:message;not null"`
	IsRead    bool      `json:"is_read" gorm:"column:is_read;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
