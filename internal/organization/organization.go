package organization

import (
	"time"

	"github.com/expenseflow/expense-approval/internal"
)

// Organization is the tenant boundary: all rule, expense and user matching
// is scoped within one organization.
type Organization struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"uniqueIndex;not null"`
	DefaultCurrency string    `json:"default_currency" gorm:"column:default_currency;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

type CreateOrganizationDTO struct {
	Name            string `json:"name"`
	DefaultCurrency string `json:"default_currency"`
}

func (dto CreateOrganizationDTO) Validate() error {
	if dto.Name == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if len(dto.DefaultCurrency) != 3 {
		return internal.NewValidationFieldError("default_currency", "default_currency must be a 3-letter code", internal.ErrCodeInvalidCurrency)
	}
	return nil
}
