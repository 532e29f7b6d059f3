package user

import (
	"strings"

	"github.com/expenseflow/expense-approval/internal"
)

type CreateUserDTO struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"manager_id,omitempty"`
}

func (dto CreateUserDTO) Validate() error {
	if dto.Email == "" || !strings.Contains(dto.Email, "@") {
		return internal.NewValidationFieldError("email", "a valid email is required", internal.ErrCodeValidationFailed)
	}
	if dto.Name == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if len(dto.Password) < 8 {
		return internal.NewValidationFieldError("password", "password must be at least 8 characters", internal.ErrCodeValidationFailed)
	}
	if dto.Role != "" && !ValidRole(dto.Role) {
		return internal.NewValidationFieldError("role", "role must be employee, manager or admin", internal.ErrCodeValidationFailed)
	}
	return nil
}

type UpdateUserDTO struct {
	Name      *string `json:"name,omitempty"`
	Role      *string `json:"role,omitempty"`
	ManagerID *int64  `json:"manager_id,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

func (dto UpdateUserDTO) Validate() error {
	if dto.Role != nil && !ValidRole(*dto.Role) {
		return internal.NewValidationFieldError("role", "role must be employee, manager or admin", internal.ErrCodeValidationFailed)
	}
	if dto.Name != nil && *dto.Name == "" {
		return internal.NewValidationFieldError("name", "name cannot be empty", internal.ErrCodeValidationFailed)
	}
	return nil
}
