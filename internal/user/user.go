package user

import (
	"time"
)

// Roles, from least to most privileged. Approval authority requires
// manager or admin; rule and user administration requires admin.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

type User struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	OrganizationID int64      `json:"organization_id" gorm:"column:organization_id;not null"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	Name           string     `json:"name" gorm:"not null"`
	PasswordHash   string     `json:"-" gorm:"column:password_hash;not null"`
	Role           string     `json:"role" gorm:"column:role;default:employee"`
	ManagerID      *int64     `json:"manager_id,omitempty" gorm:"column:manager_id"`
	IsActive       bool       `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) SameOrganization(other *User) bool {
	return u.OrganizationID == other.OrganizationID
}

func ValidRole(role string) bool {
	switch role {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}
