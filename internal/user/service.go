package user

import (
	"log/slog"
	"strings"

	"github.com/expenseflow/expense-approval/internal"
	"golang.org/x/crypto/bcrypt"
)

// Repository defines the data access methods for users
type Repository interface {
	Create(u *User) error
	GetByID(id int64) (*User, error)
	GetByEmail(email string) (*User, error)
	ListByOrganization(orgID int64, limit, offset int) ([]*User, error)
	Update(u *User) error
}

type Service struct {
	repo       Repository
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// CreateUser creates a user inside the acting admin's organization.
func (s *Service) CreateUser(actor *User, dto CreateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("create user denied: admin role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrManagerRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByEmail(strings.ToLower(dto.Email)); err == nil && existing != nil {
		return nil, internal.NewConflictError("a user with this email already exists", internal.ErrCodeDuplicateEmail)
	}

	if dto.ManagerID != nil {
		manager, err := s.repo.GetByID(*dto.ManagerID)
		if err != nil {
			return nil, internal.NewValidationFieldError("manager_id", "manager does not exist", internal.ErrCodeValidationFailed)
		}
		if manager.OrganizationID != actor.OrganizationID {
			return nil, internal.ErrUnauthorizedAccess
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	role := dto.Role
	if role == "" {
		role = RoleEmployee
	}

	u := &User{
		OrganizationID: actor.OrganizationID,
		Email:          strings.ToLower(dto.Email),
		Name:           dto.Name,
		PasswordHash:   string(hash),
		Role:           role,
		ManagerID:      dto.ManagerID,
		IsActive:       true,
	}

	if err := s.repo.Create(u); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", dto.Email)
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "organization_id", u.OrganizationID, "role", u.Role)
	return u, nil
}

func (s *Service) GetByID(id int64) (*User, error) {
	u, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

// ListUsers returns users in the actor's organization. Managers and admins only.
func (s *Service) ListUsers(actor *User, limit, offset int) ([]*User, error) {
	if !actor.IsManager() {
		return nil, internal.ErrManagerRequired
	}
	users, err := s.repo.ListByOrganization(actor.OrganizationID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", "error", err, "organization_id", actor.OrganizationID)
		return nil, internal.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// UpdateUser applies partial updates to a user in the actor's organization.
func (s *Service) UpdateUser(actor *User, userID int64, dto UpdateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrManagerRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, internal.ErrUserNotFound
	}
	if u.OrganizationID != actor.OrganizationID {
		return nil, internal.ErrUnauthorizedAccess
	}

	if dto.Name != nil {
		u.Name = *dto.Name
	}
	if dto.Role != nil {
		u.Role = *dto.Role
	}
	if dto.ManagerID != nil {
		u.ManagerID = dto.ManagerID
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}

	if err := s.repo.Update(u); err != nil {
		s.logger.Error("failed to update user", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", u.ID, "actor_id", actor.ID)
	return u, nil
}
