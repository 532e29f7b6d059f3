package organization

import (
	"log/slog"
	"strings"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/user"
)

type Repository interface {
	Create(org *Organization) error
	GetByID(id int64) (*Organization, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateOrganization(actor *user.User, dto CreateOrganizationDTO) (*Organization, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrManagerRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	org := &Organization{
		Name:            dto.Name,
		DefaultCurrency: strings.ToUpper(dto.DefaultCurrency),
	}
	if err := s.repo.Create(org); err != nil {
		s.logger.Error("failed to create organization", "error", err, "name", dto.Name)
		return nil, internal.NewInternalError("failed to create organization", err)
	}

	s.logger.Info("organization created", "organization_id", org.ID, "name", org.Name)
	return org, nil
}

// GetOrganization returns the actor's own organization.
func (s *Service) GetOrganization(actor *user.User, id int64) (*Organization, error) {
	if actor.OrganizationID != id {
		return nil, internal.ErrUnauthorizedAccess
	}
	org, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrOrgNotFound
	}
	return org, nil
}
