package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
)

// UserService describes user lifecycle operations. Users are created only
// through the admin registration flow; everything else is read-only.
type UserService interface {
	Register(ctx context.Context, name, code string) (*domain.User, error)
	GetByCode(ctx context.Context, code string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Register(ctx context.Context, name, code string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))

	if name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if !domain.ValidCode(code) {
		return nil, fmt.Errorf("code must be %d uppercase letters or digits: %w",
			domain.CodeLength, domain.ErrInvalidInput)
	}

	user := &domain.User{Name: name, Code: code}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) GetByCode(ctx context.Context, code string) (*domain.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !domain.ValidCode(code) {
		return nil, fmt.Errorf("malformed user code: %w", domain.ErrInvalidInput)
	}
	return s.users.GetByCode(ctx, code)
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}
