package repository

import (
	"context"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByCode(ctx context.Context, code string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}
