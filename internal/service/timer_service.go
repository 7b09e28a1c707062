package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
)

// TimerService exposes the running-timer marker for a user code. It layers
// user-existence checks over the raw timer repository so callers never write
// markers for codes that do not resolve to a user.
type TimerService interface {
	GetStart(ctx context.Context, code string) (*domain.TimerState, error)
	SetStart(ctx context.Context, code string, start time.Time) error
	ClearStart(ctx context.Context, code string) error
}

type timerService struct {
	users  repository.UserRepository
	timers repository.TimerRepository
}

func NewTimerService(users repository.UserRepository, timers repository.TimerRepository) TimerService {
	return &timerService{users: users, timers: timers}
}

func (s *timerService) GetStart(ctx context.Context, code string) (*domain.TimerState, error) {
	code, err := s.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.timers.GetStart(ctx, code)
}

func (s *timerService) SetStart(ctx context.Context, code string, start time.Time) error {
	code, err := s.resolveCode(ctx, code)
	if err != nil {
		return err
	}
	if start.IsZero() {
		return fmt.Errorf("start time is required: %w", domain.ErrInvalidInput)
	}
	return s.timers.SetStart(ctx, code, start)
}

func (s *timerService) ClearStart(ctx context.Context, code string) error {
	code, err := s.resolveCode(ctx, code)
	if err != nil {
		return err
	}
	return s.timers.ClearStart(ctx, code)
}

func (s *timerService) resolveCode(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !domain.ValidCode(code) {
		return "", fmt.Errorf("malformed user code: %w", domain.ErrInvalidInput)
	}
	if _, err := s.users.GetByCode(ctx, code); err != nil {
		return "", err
	}
	return code, nil
}
