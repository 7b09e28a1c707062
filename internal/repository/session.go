package repository

import (
	"context"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

// SessionRepository exposes append-only persistence for work sessions.
// Historical sessions are never updated or deleted.
type SessionRepository interface {
	Init(ctx context.Context) error
	// Create appends one session. When enforceDailyLimit is set it fails with
	// domain.ErrConflict if the user already has a session whose start falls
	// on the same calendar day; the check and the insert run in one
	// transaction so concurrent stops racing for the same day serialize at
	// the store.
	Create(ctx context.Context, userID int64, start, end time.Time, enforceDailyLimit bool) (*domain.WorkSession, error)
	// ListByUser returns sessions newest first, along with the total count
	// across all pages.
	ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]domain.WorkSession, int, error)
}
