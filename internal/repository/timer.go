package repository

import (
	"context"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

// TimerRepository persists the single running-timer marker per user code.
// The row is the one piece of cross-device shared state, so SetStart and
// ClearStart must be atomic single-row operations at the store.
type TimerRepository interface {
	Init(ctx context.Context) error
	// GetStart returns the persisted timer state, or nil when no timer is
	// running. Absence is a normal outcome, not an error.
	GetStart(ctx context.Context, userCode string) (*domain.TimerState, error)
	// SetStart upserts the marker, rebasing any existing start time.
	SetStart(ctx context.Context, userCode string, start time.Time) error
	// ClearStart removes the marker. Clearing an absent marker is a no-op.
	ClearStart(ctx context.Context, userCode string) error
}
