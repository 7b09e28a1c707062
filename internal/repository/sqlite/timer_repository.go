package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
)

const createTimersTable = `
CREATE TABLE IF NOT EXISTS timers (
	user_code TEXT PRIMARY KEY,
	start_time DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) repository.TimerRepository {
	return &TimerRepository{db: db}
}

func (r *TimerRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTimersTable); err != nil {
		return fmt.Errorf("create timers table: %w", err)
	}
	return nil
}

func (r *TimerRepository) GetStart(ctx context.Context, userCode string) (*domain.TimerState, error) {
	var state domain.TimerState
	err := r.db.QueryRowContext(ctx, `
SELECT user_code, start_time, updated_at
FROM timers
WHERE user_code = ?`,
		userCode,
	).Scan(&state.UserCode, &state.StartTime, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query timer: %w", err)
	}
	return &state, nil
}

func (r *TimerRepository) SetStart(ctx context.Context, userCode string, start time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO timers (user_code, start_time, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(user_code) DO UPDATE SET
	start_time = excluded.start_time,
	updated_at = excluded.updated_at`,
		userCode, start.UTC(), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert timer: %w", err)
	}
	return nil
}

func (r *TimerRepository) ClearStart(ctx context.Context, userCode string) error {
	if _, err := r.db.ExecContext(ctx, `
DELETE FROM timers WHERE user_code = ?`, userCode); err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	return nil
}
