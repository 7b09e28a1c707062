package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS work_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_work_sessions_user_id ON work_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_work_sessions_start_time ON work_sessions(user_id, start_time);
`

// Timestamps are stored as UTC text in a layout sqlite's date() can parse.
// Binding time.Time directly leaves the driver's default string in the
// column, which date() cannot read.
const (
	sessionTimeLayout = "2006-01-02 15:04:05.999999999Z07:00"
	sessionDayLayout  = "2006-01-02"
)

func encodeSessionTime(t time.Time) string {
	return t.UTC().Format(sessionTimeLayout)
}

func decodeSessionTime(value string) (time.Time, error) {
	return time.Parse(sessionTimeLayout, value)
}

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create work_sessions table: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, userID int64, start, end time.Time, enforceDailyLimit bool) (*domain.WorkSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if enforceDailyLimit {
		var count int
		if err := tx.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM work_sessions
WHERE user_id = ? AND date(start_time) = ?`,
			userID, start.UTC().Format(sessionDayLayout),
		).Scan(&count); err != nil {
			return nil, fmt.Errorf("check daily sessions: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("session already recorded for this day: %w", domain.ErrConflict)
		}
	}

	session := &domain.WorkSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: start.UTC(),
		EndTime:   ptrTime(end.UTC()),
		CreatedAt: time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO work_sessions (id, user_id, start_time, end_time, created_at)
VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		encodeSessionTime(session.StartTime),
		encodeSessionTime(*session.EndTime),
		encodeSessionTime(session.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]domain.WorkSession, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM work_sessions WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, start_time, end_time, created_at
FROM work_sessions
WHERE user_id = ?
ORDER BY start_time DESC
LIMIT ? OFFSET ?`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.WorkSession
	for rows.Next() {
		var (
			session domain.WorkSession
			start   string
			end     sql.NullString
			created string
		)
		if err := rows.Scan(&session.ID, &session.UserID, &start, &end, &created); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		if session.StartTime, err = decodeSessionTime(start); err != nil {
			return nil, 0, fmt.Errorf("decode start_time: %w", err)
		}
		if end.Valid {
			endTime, err := decodeSessionTime(end.String)
			if err != nil {
				return nil, 0, fmt.Errorf("decode end_time: %w", err)
			}
			session.EndTime = ptrTime(endTime)
		}
		if session.CreatedAt, err = decodeSessionTime(created); err != nil {
			return nil, 0, fmt.Errorf("decode created_at: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, total, rows.Err()
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
