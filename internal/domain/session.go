package domain

import "time"

// WorkSession is one completed start/stop interval of work. EndTime is nil
// while the session is still open. Sessions are append-only: once stopped
// they are never edited or deleted.
type WorkSession struct {
	ID        string
	UserID    int64
	StartTime time.Time
	EndTime   *time.Time
	CreatedAt time.Time
}

// TimerState is the durable marker of an in-progress, unstopped session.
// At most one exists per user code; its presence means the clock is running.
type TimerState struct {
	UserCode  string
	StartTime time.Time
	UpdatedAt time.Time
}
