package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/duration"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
)

const dayKeyFormat = "2006-01-02"

// SessionPage is one page of a user's session history.
type SessionPage struct {
	Sessions   []domain.WorkSession
	Total      int
	Page       int
	TotalPages int
}

// DayTotal aggregates one calendar day of work for reporting.
type DayTotal struct {
	Date         string
	Sessions     int
	TotalMinutes int64
	Total        string
}

// SessionService coordinates work-session access for a user code.
type SessionService interface {
	ListSessions(ctx context.Context, code string, page, pageSize int) (*SessionPage, error)
	CreateSession(ctx context.Context, code string, start, end time.Time) (*domain.WorkSession, error)
	ListAllSessions(ctx context.Context, code string) ([]domain.WorkSession, error)
	DailyReport(ctx context.Context, code string) ([]DayTotal, error)
}

type sessionService struct {
	users             repository.UserRepository
	sessions          repository.SessionRepository
	enforceDailyLimit bool
}

// NewSessionService builds a SessionService. enforceDailyLimit toggles the
// one-completed-session-per-calendar-day rule.
func NewSessionService(users repository.UserRepository, sessions repository.SessionRepository, enforceDailyLimit bool) SessionService {
	return &sessionService{
		users:             users,
		sessions:          sessions,
		enforceDailyLimit: enforceDailyLimit,
	}
}

func (s *sessionService) ListSessions(ctx context.Context, code string, page, pageSize int) (*SessionPage, error) {
	user, err := s.resolveUser(ctx, code)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	sessions, total, err := s.sessions.ListByUser(ctx, user.ID, page, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &SessionPage{
		Sessions:   sessions,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (s *sessionService) CreateSession(ctx context.Context, code string, start, end time.Time) (*domain.WorkSession, error) {
	user, err := s.resolveUser(ctx, code)
	if err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("start and end times are required: %w", domain.ErrInvalidInput)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end time must be after start time: %w", domain.ErrInvalidInput)
	}
	return s.sessions.Create(ctx, user.ID, start, end, s.enforceDailyLimit)
}

func (s *sessionService) ListAllSessions(ctx context.Context, code string) ([]domain.WorkSession, error) {
	user, err := s.resolveUser(ctx, code)
	if err != nil {
		return nil, err
	}

	const pageSize = 200
	var all []domain.WorkSession
	for page := 1; ; page++ {
		sessions, total, err := s.sessions.ListByUser(ctx, user.ID, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
		if len(all) >= total || len(sessions) == 0 {
			return all, nil
		}
	}
}

// DailyReport groups a user's sessions by the calendar day of their start
// time and totals the hours worked, oldest day first. This feeds the
// per-day history view and the hours bar chart.
func (s *sessionService) DailyReport(ctx context.Context, code string) ([]DayTotal, error) {
	sessions, err := s.ListAllSessions(ctx, code)
	if err != nil {
		return nil, err
	}

	// Sum exact durations per day and floor to minutes once at the end, so
	// sub-minute remainders of individual sessions still count toward the
	// day total.
	now := time.Now().UTC()
	byDay := make(map[string]*DayTotal)
	totals := make(map[string]time.Duration)
	for _, session := range sessions {
		key := session.StartTime.Format(dayKeyFormat)
		day, ok := byDay[key]
		if !ok {
			day = &DayTotal{Date: key}
			byDay[key] = day
		}
		end := now
		if session.EndTime != nil {
			end = *session.EndTime
		}
		if d := end.Sub(session.StartTime); d > 0 {
			totals[key] += d
		}
		day.Sessions++
	}

	report := make([]DayTotal, 0, len(byDay))
	for key, day := range byDay {
		day.TotalMinutes = int64(totals[key] / time.Minute)
		day.Total = duration.Format(totals[key])
		report = append(report, *day)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Date < report[j].Date })
	return report, nil
}

func (s *sessionService) resolveUser(ctx context.Context, code string) (*domain.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("user code is required: %w", domain.ErrInvalidInput)
	}
	if !domain.ValidCode(code) {
		return nil, fmt.Errorf("malformed user code: %w", domain.ErrInvalidInput)
	}
	return s.users.GetByCode(ctx, code)
}
