package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository/sqlite"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/service"
)

type fixture struct {
	users    service.UserService
	sessions service.SessionService
	timers   service.TimerService

	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	timerRepo   repository.TimerRepository
}

func newFixture(t *testing.T, enforceDailyLimit bool) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		userRepo:    sqlite.NewUserRepository(db),
		sessionRepo: sqlite.NewSessionRepository(db),
		timerRepo:   sqlite.NewTimerRepository(db),
	}

	ctx := context.Background()
	for name, init := range map[string]func(context.Context) error{
		"users":    f.userRepo.Init,
		"sessions": f.sessionRepo.Init,
		"timers":   f.timerRepo.Init,
	} {
		if err := init(ctx); err != nil {
			t.Fatalf("init %s: %v", name, err)
		}
	}

	f.users = service.NewUserService(f.userRepo)
	f.sessions = service.NewSessionService(f.userRepo, f.sessionRepo, enforceDailyLimit)
	f.timers = service.NewTimerService(f.userRepo, f.timerRepo)
	return f
}

func (f *fixture) register(t *testing.T, code string) {
	t.Helper()
	if _, err := f.users.Register(context.Background(), "Test User", code); err != nil {
		t.Fatalf("register %s: %v", code, err)
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %s: %v", value, err)
	}
	return parsed
}
