package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

type fakeSessions struct {
	mu        sync.Mutex
	sessions  []domain.WorkSession
	createErr error
	block     bool
	nextID    int

	// When set, ListAllSessions for listBlockCode signals listEntered and
	// then waits on listGate.
	listBlockCode string
	listGate      chan struct{}
	listEntered   chan struct{}
}

func (f *fakeSessions) ListAllSessions(ctx context.Context, code string) ([]domain.WorkSession, error) {
	f.mu.Lock()
	gate, entered := f.listGate, f.listEntered
	blocked := gate != nil && code == f.listBlockCode
	f.mu.Unlock()
	if blocked {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WorkSession(nil), f.sessions...), nil
}

func (f *fakeSessions) CreateSession(ctx context.Context, code string, start, end time.Time) (*domain.WorkSession, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	session := domain.WorkSession{
		ID:        fmt.Sprintf("session-%d", f.nextID),
		StartTime: start,
		EndTime:   &end,
	}
	f.sessions = append([]domain.WorkSession{session}, f.sessions...)
	return &session, nil
}

type fakeTimers struct {
	mu         sync.Mutex
	starts     map[string]time.Time
	setCalls   int
	setErr     error
	clearCalls int
	clearFails int // number of leading ClearStart calls to fail
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{starts: make(map[string]time.Time)}
}

func (f *fakeTimers) GetStart(ctx context.Context, code string) (*domain.TimerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start, ok := f.starts[code]
	if !ok {
		return nil, nil
	}
	return &domain.TimerState{UserCode: code, StartTime: start}, nil
}

func (f *fakeTimers) SetStart(ctx context.Context, code string, start time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.starts[code] = start
	return nil
}

func (f *fakeTimers) ClearStart(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	if f.clearFails > 0 {
		f.clearFails--
		return errors.New("marker store unavailable")
	}
	delete(f.starts, code)
	return nil
}

func testConfig() Config {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return Config{
		TickInterval:   10 * time.Millisecond,
		GatewayTimeout: time.Second,
		Logger:         logger,
	}
}

func newTestController(t *testing.T, sessions *fakeSessions, timers *fakeTimers) *Controller {
	t.Helper()
	c := newController("ABCD1234", testConfig(), sessions, timers)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestControllerLoadWithoutMarkerIsStopped(t *testing.T) {
	end := time.Now().UTC().Add(-time.Hour)
	sessions := &fakeSessions{sessions: []domain.WorkSession{
		{ID: "old", StartTime: end.Add(-90 * time.Minute), EndTime: &end},
	}}
	c := newTestController(t, sessions, newFakeTimers())

	snap := c.Snapshot()
	if snap.State != StateStopped {
		t.Fatalf("state = %s, want stopped", snap.State)
	}
	if snap.CurrentTime != "0h 0m" {
		t.Fatalf("current = %q", snap.CurrentTime)
	}
	if snap.TotalDuration != "1h 30m" {
		t.Fatalf("total = %q, want 1h 30m", snap.TotalDuration)
	}
	if len(snap.Sessions) != 1 {
		t.Fatalf("expected history, got %d sessions", len(snap.Sessions))
	}
}

func TestControllerLoadRecoversRunningTimer(t *testing.T) {
	timers := newFakeTimers()
	timers.starts["ABCD1234"] = time.Now().UTC().Add(-2 * time.Hour)
	c := newTestController(t, &fakeSessions{}, timers)

	snap := c.Snapshot()
	if snap.State != StateRunning {
		t.Fatalf("state = %s, want running", snap.State)
	}
	if snap.StartedAt == nil {
		t.Fatal("expected recovered start time")
	}
	if snap.CurrentTime != "2h 0m" {
		t.Fatalf("current = %q, want 2h 0m", snap.CurrentTime)
	}
}

func TestControllerStart(t *testing.T) {
	timers := newFakeTimers()
	c := newTestController(t, &fakeSessions{}, timers)

	snap, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.State != StateRunning {
		t.Fatalf("state = %s, want running", snap.State)
	}
	if snap.CurrentTime != "0h 0m" {
		t.Fatalf("fresh elapsed = %q, want 0h 0m", snap.CurrentTime)
	}

	state, _ := timers.GetStart(context.Background(), "ABCD1234")
	if state == nil {
		t.Fatal("expected persisted marker after start")
	}
}

func TestControllerStartWhileRunningIsNoOp(t *testing.T) {
	timers := newFakeTimers()
	c := newTestController(t, &fakeSessions{}, timers)

	first, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	second, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	// The start instant is never rebased and the gateway is not re-invoked.
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("start rebased: %v -> %v", first.StartedAt, second.StartedAt)
	}
	timers.mu.Lock()
	calls := timers.setCalls
	timers.mu.Unlock()
	if calls != 1 {
		t.Fatalf("SetStart called %d times, want 1", calls)
	}
}

func TestControllerStartPersistFailure(t *testing.T) {
	timers := newFakeTimers()
	timers.setErr = errors.New("disk full")
	c := newTestController(t, &fakeSessions{}, timers)

	_, err := c.Start(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if snap := c.Snapshot(); snap.State != StateStopped {
		t.Fatalf("state = %s, want stopped after failed start", snap.State)
	}
}

func TestControllerStopCreatesSession(t *testing.T) {
	sessions := &fakeSessions{}
	timers := newFakeTimers()
	c := newTestController(t, sessions, timers)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	session, snap, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if session == nil || session.EndTime == nil {
		t.Fatal("expected completed session")
	}
	if elapsed := session.EndTime.Sub(session.StartTime); elapsed <= 0 || elapsed > time.Second {
		t.Fatalf("session span %v outside timer resolution", elapsed)
	}

	if snap.State != StateStopped {
		t.Fatalf("state = %s, want stopped", snap.State)
	}
	if snap.CurrentTime != "0h 0m" {
		t.Fatalf("current = %q, want reset", snap.CurrentTime)
	}
	if len(snap.Sessions) != 1 || snap.Sessions[0].ID != session.ID {
		t.Fatalf("history not prepended: %+v", snap.Sessions)
	}

	state, _ := timers.GetStart(context.Background(), "ABCD1234")
	if state != nil {
		t.Fatal("marker should be cleared after stop")
	}
}

func TestControllerStopWhileStopped(t *testing.T) {
	c := newTestController(t, &fakeSessions{}, newFakeTimers())

	_, _, err := c.Stop(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestControllerStopPersistFailureStillSettles(t *testing.T) {
	sessions := &fakeSessions{createErr: errors.New("db gone")}
	timers := newFakeTimers()
	c := newTestController(t, sessions, timers)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, snap, err := c.Stop(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	// The clock is never left ambiguous: local state resets and the durable
	// marker is cleared even though the session was not saved.
	if snap.State != StateStopped || snap.CurrentTime != "0h 0m" {
		t.Fatalf("snapshot after failed stop: %+v", snap)
	}
	if len(snap.Sessions) != 0 {
		t.Fatalf("unsaved session must not enter history: %+v", snap.Sessions)
	}
	if state, _ := timers.GetStart(context.Background(), "ABCD1234"); state != nil {
		t.Fatal("marker should be cleared")
	}
}

func TestControllerStopRetriesMarkerClear(t *testing.T) {
	timers := newFakeTimers()
	timers.clearFails = 1
	c := newTestController(t, &fakeSessions{}, timers)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// A transient clear failure must not leave the marker behind: a later
	// restart would recover a running clock for an interval already saved.
	timers.mu.Lock()
	calls := timers.clearCalls
	timers.mu.Unlock()
	if calls != 2 {
		t.Fatalf("ClearStart called %d times, want retry after failure", calls)
	}
	if state, _ := timers.GetStart(context.Background(), "ABCD1234"); state != nil {
		t.Fatal("marker should be cleared after retry")
	}
}

func TestControllerLoadDiscardsStaleMarker(t *testing.T) {
	markerStart := time.Now().UTC().Add(-2 * time.Hour)
	sessionEnd := markerStart.Add(time.Hour)
	sessions := &fakeSessions{sessions: []domain.WorkSession{
		{ID: "saved", StartTime: markerStart, EndTime: &sessionEnd},
	}}
	timers := newFakeTimers()
	timers.starts["ABCD1234"] = markerStart

	// The marker's interval is already closed by a saved session, so it is
	// a leftover from a stop whose clear failed. Recovery would double-book.
	c := newTestController(t, sessions, timers)

	snap := c.Snapshot()
	if snap.State != StateStopped {
		t.Fatalf("state = %s, want stopped", snap.State)
	}
	if state, _ := timers.GetStart(context.Background(), "ABCD1234"); state != nil {
		t.Fatal("stale marker should be cleared on load")
	}
	if snap.TotalDuration != "1h 0m" {
		t.Fatalf("total = %q, want 1h 0m from the saved session only", snap.TotalDuration)
	}
}

func TestControllerStopConflictPropagated(t *testing.T) {
	sessions := &fakeSessions{createErr: fmt.Errorf("same day: %w", domain.ErrConflict)}
	c := newTestController(t, sessions, newFakeTimers())

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, _, err := c.Stop(context.Background())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestControllerGatewayTimeout(t *testing.T) {
	sessions := &fakeSessions{block: true}
	timers := newFakeTimers()
	c := newController("ABCD1234", Config{
		TickInterval:   10 * time.Millisecond,
		GatewayTimeout: 20 * time.Millisecond,
		Logger:         testConfig().Logger,
	}, sessions, timers)
	t.Cleanup(c.Close)

	sessions.block = false
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sessions.block = true
	_, _, err := c.Stop(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence on timeout, got %v", err)
	}
}

func TestControllerTickRecomputesWhileRunning(t *testing.T) {
	timers := newFakeTimers()
	timers.starts["ABCD1234"] = time.Now().UTC().Add(-45 * time.Minute)
	c := newTestController(t, &fakeSessions{}, timers)

	time.Sleep(30 * time.Millisecond)

	// Read the cached display directly: the tick goroutine keeps it fresh
	// without Snapshot forcing a recompute.
	c.mu.Lock()
	current := c.currentTime
	total := c.totalDuration
	c.mu.Unlock()

	if current != "0h 45m" {
		t.Fatalf("ticked current = %q, want 0h 45m", current)
	}
	if total != "0h 45m" {
		t.Fatalf("ticked total = %q, want 0h 45m", total)
	}
}

func TestControllerTickerStopsWithClock(t *testing.T) {
	c := newTestController(t, &fakeSessions{}, newFakeTimers())

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.mu.Lock()
	running := c.cancelTick != nil
	c.mu.Unlock()
	if !running {
		t.Fatal("ticker should run with the clock")
	}

	if _, _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	c.mu.Lock()
	stopped := c.cancelTick == nil
	c.mu.Unlock()
	if !stopped {
		t.Fatal("ticker should be cancelled when leaving running state")
	}
}

func TestManagerSharesControllers(t *testing.T) {
	m := NewManager(testConfig(), &fakeSessions{}, newFakeTimers())
	defer m.Shutdown()
	ctx := context.Background()

	a, err := m.Controller(ctx, "ABCD1234")
	if err != nil {
		t.Fatalf("first Controller: %v", err)
	}
	b, err := m.Controller(ctx, "ABCD1234")
	if err != nil {
		t.Fatalf("second Controller: %v", err)
	}
	if a != b {
		t.Fatal("expected one controller per user code")
	}

	other, err := m.Controller(ctx, "EFGH5678")
	if err != nil {
		t.Fatalf("other Controller: %v", err)
	}
	if other == a {
		t.Fatal("distinct codes must not share a controller")
	}
}

func TestManagerLoadIsolationAcrossCodes(t *testing.T) {
	sessions := &fakeSessions{
		listBlockCode: "ABCD1234",
		listGate:      make(chan struct{}),
		listEntered:   make(chan struct{}, 1),
	}
	m := NewManager(testConfig(), sessions, newFakeTimers())
	defer m.Shutdown()
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		m.Controller(ctx, "ABCD1234")
	}()
	<-sessions.listEntered // first code's load is now in flight

	// Another code's first request must not queue behind it.
	secondDone := make(chan error, 1)
	go func() {
		_, err := m.Controller(ctx, "EFGH5678")
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("second Controller: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("one code's slow load blocked another code")
	}

	close(sessions.listGate)
	<-firstDone
}

func TestManagerShutdownStopsTickers(t *testing.T) {
	m := NewManager(testConfig(), &fakeSessions{}, newFakeTimers())
	ctx := context.Background()

	c, err := m.Controller(ctx, "ABCD1234")
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Shutdown()

	c.mu.Lock()
	cancelled := c.cancelTick == nil
	c.mu.Unlock()
	if !cancelled {
		t.Fatal("shutdown must cancel tick goroutines")
	}
}
