// Package timer implements the server-side clock state machine: one
// controller per user code reconciling persisted timer state with session
// history, ticking the live elapsed display while running, and driving the
// start/stop transitions.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/duration"
)

// State is the lifecycle phase of a user's clock.
type State string

const (
	StateInitializing State = "initializing"
	StateStopped      State = "stopped"
	StateRunning      State = "running"
)

// SessionGateway is the slice of the session service the controller needs.
type SessionGateway interface {
	ListAllSessions(ctx context.Context, code string) ([]domain.WorkSession, error)
	CreateSession(ctx context.Context, code string, start, end time.Time) (*domain.WorkSession, error)
}

// TimerGateway persists the running-timer marker across reloads and devices.
type TimerGateway interface {
	GetStart(ctx context.Context, code string) (*domain.TimerState, error)
	SetStart(ctx context.Context, code string, start time.Time) error
	ClearStart(ctx context.Context, code string) error
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	State         State
	StartedAt     *time.Time
	CurrentTime   string
	TotalDuration string
	Sessions      []domain.WorkSession
}

// Controller owns the clock for a single user code. All transitions and the
// periodic tick are serialized by one mutex, so a tick never overlaps a
// start or stop.
type Controller struct {
	code     string
	cfg      Config
	sessions SessionGateway
	timers   TimerGateway
	logger   *logrus.Entry

	mu            sync.Mutex
	state         State
	startedAt     time.Time
	history       []domain.WorkSession
	currentTime   string
	totalDuration string

	cancelTick context.CancelFunc
	tickDone   chan struct{}
}

func newController(code string, cfg Config, sessions SessionGateway, timers TimerGateway) *Controller {
	return &Controller{
		code:          code,
		cfg:           cfg,
		sessions:      sessions,
		timers:        timers,
		logger:        cfg.Logger.WithField("user_code", code),
		state:         StateInitializing,
		currentTime:   duration.Zero,
		totalDuration: duration.Zero,
	}
}

// Load fetches the user's session history and any persisted timer marker,
// then settles into Running (the reload-survival path) or Stopped.
func (c *Controller) Load(ctx context.Context) error {
	historyCtx, cancel := c.gatewayContext(ctx)
	history, err := c.sessions.ListAllSessions(historyCtx, c.code)
	cancel()
	if err != nil {
		c.settle(StateStopped)
		return wrapGatewayErr("load sessions", err)
	}

	stateCtx, cancel := c.gatewayContext(ctx)
	persisted, err := c.timers.GetStart(stateCtx, c.code)
	cancel()
	if err != nil {
		c.mu.Lock()
		c.history = history
		c.mu.Unlock()
		c.settle(StateStopped)
		return wrapGatewayErr("load timer state", err)
	}

	// A marker whose interval is already covered by a saved session is left
	// over from a stop whose clear failed. Recovering it would double-book
	// the interval on the next stop, so discard it instead.
	if persisted != nil && markerCovered(history, persisted.StartTime) {
		clearCtx, cancel := c.gatewayContext(ctx)
		if err := c.timers.ClearStart(clearCtx, c.code); err != nil {
			c.logger.Warnf("clear stale timer marker: %v", err)
		}
		cancel()
		c.logger.WithField("started_at", persisted.StartTime).Info("discarded stale timer marker")
		persisted = nil
	}

	c.mu.Lock()
	c.history = history
	if persisted != nil {
		c.state = StateRunning
		c.startedAt = persisted.StartTime
		c.startTickerLocked()
		c.logger.WithField("started_at", persisted.StartTime).Info("recovered running timer")
	} else {
		c.state = StateStopped
	}
	c.refreshLocked(time.Now())
	c.mu.Unlock()
	return nil
}

// Start begins a new work interval. Starting an already-running clock is a
// guarded no-op: the persisted start time is never silently rebased.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return c.snapshotLocked(), nil
	}

	now := time.Now().UTC()
	gwCtx, cancel := c.gatewayContext(ctx)
	defer cancel()
	if err := c.timers.SetStart(gwCtx, c.code, now); err != nil {
		return c.snapshotLocked(), wrapGatewayErr("persist timer start", err)
	}

	c.state = StateRunning
	c.startedAt = now
	c.startTickerLocked()
	c.refreshLocked(now)
	c.logger.Info("clock started")
	return c.snapshotLocked(), nil
}

// Stop closes the running interval: it persists a work session spanning
// [startedAt, now], clears the durable marker, and prepends the session to
// the in-memory history. Local state always settles back to Stopped even
// when persistence fails, so the clock is never left ambiguous; the error
// is still returned to the caller.
func (c *Controller) Stop(ctx context.Context) (*domain.WorkSession, Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return nil, c.snapshotLocked(), fmt.Errorf("clock is not running: %w", domain.ErrInvalidInput)
	}

	start := c.startedAt
	now := time.Now().UTC()

	createCtx, cancel := c.gatewayContext(ctx)
	session, createErr := c.sessions.CreateSession(createCtx, c.code, start, now)
	cancel()
	if createErr != nil {
		createErr = wrapGatewayErr("save session", createErr)
	}

	// If the session saved but the clear fails, the marker outlives the
	// session and a restart would recover a phantom running clock. Retry
	// once; Load also reconciles any marker that still slips through.
	clearCtx, cancel := c.gatewayContext(ctx)
	clearErr := c.timers.ClearStart(clearCtx, c.code)
	cancel()
	if clearErr != nil {
		clearCtx, cancel = c.gatewayContext(ctx)
		clearErr = c.timers.ClearStart(clearCtx, c.code)
		cancel()
	}
	if clearErr != nil {
		c.logger.Warnf("clear timer marker: %v", clearErr)
	}

	c.stopTickerLocked()
	c.state = StateStopped
	c.startedAt = time.Time{}
	c.currentTime = duration.Zero
	if session != nil {
		c.history = append([]domain.WorkSession{*session}, c.history...)
	}
	c.refreshLocked(now)

	if createErr != nil {
		c.logger.Warnf("clock stopped without saved session: %v", createErr)
		return nil, c.snapshotLocked(), createErr
	}
	c.logger.WithField("session_id", session.ID).Info("clock stopped")
	return session, c.snapshotLocked(), nil
}

// Snapshot returns the current state, live elapsed time, cumulative total,
// and session history.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.refreshLocked(time.Now())
	}
	return c.snapshotLocked()
}

// Close cancels the tick goroutine, if any, and waits for it to drain.
func (c *Controller) Close() {
	c.mu.Lock()
	done := c.tickDone
	c.stopTickerLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Controller) settle(state State) {
	c.mu.Lock()
	c.state = state
	c.refreshLocked(time.Now())
	c.mu.Unlock()
}

// refreshLocked recomputes the display strings. Callers hold c.mu.
func (c *Controller) refreshLocked(now time.Time) {
	if c.state == StateRunning {
		elapsed := now.Sub(c.startedAt)
		c.currentTime = duration.Format(elapsed)
		c.totalDuration = duration.Total(c.history, elapsed, now)
		return
	}
	c.currentTime = duration.Zero
	c.totalDuration = duration.Total(c.history, 0, now)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         c.state,
		CurrentTime:   c.currentTime,
		TotalDuration: c.totalDuration,
		Sessions:      append([]domain.WorkSession(nil), c.history...),
	}
	if c.state == StateRunning {
		started := c.startedAt
		snap.StartedAt = &started
	}
	return snap
}

// startTickerLocked launches the periodic recompute goroutine bound to the
// Running state. Callers hold c.mu.
func (c *Controller) startTickerLocked() {
	if c.cancelTick != nil {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancelTick = cancel
	c.tickDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case now := <-ticker.C:
				c.tick(now)
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
		c.tickDone = nil
	}
}

// tick recomputes the live displays once. A tick that arrives during a
// transition waits on the mutex and then observes the new state, so it can
// never resurrect a stopped clock.
func (c *Controller) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("tick recompute skipped: %v", r)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}
	c.refreshLocked(now)
}

// markerCovered reports whether a saved session already closes the interval
// the marker opened at start.
func markerCovered(history []domain.WorkSession, start time.Time) bool {
	for _, s := range history {
		if s.EndTime != nil && !s.EndTime.Before(start) {
			return true
		}
	}
	return false
}

func (c *Controller) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.GatewayTimeout)
}

func wrapGatewayErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", op, domain.ErrPersistence)
	}
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPersistence)
}
