package timer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config tunes controller behavior shared across all user codes.
type Config struct {
	// TickInterval is the cadence of the live elapsed-time recompute.
	TickInterval time.Duration
	// GatewayTimeout bounds every session/timer gateway call.
	GatewayTimeout time.Duration
	Logger         *logrus.Logger
}

// Manager hands out one Controller per active user code and tears them all
// down on shutdown.
type Manager struct {
	cfg      Config
	sessions SessionGateway
	timers   TimerGateway

	mu          sync.Mutex
	controllers map[string]*managedController
}

// managedController pairs a controller with its own load lock, so one
// code's slow first load never blocks another code's request. A failed
// load leaves loaded false and the next caller retries.
type managedController struct {
	ctrl *Controller

	mu     sync.Mutex
	loaded bool
}

func NewManager(cfg Config, sessions SessionGateway, timers TimerGateway) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Manager{
		cfg:         cfg,
		sessions:    sessions,
		timers:      timers,
		controllers: make(map[string]*managedController),
	}
}

// Controller returns the controller for code, creating and loading it on
// first use. The manager lock only guards the map; the load itself runs
// under the per-code lock so concurrent requests for the same code share
// one instance and other codes proceed independently.
func (m *Manager) Controller(ctx context.Context, code string) (*Controller, error) {
	m.mu.Lock()
	entry, ok := m.controllers[code]
	if !ok {
		entry = &managedController{ctrl: newController(code, m.cfg, m.sessions, m.timers)}
		m.controllers[code] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.loaded {
		return entry.ctrl, nil
	}
	if err := entry.ctrl.Load(ctx); err != nil {
		return nil, err
	}
	entry.loaded = true
	return entry.ctrl, nil
}

// Shutdown closes every controller, cancelling their tick goroutines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, entry := range m.controllers {
		controllers = append(controllers, entry.ctrl)
	}
	m.controllers = make(map[string]*managedController)
	m.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
	m.cfg.Logger.Info("timer manager stopped")
}
