package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("credentials")

const (
	// DefaultRefreshInterval is the time between two token generations
	DefaultRefreshInterval = 8 * time.Minute

	// StopGracePeriod bounds how long Stop waits for a running refresh
	StopGracePeriod = 5 * time.Second
)

// TokenGenerator creates a new authentication token
type TokenGenerator interface {
	GenerateToken(ctx context.Context) (string, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithRefreshInterval overrides DefaultRefreshInterval
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock replaces the wall clock, used by tests
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// Manager caches a token and refreshes it periodically
type Manager struct {
	gen      TokenGenerator
	interval time.Duration
	clock    clock.Clock

	mu    sync.RWMutex
	token string

	// background task state, guarded by taskMu
	taskMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager and generates the initial token. The refresh
// loop is not running until Start is called.
func NewManager(ctx context.Context, gen TokenGenerator, opts ...Option) (*Manager, error) {
	m := &Manager{
		gen:      gen,
		interval: DefaultRefreshInterval,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}

	token, err := gen.GenerateToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate initial token")
	}
	m.token = token

	return m, nil
}

// Token returns the cached token
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Interval returns the refresh interval
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// Refresh generates a new token immediately. The cached token is kept if
// generation fails.
func (m *Manager) Refresh(ctx context.Context) error {
	token, err := m.gen.GenerateToken(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to refresh token")
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Start launches the background refresh loop. It is a no-op if the loop is
// already running. The first refresh happens one interval after Start.
func (m *Manager) Start() {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	if m.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	// the ticker is created before the goroutine so no tick can be missed
	ticker := m.clock.Ticker(m.interval)

	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, ticker, m.done)

	Logger.Infof("token refresh started (interval %s)", m.interval)
}

// Stop ends the refresh loop and waits for it to exit, at most
// StopGracePeriod or until ctx is done
func (m *Manager) Stop(ctx context.Context) error {
	m.taskMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.taskMu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	grace := m.clock.Timer(StopGracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		return nil
	case <-grace.C:
		return errors.New("token refresh did not stop within grace period")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run refreshes the token on every tick until ctx is canceled
func (m *Manager) run(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				Logger.Errorf("%v, keeping previous token", err)
				continue
			}
			Logger.Debugf("token refreshed")
		case <-ctx.Done():
			return
		}
	}
}
