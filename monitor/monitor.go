// Package monitor watches the cache store and triggers warm-up after it
// recovers empty.
package monitor

import (
	"context"
	"sync"
	"time"

	Logger "github.com/postmux/postmux/utils/log"
)

// State of the monitor's probe machine.
type State string

const (
	StateHealthy    State = "HEALTHY"
	StateProbing    State = "PROBING"
	StateRecovering State = "RECOVERING"
)

// CacheProber is the health surface of the cache store.
type CacheProber interface {
	Ping(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
}

// Warmer repopulates the cache store.
type Warmer interface {
	WarmUp(ctx context.Context) error
}

type Config struct {
	// Name of the monitor module.
	Name string

	ProbeInterval time.Duration

	// Retry policy once a probe fails.
	RetryAttempts     int
	BackoffBase       time.Duration
	BackoffMultiplier float64
}

/*

Monitor probes the cache store on a fixed schedule. A failed ping moves it
to PROBING and retries with exponential backoff; once a ping succeeds after
a failure it checks whether the store came back empty and, if so, moves to
RECOVERING and runs the warmer before settling back to HEALTHY. Exhausted
retries leave the monitor degraded until the next scheduled probe.

The cache client layer can push a connection failure through
NotifyConnectionFailure to short-circuit into the retry path immediately
instead of waiting for the next tick.

*/
type Monitor struct {
	Config Config

	cache  CacheProber
	warmer Warmer

	notify chan struct{}

	m     sync.RWMutex
	state State
}

func NewMonitor(config Config, cache CacheProber, warmer Warmer) *Monitor {
	return &Monitor{
		Config: config,
		cache:  cache,
		warmer: warmer,
		notify: make(chan struct{}, 1),
		state:  StateHealthy,
	}
}

func (m *Monitor) RunModule(ctx context.Context) error {
	ticker := time.NewTicker(m.Config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		case <-m.notify:
			m.Probe(ctx)
		}
	}
}

// NotifyConnectionFailure requests an immediate probe. Non-blocking; a probe
// request already pending is enough.
func (m *Monitor) NotifyConnectionFailure() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// State returns the current probe state.
func (m *Monitor) State() State {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.state
}

// Probe runs one full probe cycle: ping, retry with backoff on failure, and
// recover the cache if it came back empty.
func (m *Monitor) Probe(ctx context.Context) {
	if err := m.cache.Ping(ctx); err == nil {
		// Still up. Only a recovery transition warrants the emptiness check.
		if m.State() != StateHealthy {
			m.recoverIfEmpty(ctx)
		}
		m.setState(StateHealthy)
		return
	}

	m.setState(StateProbing)
	backoff := m.Config.BackoffBase
	for attempt := 1; attempt <= m.Config.RetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * m.Config.BackoffMultiplier)

		if err := m.cache.Ping(ctx); err != nil {
			Logger.Log.Errorf("cache store still unreachable (attempt %d/%d): %v",
				attempt, m.Config.RetryAttempts, err)
			continue
		}
		m.recoverIfEmpty(ctx)
		m.setState(StateHealthy)
		return
	}

	// Stay degraded; the next scheduled probe tries again.
	Logger.Log.Errorf("cache store unreachable after %d attempts, staying degraded", m.Config.RetryAttempts)
}

// recoverIfEmpty triggers warm-up when the store holds no keys at all, which
// is the signature of a restart with lost state.
func (m *Monitor) recoverIfEmpty(ctx context.Context) {
	size, err := m.cache.Size(ctx)
	if err != nil {
		Logger.Log.Errorf("fail to size cache store after recovery: %v", err)
		return
	}
	if size > 0 {
		return
	}

	m.setState(StateRecovering)
	Logger.Log.Infoln("cache store recovered empty, starting warm-up")
	if err := m.warmer.WarmUp(ctx); err != nil {
		Logger.Log.Errorf("warm-up after cache recovery failed: %v", err)
	}
}

func (m *Monitor) setState(state State) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.state != state {
		Logger.Log.Infof("cache monitor %s -> %s", m.state, state)
	}
	m.state = state
}

func (m *Monitor) Name() string {
	return m.Config.Name
}

func (m *Monitor) Shutdown() {
	Logger.Log.Infoln("Module ", m.Config.Name, " gracefully shutdown")
}
