package calibration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var ErrNoSession = errors.New("no calibration session")

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

type Status struct {
	Id         string                           `json:"id"`
	Domain     store.Domain                     `json:"domain"`
	State      State                            `json:"state"`
	Progress   Progress                         `json:"progress"`
	StartedAt  time.Time                        `json:"startedAt"`
	FinishedAt *time.Time                       `json:"finishedAt,omitempty"`
	Error      string                           `json:"error,omitempty"`
	Table      []configuration.CalibrationPoint `json:"table,omitempty"`
}

type session struct {
	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.Table = append([]configuration.CalibrationPoint(nil), s.status.Table...)
	return status
}

// Sessions runs at most one calibration per domain in the background.
type Sessions struct {
	ctx    context.Context
	engine func() *Engine
	policy func() configuration.CalibrationConfig

	// domain -> latest session
	sessions cmap.ConcurrentMap[string, *session]
	startMu  sync.Mutex
}

// NewSessions creates a session manager, sessions are cancelled when ctx is done.
func NewSessions(ctx context.Context, engine func() *Engine, policy func() configuration.CalibrationConfig) *Sessions {
	return &Sessions{
		ctx:      ctx,
		engine:   engine,
		policy:   policy,
		sessions: cmap.New[*session](),
	}
}

// Start begins a calibration for domain, an empty sweep uses the configured one.
func (s *Sessions) Start(domain store.Domain, sweep []float64) (string, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if current, ok := s.sessions.Get(string(domain)); ok && current.snapshot().State == StateRunning {
		return "", ErrInProgress
	}
	if domain != store.DomainFan {
		return "", configuration.ErrConfigurationRejected
	}
	if err := configuration.ValidateSweep(sweep); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(s.ctx)
	current := &session{
		status: Status{
			Id:        uuid.New().String(),
			Domain:    domain,
			State:     StateRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions.Set(string(domain), current)

	engine := s.engine()
	engine.OnProgress = func(progress Progress) {
		current.mu.Lock()
		defer current.mu.Unlock()
		current.status.Progress = progress
	}

	id := current.status.Id
	go s.run(ctx, engine, current, domain, sweep)
	return id, nil
}

func (s *Sessions) run(ctx context.Context, engine *Engine, current *session, domain store.Domain, sweep []float64) {
	defer close(current.done)
	defer current.cancel()

	table, err := engine.Run(ctx, domain, sweep, s.policy())

	current.mu.Lock()
	finished := time.Now()
	current.status.FinishedAt = &finished
	switch {
	case err == nil:
		current.status.State = StateCompleted
		current.status.Table = table.Points()
	case errors.Is(err, ErrCancelled):
		current.status.State = StateCancelled
		current.status.Error = err.Error()
	default:
		current.status.State = StateFailed
		current.status.Error = err.Error()
	}
	current.mu.Unlock()

	switch {
	case err == nil:
		ui.InfoAndNotify("Calibration finished", "Measured %d levels for %s", len(table.Points()), domain)
	case errors.Is(err, ErrCancelled):
		ui.Info("Calibration of %s cancelled", domain)
	default:
		ui.ErrorAndNotify("Calibration failed", "Calibration of %s failed: %v", domain, err)
	}
}

// Cancel stops the running calibration of domain
func (s *Sessions) Cancel(domain store.Domain) error {
	current, ok := s.sessions.Get(string(domain))
	if !ok || current.snapshot().State != StateRunning {
		return ErrNoSession
	}
	current.cancel()
	return nil
}

// Status returns the state of the latest calibration of domain
func (s *Sessions) Status(domain store.Domain) (Status, bool) {
	current, ok := s.sessions.Get(string(domain))
	if !ok {
		return Status{}, false
	}
	return current.snapshot(), true
}

// Active reports whether any calibration is currently running
func (s *Sessions) Active() bool {
	for _, current := range s.sessions.Items() {
		if current.snapshot().State == StateRunning {
			return true
		}
	}
	return false
}

// Wait blocks until the latest calibration of domain has finished or ctx is done
func (s *Sessions) Wait(ctx context.Context, domain store.Domain) (Status, error) {
	current, ok := s.sessions.Get(string(domain))
	if !ok {
		return Status{}, ErrNoSession
	}
	select {
	case <-current.done:
		return current.snapshot(), nil
	case <-ctx.Done():
		return current.snapshot(), ctx.Err()
	}
}
