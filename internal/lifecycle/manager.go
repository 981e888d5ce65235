// Package lifecycle drives the messaging client through QR pairing,
// authentication and bounded automatic reconnection.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/config"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
)

var (
	ErrInitInProgress   = errors.New("initialization already in progress")
	ErrRetriesExhausted = errors.New("maximum initialization retries reached")
	ErrAuthFailure      = errors.New("authentication failed")
	ErrDisconnected     = errors.New("client disconnected during initialization")
	ErrInitTimeout      = errors.New("initialization timed out")
	ErrShutdown         = errors.New("connection manager is shut down")
)

type outcome struct {
	qr  string
	err error
}

// attempt is the single in-flight initialization. Its presence on the
// manager is the busy flag.
type attempt struct {
	done chan outcome
	once sync.Once
}

func (a *attempt) resolve(o outcome) {
	a.once.Do(func() { a.done <- o })
}

type Manager struct {
	client messaging.Client
	cfg    config.LifecycleConfig
	log    zerolog.Logger

	mu        sync.Mutex
	st        state
	pending   *attempt
	reconnect *time.Timer
	closed    bool
}

// NewManager subscribes to the lifecycle events on bus; client must emit there.
func NewManager(client messaging.Client, bus *messaging.Bus, cfg config.LifecycleConfig, log zerolog.Logger) *Manager {
	m := &Manager{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "lifecycle").Logger(),
	}
	m.st.setPhase(PhaseUninitialized)
	bus.Subscribe(m.onEvent)
	return m
}

// Initialize starts a fresh client session and waits for the first outcome.
// It returns the QR code to scan, or "" when the client authenticated with a
// stored session or was already authenticated.
func (m *Manager) Initialize(ctx context.Context) (string, error) {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return "", ErrShutdown
	case m.pending != nil:
		m.mu.Unlock()
		return "", ErrInitInProgress
	case m.st.authenticated:
		m.mu.Unlock()
		return "", nil
	case m.st.retryCount >= m.cfg.MaxRetries:
		m.mu.Unlock()
		m.log.Error().Int("max_retries", m.cfg.MaxRetries).Msg("max initialization retries reached")
		metrics.InitAttempts.WithLabelValues("refused").Inc()
		return "", ErrRetriesExhausted
	}
	a := &attempt{done: make(chan outcome, 1)}
	m.pending = a
	m.stopReconnectLocked()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.pending == a {
			m.pending = nil
		}
		m.mu.Unlock()
	}()

	if m.client.Live() {
		m.log.Info().Msg("destroying existing client instance")
		if err := m.client.Disconnect(ctx); err != nil {
			m.log.Error().Err(err).Msg("error destroying existing client")
		}
	}

	m.mu.Lock()
	m.st.clear()
	m.st.retryCount++
	n := m.st.retryCount
	m.st.setPhase(PhaseInitializing)
	m.mu.Unlock()

	m.log.Info().Int("attempt", n).Int("max_retries", m.cfg.MaxRetries).Msg("initializing WhatsApp client")

	if err := m.client.Connect(ctx); err != nil {
		m.mu.Lock()
		m.st.setPhase(PhaseDisconnected)
		m.mu.Unlock()
		metrics.InitAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("start client: %w", err)
	}

	timer := time.NewTimer(m.cfg.InitTimeout)
	defer timer.Stop()

	select {
	case o := <-a.done:
		switch {
		case o.err != nil:
			metrics.InitAttempts.WithLabelValues("error").Inc()
		case o.qr != "":
			metrics.InitAttempts.WithLabelValues("qr").Inc()
		default:
			metrics.InitAttempts.WithLabelValues("authenticated").Inc()
		}
		return o.qr, o.err
	case <-timer.C:
		metrics.InitAttempts.WithLabelValues("timeout").Inc()
		m.log.Warn().Dur("timeout", m.cfg.InitTimeout).Msg("initialization timed out")
		return "", ErrInitTimeout
	case <-ctx.Done():
		metrics.InitAttempts.WithLabelValues("canceled").Inc()
		return "", ctx.Err()
	}
}

// Bootstrap is the startup attempt: a stored session comes up on its own,
// otherwise the attempt is torn down and pairing waits for a manual request.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.log.Info().Msg("attempting auto-initialization")

	qr, err := m.Initialize(ctx)
	switch {
	case err != nil:
		m.log.Error().Err(err).Msg("auto-initialization failed, waiting for manual authentication")
	case qr == "":
		m.log.Info().Msg("client auto-initialized with existing session")
	default:
		m.log.Info().Msg("no existing session found, waiting for manual authentication")
		if err := m.client.Disconnect(ctx); err != nil {
			m.log.Error().Err(err).Msg("error destroying client after auto-initialization")
		}
		m.mu.Lock()
		m.st.clear()
		m.st.setPhase(PhaseUninitialized)
		m.mu.Unlock()
	}
}

func (m *Manager) onEvent(evt messaging.Event) {
	switch evt.Kind {
	case messaging.EventQR:
		code, _ := arg[string](evt.Args)
		m.onQR(code)
	case messaging.EventAuthenticated:
		m.onAuthenticated(false)
	case messaging.EventReady:
		m.onAuthenticated(true)
	case messaging.EventAuthFailure:
		m.onAuthFailure(evt.Args)
	case messaging.EventDisconnected:
		reason, _ := arg[string](evt.Args)
		m.onDisconnected(reason)
	}
}

func (m *Manager) onQR(code string) {
	if code == "" {
		return
	}
	m.mu.Lock()
	a := m.pending
	// A QR outside an attempt is either a refresh or a leftover from a torn
	// down client.
	if a == nil && m.st.phase != PhaseQRPending {
		m.mu.Unlock()
		return
	}
	m.st.showQR(code)
	m.mu.Unlock()

	m.log.Info().Msg("new QR code received")
	if a != nil {
		a.resolve(outcome{qr: code})
	}
}

func (m *Manager) onAuthenticated(ready bool) {
	m.mu.Lock()
	m.st.markAuthenticated(ready)
	a := m.pending
	m.mu.Unlock()

	if ready {
		m.log.Info().Msg("client is ready")
	} else {
		m.log.Info().Msg("client authenticated")
	}
	if a != nil {
		a.resolve(outcome{})
	}
}

func (m *Manager) onAuthFailure(args []any) {
	reason := "unknown"
	if err, ok := arg[error](args); ok && err != nil {
		reason = err.Error()
	} else if s, ok := arg[string](args); ok {
		reason = s
	}

	m.mu.Lock()
	m.st.clear()
	m.st.setPhase(PhaseDisconnected)
	a := m.pending
	m.mu.Unlock()

	m.log.Error().Str("reason", reason).Msg("authentication failure")
	if a != nil {
		a.resolve(outcome{err: fmt.Errorf("%w: %s", ErrAuthFailure, reason)})
	}
}

func (m *Manager) onDisconnected(reason string) {
	m.mu.Lock()
	m.st.clear()
	m.st.setPhase(PhaseDisconnected)
	a := m.pending
	scheduled := false
	if !m.closed && m.st.retryCount < m.cfg.MaxRetries {
		m.scheduleReconnectLocked()
		scheduled = true
	}
	retries := m.st.retryCount
	m.mu.Unlock()

	m.log.Warn().Str("reason", reason).Msg("client disconnected")
	if a != nil {
		a.resolve(outcome{err: fmt.Errorf("%w: %s", ErrDisconnected, reason)})
	}
	if scheduled {
		m.log.Info().Dur("delay", m.cfg.RetryDelay).Msg("attempting to reconnect")
	} else if retries >= m.cfg.MaxRetries {
		m.log.Error().Int("retries", retries).Msg("reconnect budget exhausted, manual intervention required")
	}
}

// scheduleReconnectLocked keeps at most one reconnect timer armed.
func (m *Manager) scheduleReconnectLocked() {
	m.stopReconnectLocked()
	m.reconnect = time.AfterFunc(m.cfg.RetryDelay, m.runReconnect)
	metrics.Reconnects.Inc()
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) runReconnect() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("reconnect panicked")
		}
	}()

	m.mu.Lock()
	m.reconnect = nil
	m.mu.Unlock()

	ctx := context.Background()
	_, err := m.Initialize(ctx)
	if err == nil || errors.Is(err, ErrInitInProgress) || errors.Is(err, ErrShutdown) {
		return
	}
	m.log.Error().Err(err).Msg("reconnection failed")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.st.authenticated || m.pending != nil || m.reconnect != nil {
		return
	}
	if m.st.retryCount < m.cfg.MaxRetries {
		m.scheduleReconnectLocked()
		return
	}
	m.log.Error().Int("retries", m.st.retryCount).Msg("reconnect budget exhausted, manual intervention required")
}

// ResetRetries restores the full retry budget.
func (m *Manager) ResetRetries() {
	m.mu.Lock()
	m.st.retryCount = 0
	m.mu.Unlock()
	m.log.Info().Msg("retry counter reset")
}

func (m *Manager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.status()
}

// State reports the client's own connection state, DISCONNECTED until the
// client has become ready.
func (m *Manager) State(ctx context.Context) string {
	m.mu.Lock()
	initialized := m.st.initialized
	m.mu.Unlock()

	if !initialized {
		return "DISCONNECTED"
	}
	s, err := m.client.State(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("failed to read client state")
		return "DISCONNECTED"
	}
	return s
}

func (m *Manager) CurrentQR() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.currentQR
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.phase
}

func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.retryCount
}

// Shutdown cancels any pending reconnect and destroys the client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.stopReconnectLocked()
	m.mu.Unlock()

	if !m.client.Live() {
		return nil
	}
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("destroy client: %w", err)
	}
	return nil
}

func arg[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}
