package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/observability"
)

// State is the socket lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

var (
	ErrConnectInFlight = errors.New("transport: connect already in progress")
	ErrNotConnected    = errors.New("transport: socket is not open")
	ErrTornDown        = errors.New("transport: manager was torn down")
)

const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultConnectTimeout = 15 * time.Second

	outboundBuffer = 64
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Manager.
type Options struct {
	URL            string
	Header         http.Header
	Dialer         Dialer
	Registry       *events.Registry
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	ConnectTimeout time.Duration
	// SendRate limits outbound events per second. Zero disables pacing.
	SendRate  float64
	SendBurst int
	AfterFunc AfterFunc
	// OnStateChange is called outside the manager lock after each transition.
	OnStateChange func(State)
}

// Status is a point-in-time view of the connection.
type Status struct {
	State     State `json:"state"`
	Attempt   int   `json:"reconnectAttempt"`
	Exhausted bool  `json:"reconnectExhausted"`
}

// Manager owns one websocket per chat session and its reconnection policy.
type Manager struct {
	opts     Options
	logger   *zap.Logger
	registry *events.Registry
	limiter  *rate.Limiter

	mu            sync.Mutex
	state         State
	participantID string
	role          domain.Role
	attempt       int
	exhausted     bool
	generation    uint64
	policy        backoff.BackOff
	timer         Timer
	link          *link
}

type link struct {
	conn     Conn
	outbound chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		l.cancel()
		_ = l.conn.Close()
	})
}

// NewManager builds an idle manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = events.NewRegistry(opts.Logger)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = systemAfterFunc
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{HandshakeTimeout: opts.ConnectTimeout}
	}

	m := &Manager{
		opts:     opts,
		logger:   opts.Logger,
		registry: opts.Registry,
		state:    StateIdle,
		policy:   newReconnectPolicy(opts.BaseDelay, opts.MaxDelay, opts.MaxAttempts),
	}
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}
	return m
}

// newReconnectPolicy doubles from base up to max and stops after maxAttempts.
func newReconnectPolicy(base, maxDelay time.Duration, maxAttempts int) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(maxAttempts))
}

// Registry returns the dispatch table fed by this manager.
func (m *Manager) Registry() *events.Registry {
	return m.registry
}

// Status reports the current state and reconnection counters.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Attempt: m.attempt, Exhausted: m.exhausted}
}

// State reports the socket state.
func (m *Manager) State() State {
	return m.Status().State
}

// Connect opens the socket and sends identify. It returns immediately when
// already open and fails with ErrConnectInFlight while another attempt runs.
// A manual call starts a fresh reconnection budget.
func (m *Manager) Connect(ctx context.Context, participantID string, role domain.Role) error {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		m.mu.Unlock()
		return nil
	case StateConnecting:
		m.mu.Unlock()
		return ErrConnectInFlight
	}
	m.participantID = participantID
	m.role = role
	m.exhausted = false
	m.attempt = 0
	m.policy.Reset()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	gen := m.generation
	m.state = StateConnecting
	m.mu.Unlock()
	m.notify(StateConnecting)

	return m.dial(ctx, gen)
}

// dial runs one handshake. The caller has already moved to Connecting.
func (m *Manager) dial(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	participantID, role := m.participantID, m.role
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	conn, err := m.opts.Dialer.Dial(dialCtx, m.opts.URL, m.opts.Header)
	if err == nil {
		err = m.identify(conn, participantID, role)
		if err != nil {
			_ = conn.Close()
		}
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return ErrTornDown
	}
	if err != nil {
		m.state = StateClosed
		m.scheduleReconnectLocked(gen)
		m.mu.Unlock()
		m.logger.Warn("chat socket handshake failed",
			zap.String("participant_id", participantID),
			zap.Error(err))
		m.notify(StateClosed)
		return fmt.Errorf("transport: connect: %w", err)
	}

	linkCtx, linkCancel := context.WithCancel(context.Background())
	l := &link{
		conn:     conn,
		outbound: make(chan []byte, outboundBuffer),
		ctx:      linkCtx,
		cancel:   linkCancel,
	}
	m.link = l
	m.state = StateOpen
	m.attempt = 0
	m.exhausted = false
	m.policy.Reset()
	m.mu.Unlock()

	go m.writeLoop(gen, l)
	go m.readLoop(gen, l)

	m.logger.Info("chat socket open",
		zap.String("participant_id", participantID),
		zap.String("role", string(role)))
	m.notify(StateOpen)
	return nil
}

func (m *Manager) identify(conn Conn, participantID string, role domain.Role) error {
	frame, err := events.Encode(events.IdentifyEvent{ParticipantID: participantID, Role: role})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	m.opts.Metrics.RecordEvent("out", string(events.EventIdentify))
	return nil
}

// scheduleReconnectLocked arms the next reconnection timer if attempts remain.
func (m *Manager) scheduleReconnectLocked(gen uint64) {
	delay := m.policy.NextBackOff()
	if delay == backoff.Stop {
		m.exhausted = true
		m.opts.Metrics.RecordReconnect("exhausted")
		m.logger.Warn("chat socket reconnection exhausted",
			zap.String("participant_id", m.participantID),
			zap.Int("attempt", m.attempt))
		return
	}
	m.attempt++
	attempt := m.attempt
	m.opts.Metrics.RecordReconnect("scheduled")
	m.logger.Info("chat socket reconnect scheduled",
		zap.String("participant_id", m.participantID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	m.timer = m.opts.AfterFunc(delay, func() { m.reconnect(gen) })
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.state = StateConnecting
	m.mu.Unlock()
	m.notify(StateConnecting)

	_ = m.dial(context.Background(), gen)
}

func (m *Manager) writeLoop(gen uint64, l *link) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case frame := <-l.outbound:
			if m.limiter != nil {
				if err := m.limiter.Wait(l.ctx); err != nil {
					return
				}
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.handleDrop(gen, l, err)
				return
			}
		}
	}
}

func (m *Manager) readLoop(gen uint64, l *link) {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			m.handleDrop(gen, l, err)
			return
		}
		ev, err := events.Decode(data)
		if err != nil {
			m.logger.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		m.opts.Metrics.RecordEvent("in", string(ev.Type()))
		m.registry.Dispatch(l.ctx, ev)
	}
}

// handleDrop moves an open link to Closed and starts the reconnection policy.
func (m *Manager) handleDrop(gen uint64, l *link, cause error) {
	m.mu.Lock()
	if gen != m.generation || m.link != l {
		m.mu.Unlock()
		return
	}
	l.close()
	m.link = nil
	m.state = StateClosed
	m.scheduleReconnectLocked(gen)
	m.mu.Unlock()

	m.logger.Warn("chat socket closed", zap.Error(cause))
	m.notify(StateClosed)
}

// Send queues ev for the socket. When the socket is not open the event is
// dropped and ErrNotConnected is returned. Calls from one goroutine reach the
// wire in call order.
func (m *Manager) Send(ev events.Event) error {
	m.mu.Lock()
	l := m.link
	open := m.state == StateOpen && l != nil
	m.mu.Unlock()

	if !open {
		m.opts.Metrics.RecordEvent("dropped", string(ev.Type()))
		m.logger.Warn("dropping outbound event, socket not open",
			zap.String("event_type", string(ev.Type())))
		return ErrNotConnected
	}

	frame, err := events.Encode(ev)
	if err != nil {
		return err
	}
	select {
	case l.outbound <- frame:
		m.opts.Metrics.RecordEvent("out", string(ev.Type()))
		return nil
	case <-l.ctx.Done():
		m.opts.Metrics.RecordEvent("dropped", string(ev.Type()))
		return ErrNotConnected
	}
}

// Teardown closes the socket, cancels any reconnection and clears the
// dispatch table. It is safe to call in any state.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.link != nil {
		m.link.close()
		m.link = nil
	}
	changed := m.state != StateIdle
	participantID := m.participantID
	m.state = StateIdle
	m.attempt = 0
	m.exhausted = false
	m.policy.Reset()
	m.mu.Unlock()

	m.registry.Clear()
	if changed {
		m.logger.Info("chat socket torn down", zap.String("participant_id", participantID))
		m.notify(StateIdle)
	}
}

func (m *Manager) notify(state State) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(state)
	}
}
