package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/events"
)

type fakeConn struct {
	mu        sync.Mutex
	written   [][]byte
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// drop simulates the remote side closing the socket.
func (c *fakeConn) drop() {
	close(c.inbound)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []Conn
	calls int
	gate  chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, _ http.Header) (Conn, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) push(conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conn)
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{}
	c.delays = append(c.delays, d)
	c.funcs = append(c.funcs, f)
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	f := c.funcs[i]
	c.mu.Unlock()
	f()
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

func newTestManager(t *testing.T, dialer Dialer, clock *fakeClock) *Manager {
	t.Helper()
	return NewManager(Options{
		URL:       "ws://chat.test/ws",
		Dialer:    dialer,
		Logger:    zaptest.NewLogger(t),
		AfterFunc: clock.AfterFunc,
	})
}

func decodeFrame(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(frame, &out))
	return out
}

func TestManagerConnectSendsIdentify(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []Conn{conn}}
	m := newTestManager(t, dialer, &fakeClock{})
	defer m.Teardown()

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	assert.Equal(t, StateOpen, m.State())

	frames := conn.frames()
	require.Len(t, frames, 1)
	identify := decodeFrame(t, frames[0])
	assert.Equal(t, "identify", identify["type"])
	assert.Equal(t, "u1", identify["participantId"])
	assert.Equal(t, "customer", identify["role"])

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	assert.Equal(t, 1, dialer.callCount())
}

func TestManagerSendPreservesOrder(t *testing.T) {
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []Conn{conn}}, &fakeClock{})
	defer m.Teardown()
	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, m.Send(events.SendMessageEvent{ParticipantID: "u1", ChatCategory: domain.CategorySales, Body: body}))
	}

	require.Eventually(t, func() bool { return len(conn.frames()) == 4 }, time.Second, 5*time.Millisecond)
	frames := conn.frames()
	for i, body := range []string{"one", "two", "three"} {
		assert.Equal(t, body, decodeFrame(t, frames[i+1])["body"])
	}
}

func TestManagerSendWhenClosedIsDropped(t *testing.T) {
	m := newTestManager(t, &fakeDialer{}, &fakeClock{})
	err := m.Send(events.MarkReadEvent{ParticipantID: "u1", ChatCategory: domain.CategorySales})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManagerDispatchesInbound(t *testing.T) {
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []Conn{conn}}, &fakeClock{})
	defer m.Teardown()

	got := make(chan events.Event, 2)
	m.Registry().Register(events.EventError, func(_ context.Context, ev events.Event) error {
		got <- ev
		return nil
	})
	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))

	conn.inbound <- []byte(`{"garbage`)
	conn.inbound <- []byte(`{"type":"error","message":"ticket closed"}`)

	select {
	case ev := <-got:
		assert.Equal(t, events.ErrorEvent{Message: "ticket closed"}, ev)
	case <-time.After(time.Second):
		t.Fatal("error event was not dispatched")
	}
}

func TestManagerReconnectBackoffIsBounded(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []Conn{conn}}
	clock := &fakeClock{}
	m := newTestManager(t, dialer, clock)
	defer m.Teardown()

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	conn.drop()

	require.Eventually(t, func() bool { return len(clock.scheduled()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateClosed, m.State())

	for i := 0; i < DefaultMaxAttempts; i++ {
		clock.fire(i)
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}, clock.scheduled())

	status := m.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.Equal(t, DefaultMaxAttempts, status.Attempt)
	assert.True(t, status.Exhausted)
	assert.Equal(t, 1+DefaultMaxAttempts, dialer.callCount())
}

func TestManagerSuccessfulReconnectResetsAttempts(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{conns: []Conn{first}}
	clock := &fakeClock{}
	m := newTestManager(t, dialer, clock)
	defer m.Teardown()

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleAgent))
	first.drop()
	require.Eventually(t, func() bool { return len(clock.scheduled()) == 1 }, time.Second, 5*time.Millisecond)

	clock.fire(0)
	assert.Equal(t, 2, m.Status().Attempt)

	dialer.push(second)
	clock.fire(1)

	status := m.Status()
	assert.Equal(t, StateOpen, status.State)
	assert.Zero(t, status.Attempt)
	require.Len(t, second.frames(), 1)
	assert.Equal(t, "identify", decodeFrame(t, second.frames()[0])["type"])
}

func TestManagerManualConnectAfterExhaustion(t *testing.T) {
	clock := &fakeClock{}
	dialer := &fakeDialer{}
	m := newTestManager(t, dialer, clock)
	defer m.Teardown()

	err := m.Connect(context.Background(), "u1", domain.RoleCustomer)
	require.Error(t, err)
	assert.Equal(t, StateClosed, m.State())
	require.Len(t, clock.scheduled(), 1)

	for i := 0; i < DefaultMaxAttempts; i++ {
		clock.fire(i)
	}
	assert.True(t, m.Status().Exhausted)

	conn := newFakeConn()
	dialer.push(conn)
	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	status := m.Status()
	assert.Equal(t, StateOpen, status.State)
	assert.False(t, status.Exhausted)
}

func TestManagerRejectsConcurrentConnect(t *testing.T) {
	gate := make(chan struct{})
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []Conn{conn}, gate: gate}
	m := newTestManager(t, dialer, &fakeClock{})
	defer m.Teardown()

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background(), "u1", domain.RoleCustomer) }()

	require.Eventually(t, func() bool { return m.State() == StateConnecting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, m.Connect(context.Background(), "u1", domain.RoleCustomer), ErrConnectInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateOpen, m.State())
}

func TestManagerTeardownCancelsReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []Conn{conn}}
	clock := &fakeClock{}
	m := newTestManager(t, dialer, clock)
	m.Registry().Register(events.EventNewMessage, func(context.Context, events.Event) error { return nil })

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	conn.drop()
	require.Eventually(t, func() bool { return len(clock.scheduled()) == 1 }, time.Second, 5*time.Millisecond)

	m.Teardown()
	assert.True(t, clock.timer(0).stopped)
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, m.Registry().Len(events.EventNewMessage))

	clock.fire(0)
	assert.Equal(t, 1, dialer.callCount())
	assert.Equal(t, StateIdle, m.State())

	m.Teardown()
}

func TestWebsocketDialerRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- frame
			if frame["type"] == "send_message" {
				_ = conn.WriteJSON(map[string]any{
					"type": "message_confirmed",
					"message": map[string]any{
						"id": "abc123", "participantId": "u1", "chatCategory": "sales",
						"body": frame["body"], "sender": "customer", "sentAt": time.Now().UTC(),
					},
				})
			}
		}
	}))
	defer srv.Close()

	confirmed := make(chan events.MessageConfirmedEvent, 1)
	m := NewManager(Options{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		Header: http.Header{"Authorization": []string{"Bearer token-1"}},
		Logger: zaptest.NewLogger(t),
	})
	defer m.Teardown()
	m.Registry().Register(events.EventMessageConfirmed, func(_ context.Context, ev events.Event) error {
		confirmed <- ev.(events.MessageConfirmedEvent)
		return nil
	})

	require.NoError(t, m.Connect(context.Background(), "u1", domain.RoleCustomer))
	require.NoError(t, m.Send(events.SendMessageEvent{ParticipantID: "u1", ChatCategory: domain.CategorySales, Body: "Hello"}))

	assert.Equal(t, "identify", (<-received)["type"])
	assert.Equal(t, "send_message", (<-received)["type"])

	select {
	case ev := <-confirmed:
		assert.Equal(t, "abc123", ev.Message.ID)
		assert.Equal(t, "Hello", ev.Message.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation not dispatched")
	}
}
