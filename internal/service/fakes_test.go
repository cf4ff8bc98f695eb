package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/transport"
)

var baseTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu         sync.Mutex
	registry   *events.Registry
	sent       []events.Event
	connected  bool
	connectErr error
	tornDown   bool
	onOpen     func()
}

func newFakeTransport(t *testing.T) *fakeTransport {
	return &fakeTransport{registry: events.NewRegistry(zaptest.NewLogger(t))}
}

func (f *fakeTransport) Connect(context.Context, string, domain.Role) error {
	f.mu.Lock()
	if f.connectErr != nil {
		f.mu.Unlock()
		return f.connectErr
	}
	f.connected = true
	onOpen := f.onOpen
	f.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
	return nil
}

func (f *fakeTransport) Send(ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeTransport) Teardown() {
	f.mu.Lock()
	f.tornDown = true
	f.connected = false
	f.mu.Unlock()
	f.registry.Clear()
}

func (f *fakeTransport) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return transport.Status{State: transport.StateOpen}
	}
	return transport.Status{State: transport.StateClosed}
}

func (f *fakeTransport) Registry() *events.Registry {
	return f.registry
}

func (f *fakeTransport) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeTransport) sentOfType(t events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, ev := range f.sent {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeTransport) dispatch(ev events.Event) {
	f.registry.Dispatch(context.Background(), ev)
}

type fakeAPI struct {
	mu            sync.Mutex
	openTicket    *domain.Ticket
	history       []domain.Message
	tickets       []domain.Ticket
	conversations map[domain.ChatCategory][]domain.Conversation
	calls         map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{conversations: map[domain.ChatCategory][]domain.Conversation{}, calls: map[string]int{}}
}

func (a *fakeAPI) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func (a *fakeAPI) History(context.Context, domain.ConversationKey) ([]domain.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["history"]++
	return a.history, nil
}

func (a *fakeAPI) OpenTicket(context.Context, string) (*domain.Ticket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["open_ticket"]++
	return a.openTicket, nil
}

func (a *fakeAPI) ListTickets(context.Context, string) ([]domain.Ticket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["list_tickets"]++
	return a.tickets, nil
}

func (a *fakeAPI) ActiveConversations(_ context.Context, category domain.ChatCategory) ([]domain.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["active_conversations"]++
	return a.conversations[category], nil
}

// uploaderFunc adapts a function to media.Uploader.
type uploaderFunc func(ctx context.Context, file media.LocalFile, body io.Reader) (media.Stored, error)

func (f uploaderFunc) Upload(ctx context.Context, file media.LocalFile, body io.Reader) (media.Stored, error) {
	return f(ctx, file, body)
}

var errStorageDown = errors.New("storage down")

type sessionFixture struct {
	session   *ChatSession
	transport *fakeTransport
	api       *fakeAPI
	clock     *time.Time
}

func newSession(t *testing.T, role domain.Role, uploader media.Uploader) *sessionFixture {
	t.Helper()
	ft := newFakeTransport(t)
	api := newFakeAPI()
	now := baseTime
	logger := zaptest.NewLogger(t)
	s := NewChatSession(ChatSessionDependencies{
		ID:        "s1",
		Principal: domain.Principal{ParticipantID: participantFor(role), Role: role, Token: "tok"},
		Transport: ft,
		API:       api,
		Media:     media.NewPipeline(media.PipelineOptions{Uploader: uploader, Logger: logger}),
		Logger:    logger,
		Now:       func() time.Time { return now },
	})
	s.Notifications().RegisterHandlers(ft.registry)
	return &sessionFixture{session: s, transport: ft, api: api, clock: &now}
}

func participantFor(role domain.Role) string {
	if role == domain.RoleAgent {
		return "agent-1"
	}
	return "u1"
}

func confirmed(id, participant string, category domain.ChatCategory, ticketID *string, sender domain.Role, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:            id,
		ParticipantID: participant,
		ChatCategory:  category,
		TicketID:      ticketID,
		Body:          body,
		Sender:        sender,
		SentAt:        at,
	}
}
