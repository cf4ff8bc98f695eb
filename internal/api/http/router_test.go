package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/api/http/handlers"
	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/observability"
	"github.com/spec-kit/storefront-chat/internal/service"
	"github.com/spec-kit/storefront-chat/internal/transport"
)

type stubTransport struct {
	mu       sync.Mutex
	registry *events.Registry
	open     bool
	sent     []events.Event
}

func (s *stubTransport) Connect(context.Context, string, domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *stubTransport) Send(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return transport.ErrNotConnected
	}
	s.sent = append(s.sent, ev)
	return nil
}

func (s *stubTransport) Teardown() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	s.registry.Clear()
}

func (s *stubTransport) Status() transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return transport.Status{State: transport.StateOpen}
	}
	return transport.Status{State: transport.StateIdle}
}

func (s *stubTransport) Registry() *events.Registry { return s.registry }

type stubAPI struct{}

func (stubAPI) History(context.Context, domain.ConversationKey) ([]domain.Message, error) {
	return nil, nil
}

func (stubAPI) OpenTicket(context.Context, string) (*domain.Ticket, error) { return nil, nil }

func (stubAPI) ListTickets(context.Context, string) ([]domain.Ticket, error) { return nil, nil }

func (stubAPI) ActiveConversations(context.Context, domain.ChatCategory) ([]domain.Conversation, error) {
	return nil, nil
}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	registry := service.NewSessionRegistry(func(id string, principal domain.Principal) (*service.ChatSession, error) {
		return service.NewChatSession(service.ChatSessionDependencies{
			ID:        id,
			Principal: principal,
			Transport: &stubTransport{registry: events.NewRegistry(logger)},
			API:       stubAPI{},
			Media:     media.NewPipeline(media.PipelineOptions{Logger: logger}),
			Logger:    logger,
		}), nil
	}, logger)
	t.Cleanup(registry.CloseAll)

	tokens := auth.NewTokenManager("test-secret", 5)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("storefront-chat", "test", nil, nil, metrics, registry.Len),
		Sessions:       handlers.NewSessionsHandler(registry),
		Messages:       handlers.NewMessagesHandler(registry),
		Tickets:        handlers.NewTicketsHandler(registry),
		Conversations:  handlers.NewConversationsHandler(registry),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, participantID string, role domain.Role) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateToken(participantID, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, nethttp.MethodGet, "/health/live", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, nethttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = srv.do(t, nethttp.MethodGet, "/metrics", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.EqualValues(t, 0, body["sessions"])

	status, body = srv.do(t, nethttp.MethodGet, "/nope", "", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestCustomerSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	customer := srv.token(t, "u1", domain.RoleCustomer)
	stranger := srv.token(t, "u2", domain.RoleCustomer)

	status, body := srv.do(t, nethttp.MethodPost, "/sessions", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = srv.do(t, nethttp.MethodPost, "/sessions", customer, "")
	require.Equal(t, nethttp.StatusCreated, status)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, "open", data["connection"].(map[string]any)["state"])
	base := "/sessions/" + id

	status, body = srv.do(t, nethttp.MethodGet, base, stranger, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, nethttp.MethodPost, base+"/category", customer, `{"category":"support"}`)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["ticketRequired"])

	status, body = srv.do(t, nethttp.MethodPost, base+"/messages", customer, `{"body":"help"}`)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "TICKET_REQUIRED", errorCode(body))

	status, _ = srv.do(t, nethttp.MethodPost, base+"/category", customer, `{"category":"returns"}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, _ = srv.do(t, nethttp.MethodPost, base+"/category", customer, `{"category":"sales"}`)
	require.Equal(t, nethttp.StatusOK, status)

	status, body = srv.do(t, nethttp.MethodPost, base+"/messages", customer, `{"body":"hi","files":[{"path":"/tmp/x.txt","name":"x.txt","size_bytes":3}]}`)
	require.Equal(t, nethttp.StatusAccepted, status)
	data = body["data"].(map[string]any)
	msg := data["message"].(map[string]any)
	assert.True(t, domain.IsTemporaryID(msg["id"].(string)))
	assert.Len(t, data["rejected"], 1)

	status, body = srv.do(t, nethttp.MethodGet, base+"/messages", customer, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, nethttp.MethodGet, base+"/conversations", customer, "")
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = srv.do(t, nethttp.MethodDelete, base, customer, "")
	assert.Equal(t, nethttp.StatusNoContent, status)

	status, body = srv.do(t, nethttp.MethodGet, base, customer, "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAgentConversationRoutes(t *testing.T) {
	srv := newTestServer(t)
	agent := srv.token(t, "agent-1", domain.RoleAgent)

	status, body := srv.do(t, nethttp.MethodPost, "/sessions", agent, "")
	require.Equal(t, nethttp.StatusCreated, status)
	base := "/sessions/" + body["data"].(map[string]any)["id"].(string)

	status, _ = srv.do(t, nethttp.MethodPost, base+"/conversations/refresh", agent, `{"category":"support"}`)
	assert.Equal(t, nethttp.StatusAccepted, status)

	status, body = srv.do(t, nethttp.MethodPost, base+"/tickets/resolve", agent, "")
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, _ = srv.do(t, nethttp.MethodPost, base+"/conversations/select", agent, `{"participant_id":"u1","category":"support","ticket_id":"t1"}`)
	require.Equal(t, nethttp.StatusOK, status)

	status, _ = srv.do(t, nethttp.MethodPost, base+"/tickets/resolve", agent, "")
	assert.Equal(t, nethttp.StatusAccepted, status)

	status, body = srv.do(t, nethttp.MethodGet, base+"/conversations?category=sales", agent, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Empty(t, body["data"])

	status, _ = srv.do(t, nethttp.MethodPost, base+"/category", agent, `{"category":"sales"}`)
	assert.Equal(t, nethttp.StatusForbidden, status)
}
