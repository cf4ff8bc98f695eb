package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:         srv.URL + "/",
		RetryMaxElapsed: 2 * time.Second,
		HTTPClient:      srv.Client(),
		Logger:          zaptest.NewLogger(t),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestHistoryQueryAndAuth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/u1", r.URL.Path)
		assert.Equal(t, "support", r.URL.Query().Get("chatCategory"))
		assert.Equal(t, "t1", r.URL.Query().Get("ticketId"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"messages": []map[string]any{
				{"id": "m1", "participantId": "u1", "chatCategory": "support", "ticketId": "t1", "body": "hi", "sender": "agent", "sentAt": "2024-01-01T10:00:00Z"},
			},
		})
	}))

	ticket := "t1"
	msgs, err := c.WithToken("tok").History(context.Background(), domain.NewConversationKey("u1", domain.CategorySupport, &ticket))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, domain.RoleAgent, msgs[0].Sender)
}

func TestOpenTicketVariants(t *testing.T) {
	var mode atomic.Value
	mode.Store("open")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch mode.Load() {
		case "open":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "ticket": map[string]any{
				"id": "t1", "participantId": "u1", "title": "Order", "description": "Late", "priority": "high", "state": "open",
			}})
		case "resolved":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "ticket": map[string]any{"id": "t0", "state": "resolved"}})
		case "none":
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "no active ticket"})
		}
	}))
	api := c.WithToken("")

	ticket, err := api.OpenTicket(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "t1", ticket.ID)

	mode.Store("resolved")
	ticket, err = api.OpenTicket(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, ticket)

	mode.Store("none")
	ticket, err = api.OpenTicket(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": []map[string]any{
			{"participantId": "u1", "chatCategory": "sales", "unreadCount": 2},
		}})
	}))

	convs, err := c.WithToken("tok").ActiveConversations(context.Background(), domain.CategorySales)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "agents only"})
	}))

	_, err := c.WithToken("tok").ActiveConversations(context.Background(), domain.CategorySupport)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Status)
	assert.Equal(t, "agents only", statusErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTicketCacheWithoutRedisPassesThrough(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "ticket": map[string]any{"id": "t1", "state": "open"}})
	}))

	cache := NewTicketCache(c.WithToken("tok"), nil, time.Minute, nil)
	for i := 0; i < 2; i++ {
		ticket, err := cache.OpenTicket(context.Background(), "u1")
		require.NoError(t, err)
		require.NotNil(t, ticket)
	}
	cache.InvalidateOpenTicket(context.Background(), "u1")
	assert.Equal(t, int32(2), calls.Load())
}
