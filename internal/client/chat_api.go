package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// StatusError is a non-2xx response from the chat backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat api: status %d", e.Status)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Options configures the REST collaborator client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client is the shared transport to the chat backend REST API.
type Client struct {
	base            string
	http            *http.Client
	cb              *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	logger          *zap.Logger
}

// NewClient builds a client with a circuit breaker around every call.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = 5 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger

	st := gobreaker.Settings{
		Name:        "chat-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Retryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Client{
		base:            strings.TrimRight(opts.BaseURL, "/"),
		http:            httpClient,
		cb:              gobreaker.NewCircuitBreaker(st),
		retryMaxElapsed: opts.RetryMaxElapsed,
		logger:          logger,
	}
}

// WithToken returns an API handle authenticated as one participant.
func (c *Client) WithToken(token string) *ChatAPI {
	return &ChatAPI{client: c, token: token}
}

// getJSON fetches path into out, retrying transient failures.
func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		operation := func() error {
			err := c.doGet(ctx, token, target, out)
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.MaxElapsedTime = c.retryMaxElapsed
		return nil, backoff.Retry(operation, backoff.WithContext(b, ctx))
	})
	if err != nil {
		c.logger.Warn("chat api request failed", zap.String("path", path), zap.Error(err))
	}
	return err
}

func (c *Client) doGet(ctx context.Context, token, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var env envelope
		_ = json.Unmarshal(body, &env)
		return &StatusError{Status: resp.StatusCode, Message: env.Message}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("chat api: decode %s: %w", target, err))
	}
	return nil
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChatAPI exposes the backend collaborators for one authenticated participant.
type ChatAPI struct {
	client *Client
	token  string
}

// History fetches the transcript of a conversation.
func (a *ChatAPI) History(ctx context.Context, key domain.ConversationKey) ([]domain.Message, error) {
	query := url.Values{"chatCategory": []string{string(key.ChatCategory)}}
	if key.TicketID != "" {
		query.Set("ticketId", key.TicketID)
	}
	var out struct {
		envelope
		Messages []domain.Message `json:"messages"`
	}
	if err := a.client.getJSON(ctx, a.token, "/history/"+url.PathEscape(key.ParticipantID), query, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// OpenTicket returns the participant's open ticket, or nil when none exists.
func (a *ChatAPI) OpenTicket(ctx context.Context, participantID string) (*domain.Ticket, error) {
	var out struct {
		envelope
		Ticket *domain.Ticket `json:"ticket"`
	}
	if err := a.client.getJSON(ctx, a.token, "/active-ticket/"+url.PathEscape(participantID), nil, &out); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if out.Ticket == nil || !out.Ticket.IsOpen() {
		return nil, nil
	}
	return out.Ticket, nil
}

// ListTickets returns every ticket of a participant, newest first as served.
func (a *ChatAPI) ListTickets(ctx context.Context, participantID string) ([]domain.Ticket, error) {
	var out struct {
		envelope
		Tickets []domain.Ticket `json:"tickets"`
	}
	if err := a.client.getJSON(ctx, a.token, "/tickets/"+url.PathEscape(participantID), nil, &out); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

// ActiveConversations lists conversation summaries of one category.
func (a *ChatAPI) ActiveConversations(ctx context.Context, category domain.ChatCategory) ([]domain.Conversation, error) {
	query := url.Values{"chatCategory": []string{string(category)}}
	var out struct {
		envelope
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := a.client.getJSON(ctx, a.token, "/admin/active-conversations", query, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}
