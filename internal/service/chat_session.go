package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/transport"
)

var (
	ErrTicketRequired    = errors.New("an open support ticket is required before sending")
	ErrTicketAlreadyOpen = errors.New("an open support ticket already exists")
	ErrNoConversation    = errors.New("no conversation is open")
	ErrNoTicket          = errors.New("conversation has no ticket")
	ErrMessageNotFound   = errors.New("provisional message not found")
	ErrNotFailed         = errors.New("only failed messages can be retried or discarded")
	ErrWrongRole         = errors.New("operation not available for this role")
)

const conversationFetchTimeout = 10 * time.Second

// Transport is the socket the session talks through.
type Transport interface {
	Connect(ctx context.Context, participantID string, role domain.Role) error
	Send(ev events.Event) error
	Teardown()
	Status() transport.Status
	Registry() *events.Registry
}

// ChatAPI is the REST collaborator set.
type ChatAPI interface {
	History(ctx context.Context, key domain.ConversationKey) ([]domain.Message, error)
	OpenTicket(ctx context.Context, participantID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, participantID string) ([]domain.Ticket, error)
	ActiveConversations(ctx context.Context, category domain.ChatCategory) ([]domain.Conversation, error)
}

type ticketInvalidator interface {
	InvalidateOpenTicket(ctx context.Context, participantID string)
}

// Attachments is the upload pipeline used by the send path.
type Attachments interface {
	Partition(files []media.LocalFile) ([]media.LocalFile, []media.Rejection)
	Preview(f media.LocalFile) domain.Attachment
	UploadAll(ctx context.Context, files []media.LocalFile) media.BatchResult
}

// ChatSessionDependencies bundles collaborators for a session.
type ChatSessionDependencies struct {
	ID                string
	Principal         domain.Principal
	Transport         Transport
	API               ChatAPI
	Media             Attachments
	Archive           Archive
	Notifications     *NotificationService
	Logger            *zap.Logger
	CorrelationWindow time.Duration
	Now               func() time.Time
}

// ChatSession is one mounted chat screen: its socket, its visible
// conversation and the optimistic state around it.
type ChatSession struct {
	id            string
	principal     domain.Principal
	transport     Transport
	api           ChatAPI
	media         Attachments
	archive       Archive
	notifications *NotificationService
	logger        *zap.Logger
	now           func() time.Time
	createdAt     time.Time

	mu       sync.Mutex
	category domain.ChatCategory
	filter   domain.ChatCategory
	log      *MessageLog
	book     ConversationBook
	tickets  *TicketMirror
	outbox   map[string][]media.LocalFile
	starting bool
}

// SendResult is the outcome of a send.
type SendResult struct {
	Message  domain.Message    `json:"message"`
	Rejected []media.Rejection `json:"rejected,omitempty"`
}

// EnterResult tells the caller what entering a category produced.
type EnterResult struct {
	Category       domain.ChatCategory     `json:"category"`
	Conversation   *domain.ConversationKey `json:"conversation,omitempty"`
	TicketRequired bool                    `json:"ticketRequired"`
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	ID            string                  `json:"id"`
	ParticipantID string                  `json:"participantId"`
	Role          domain.Role             `json:"role"`
	Connection    transport.Status        `json:"connection"`
	Category      domain.ChatCategory     `json:"category,omitempty"`
	Conversation  *domain.ConversationKey `json:"conversation,omitempty"`
	OpenTicket    *domain.Ticket          `json:"openTicket,omitempty"`
	Messages      int                     `json:"messages"`
	Pending       int                     `json:"pending"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// NewChatSession wires a session. Start must be called before use.
func NewChatSession(deps ChatSessionDependencies) *ChatSession {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Archive == nil {
		deps.Archive = NoopArchive{}
	}
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(deps.Logger, 0)
	}
	return &ChatSession{
		id:            deps.ID,
		principal:     deps.Principal,
		transport:     deps.Transport,
		api:           deps.API,
		media:         deps.Media,
		archive:       deps.Archive,
		notifications: deps.Notifications,
		logger: deps.Logger.With(
			zap.String("session_id", deps.ID),
			zap.String("participant_id", deps.Principal.ParticipantID)),
		now:       deps.Now,
		createdAt: deps.Now(),
		log:       NewMessageLog(deps.CorrelationWindow),
		tickets:   NewTicketMirror(),
		outbox:    make(map[string][]media.LocalFile),
	}
}

// ID returns the session id.
func (s *ChatSession) ID() string { return s.id }

// Principal returns the session owner.
func (s *ChatSession) Principal() domain.Principal { return s.principal }

// Notifications returns the session notice feed.
func (s *ChatSession) Notifications() *NotificationService { return s.notifications }

// Start registers event handlers and connects. A failed connect leaves the
// session usable with reconnection scheduled.
func (s *ChatSession) Start(ctx context.Context) error {
	s.RegisterHandlers()
	s.mu.Lock()
	s.starting = true
	s.mu.Unlock()
	err := s.transport.Connect(ctx, s.principal.ParticipantID, s.principal.Role)
	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("initial connect failed", zap.Error(err))
		return err
	}
	if s.principal.Role == domain.RoleAgent {
		if err := s.RefreshConversations(ctx, ""); err != nil {
			s.logger.Warn("initial conversation refresh failed", zap.Error(err))
		}
	}
	return nil
}

// ConnectionChanged is called after each socket state transition. Agents
// refresh their conversation list whenever the socket opens outside Start,
// so a session whose first connect failed still loads it on reconnect.
func (s *ChatSession) ConnectionChanged(state transport.State) {
	if state != transport.StateOpen || s.principal.Role != domain.RoleAgent {
		return
	}
	s.mu.Lock()
	starting := s.starting
	filter := s.filter
	s.mu.Unlock()
	if starting {
		return
	}
	s.requestConversations(filter)
}

// RegisterHandlers subscribes the session to inbound events.
func (s *ChatSession) RegisterHandlers() {
	registry := s.transport.Registry()
	registry.Register(events.EventHistory, s.handleHistory)
	registry.Register(events.EventNewMessage, s.handleNewMessage)
	registry.Register(events.EventMessageConfirmed, s.handleMessageConfirmed)
	registry.Register(events.EventActiveConversations, s.handleActiveConversations)
	registry.Register(events.EventTicketCreated, s.handleTicketCreated)
	registry.Register(events.EventTicketResolved, s.handleTicketResolved)
}

// Reconnect is the manual retry offered once reconnection is exhausted.
func (s *ChatSession) Reconnect(ctx context.Context) error {
	return s.transport.Connect(ctx, s.principal.ParticipantID, s.principal.Role)
}

// Close tears the socket down and drops every handler.
func (s *ChatSession) Close() {
	s.transport.Teardown()
	s.logger.Info("chat session closed")
}

// EnterCategory opens the customer's conversation for category. Entering
// support without an open ticket reports TicketRequired and opens nothing.
func (s *ChatSession) EnterCategory(ctx context.Context, category domain.ChatCategory) (EnterResult, error) {
	if s.principal.Role != domain.RoleCustomer {
		return EnterResult{}, ErrWrongRole
	}
	if !category.Valid() {
		return EnterResult{}, domain.ErrBadCategory
	}

	s.mu.Lock()
	s.category = category
	ticket, hasTicket := s.tickets.Open()
	s.mu.Unlock()

	var ticketID *string
	if category == domain.CategorySupport {
		if !hasTicket {
			found, err := s.api.OpenTicket(ctx, s.principal.ParticipantID)
			if err != nil {
				return EnterResult{}, fmt.Errorf("lookup open ticket: %w", err)
			}
			s.mu.Lock()
			s.tickets.Seed(found)
			ticket, hasTicket = s.tickets.Open()
			s.mu.Unlock()
		}
		if !hasTicket {
			s.mu.Lock()
			if s.category == category {
				s.log.Close()
			}
			s.mu.Unlock()
			return EnterResult{Category: category, TicketRequired: true}, nil
		}
		ticketID = &ticket.ID
	}

	key := domain.NewConversationKey(s.principal.ParticipantID, category, ticketID)
	s.mu.Lock()
	s.log.Open(key)
	s.mu.Unlock()

	s.requestHistory(ctx, key)
	return EnterResult{Category: category, Conversation: &key}, nil
}

// CreateTicket asks the server to open a ticket. The conversation opens when
// ticket_created arrives.
func (s *ChatSession) CreateTicket(ctx context.Context, draft domain.TicketDraft) error {
	if s.principal.Role != domain.RoleCustomer {
		return ErrWrongRole
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	_, open := s.tickets.Open()
	s.mu.Unlock()
	if open {
		return ErrTicketAlreadyOpen
	}

	return s.transport.Send(events.CreateTicketEvent{
		ParticipantID: s.principal.ParticipantID,
		Title:         draft.Title,
		Description:   draft.Description,
		Priority:      draft.Priority,
	})
}

// Send renders a provisional message, uploads its attachments and emits the
// wire event. Rejected files are reported and left out of the message.
func (s *ChatSession) Send(ctx context.Context, body string, files []media.LocalFile) (SendResult, error) {
	s.mu.Lock()
	key, active := s.log.Active()
	category := s.category
	s.mu.Unlock()

	if !active {
		if s.principal.Role == domain.RoleCustomer && category == domain.CategorySupport {
			return SendResult{}, ErrTicketRequired
		}
		return SendResult{}, ErrNoConversation
	}
	if s.principal.Role == domain.RoleCustomer && key.ChatCategory == domain.CategorySupport && key.TicketID == "" {
		return SendResult{}, ErrTicketRequired
	}

	var valid []media.LocalFile
	var rejected []media.Rejection
	if len(files) > 0 {
		if s.media == nil {
			return SendResult{}, fmt.Errorf("%w: attachments are not configured", media.ErrUploadFailed)
		}
		valid, rejected = s.media.Partition(files)
	}

	body = strings.TrimSpace(body)
	if err := domain.ValidateOutgoing(key.ParticipantID, key.ChatCategory, body, len(valid)); err != nil {
		return SendResult{Rejected: rejected}, err
	}

	previews := make([]domain.Attachment, 0, len(valid))
	for _, f := range valid {
		previews = append(previews, s.media.Preview(f))
	}
	msg := domain.NewProvisionalMessage(key, s.principal.Role, body, previews, s.now())

	s.mu.Lock()
	if current, ok := s.log.Active(); !ok || current != key {
		s.mu.Unlock()
		return SendResult{Rejected: rejected}, ErrNoConversation
	}
	s.log.AddProvisional(msg)
	if len(valid) > 0 {
		s.outbox[msg.ID] = valid
	}
	s.mu.Unlock()

	err := s.deliver(ctx, msg.ID)
	return SendResult{Message: s.message(msg.ID, msg), Rejected: rejected}, err
}

// Retry re-sends a failed provisional message.
func (s *ChatSession) Retry(ctx context.Context, id string) (domain.Message, error) {
	s.mu.Lock()
	msg, ok := s.log.Get(id)
	if !ok || !msg.IsProvisional() {
		s.mu.Unlock()
		return domain.Message{}, ErrMessageNotFound
	}
	if msg.Status != domain.MessageStatusFailed {
		s.mu.Unlock()
		return msg, ErrNotFailed
	}
	now := s.now()
	s.log.Update(id, func(m *domain.Message) {
		m.Status = domain.MessageStatusPending
		m.SentAt = now
	})
	s.mu.Unlock()

	err := s.deliver(ctx, id)
	return s.message(id, msg), err
}

// Discard removes a failed provisional message.
func (s *ChatSession) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.log.Get(id)
	if !ok || !msg.IsProvisional() {
		return ErrMessageNotFound
	}
	if msg.Status != domain.MessageStatusFailed {
		return ErrNotFailed
	}
	s.log.Remove(id)
	delete(s.outbox, id)
	return nil
}

// deliver uploads pending attachments and emits the send event. The wire
// event only leaves once every attachment has a durable storage id.
func (s *ChatSession) deliver(ctx context.Context, id string) error {
	s.mu.Lock()
	msg, ok := s.log.Get(id)
	files := s.outbox[id]
	s.mu.Unlock()
	if !ok {
		return ErrMessageNotFound
	}

	if !msg.AttachmentsUploaded() {
		batch := s.media.UploadAll(ctx, files)
		if !batch.Complete() || len(batch.Uploaded) != len(files) {
			summary := batch.Summary()
			s.markFailed(id, "attachment upload failed: "+summary)
			if batch.Err != nil {
				return batch.Err
			}
			return fmt.Errorf("%w: %s", media.ErrUploadFailed, summary)
		}
		s.mu.Lock()
		s.log.Update(id, func(m *domain.Message) { m.Attachments = batch.Uploaded })
		delete(s.outbox, id)
		msg, ok = s.log.Get(id)
		s.mu.Unlock()
		if !ok {
			return ErrMessageNotFound
		}
	}
	if !msg.AttachmentsUploaded() {
		s.markFailed(id, "attachment upload incomplete")
		return fmt.Errorf("%w: attachment upload incomplete", media.ErrUploadFailed)
	}

	var ev events.Event
	if len(msg.Attachments) > 0 {
		ev = events.SendMessageWithAttachmentsEvent{
			ParticipantID: msg.ParticipantID,
			ChatCategory:  msg.ChatCategory,
			Body:          msg.Body,
			Attachments:   msg.Attachments,
			TicketID:      msg.TicketID,
		}
	} else {
		ev = events.SendMessageEvent{
			ParticipantID: msg.ParticipantID,
			ChatCategory:  msg.ChatCategory,
			Body:          msg.Body,
			TicketID:      msg.TicketID,
		}
	}
	if err := s.transport.Send(ev); err != nil {
		s.markFailed(id, "message not sent: connection unavailable")
		return err
	}
	return nil
}

func (s *ChatSession) markFailed(id, reason string) {
	s.mu.Lock()
	s.log.MarkFailed(id)
	s.mu.Unlock()
	s.logger.Warn("provisional message failed", zap.String("message_id", id), zap.String("reason", reason))
	s.notifications.Push(NoticeSendFailed, reason)
}

func (s *ChatSession) message(id string, fallback domain.Message) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.log.Get(id); ok {
		return msg
	}
	return fallback
}

// SelectConversation opens key for an agent, requests its history and marks
// it read.
func (s *ChatSession) SelectConversation(ctx context.Context, key domain.ConversationKey) error {
	if s.principal.Role != domain.RoleAgent {
		return ErrWrongRole
	}
	if strings.TrimSpace(key.ParticipantID) == "" {
		return domain.ErrMissingSubject
	}
	if !key.ChatCategory.Valid() {
		return domain.ErrBadCategory
	}
	s.selectConversation(ctx, key, false)
	return nil
}

// selectConversation opens key. With onlyIfIdle it does nothing when a
// conversation is already open.
func (s *ChatSession) selectConversation(ctx context.Context, key domain.ConversationKey, onlyIfIdle bool) bool {
	s.mu.Lock()
	if _, active := s.log.Active(); active && onlyIfIdle {
		s.mu.Unlock()
		return false
	}
	s.log.Open(key)
	s.book.MarkRead(key)
	s.mu.Unlock()

	s.requestHistory(ctx, key)
	s.sendMarkRead(key)
	return true
}

// MarkRead marks the open conversation as read.
func (s *ChatSession) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	key, active := s.log.Active()
	if active {
		s.book.MarkRead(key)
	}
	s.mu.Unlock()
	if !active {
		return ErrNoConversation
	}
	return s.sendMarkRead(key)
}

func (s *ChatSession) sendMarkRead(key domain.ConversationKey) error {
	err := s.transport.Send(events.MarkReadEvent{
		ParticipantID: key.ParticipantID,
		ChatCategory:  key.ChatCategory,
		TicketID:      key.TicketIDPtr(),
	})
	if err != nil {
		s.logger.Debug("mark_read not sent", zap.Error(err))
	}
	return err
}

// RefreshConversations requests summaries for category, or both categories
// when category is empty. Without a socket the REST collaborator is used.
func (s *ChatSession) RefreshConversations(ctx context.Context, category domain.ChatCategory) error {
	if s.principal.Role != domain.RoleAgent {
		return ErrWrongRole
	}
	if category != "" && !category.Valid() {
		return domain.ErrBadCategory
	}
	s.mu.Lock()
	s.filter = category
	s.mu.Unlock()

	var errs []error
	for _, c := range categoriesFor(category) {
		err := s.transport.Send(events.RequestActiveConversationsEvent{ChatCategory: c})
		if errors.Is(err, transport.ErrNotConnected) {
			err = s.fetchConversations(ctx, c)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ChatSession) fetchConversations(ctx context.Context, category domain.ChatCategory) error {
	list, err := s.api.ActiveConversations(ctx, category)
	if err != nil {
		return fmt.Errorf("fetch %s conversations: %w", category, err)
	}
	s.mu.Lock()
	s.book.ApplySnapshot(category, list)
	s.mu.Unlock()
	return nil
}

func categoriesFor(category domain.ChatCategory) []domain.ChatCategory {
	if category == "" {
		return []domain.ChatCategory{domain.CategorySales, domain.CategorySupport}
	}
	return []domain.ChatCategory{category}
}

// ResolveTicket asks the server to resolve the open conversation's ticket.
// Local state only changes when ticket_resolved arrives.
func (s *ChatSession) ResolveTicket(ctx context.Context) error {
	if s.principal.Role != domain.RoleAgent {
		return ErrWrongRole
	}
	s.mu.Lock()
	key, active := s.log.Active()
	s.mu.Unlock()
	if !active {
		return ErrNoConversation
	}
	if key.TicketID == "" {
		return ErrNoTicket
	}
	return s.transport.Send(events.ResolveTicketEvent{ParticipantID: key.ParticipantID, TicketID: key.TicketID})
}

// requestHistory asks the socket for a transcript and falls back to REST.
func (s *ChatSession) requestHistory(ctx context.Context, key domain.ConversationKey) {
	err := s.transport.Send(events.RequestHistoryEvent{
		ParticipantID: key.ParticipantID,
		ChatCategory:  key.ChatCategory,
		TicketID:      key.TicketIDPtr(),
	})
	if err == nil || s.api == nil {
		return
	}
	history, err := s.api.History(ctx, key)
	if err != nil {
		s.logger.Warn("history fetch failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	if current, ok := s.log.Active(); ok && current == key {
		s.log.ReplaceHistory(history)
	}
	s.mu.Unlock()
}

func (s *ChatSession) handleHistory(_ context.Context, ev events.Event) error {
	h, ok := ev.(events.HistoryEvent)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, active := s.log.Active()
	if !active {
		return nil
	}
	if h.ParticipantID != "" && domain.NewConversationKey(h.ParticipantID, h.ChatCategory, h.TicketID) != current {
		return nil
	}
	s.log.ReplaceHistory(h.Messages)
	return nil
}

func (s *ChatSession) handleNewMessage(ctx context.Context, ev events.Event) error {
	if e, ok := ev.(events.NewMessageEvent); ok {
		s.receive(ctx, e.Message)
	}
	return nil
}

func (s *ChatSession) handleMessageConfirmed(ctx context.Context, ev events.Event) error {
	if e, ok := ev.(events.MessageConfirmedEvent); ok {
		s.receive(ctx, e.Message)
	}
	return nil
}

// receive runs the reconciliation path for one server message.
func (s *ChatSession) receive(ctx context.Context, msg domain.Message) {
	if msg.IsProvisional() {
		s.logger.Warn("ignoring server message with temporary id", zap.String("message_id", msg.ID))
		return
	}

	s.mu.Lock()
	outcome := s.log.Apply(msg)
	s.mu.Unlock()

	s.logger.Debug("message reconciled", zap.String("message_id", msg.ID), zap.String("outcome", string(outcome)))
	if outcome != OutcomeDuplicate {
		if err := s.archive.SaveMessage(ctx, msg); err != nil {
			s.logger.Warn("archive message failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	if outcome != OutcomeForeign || s.principal.Role != domain.RoleAgent {
		return
	}

	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	s.requestConversations(filter)
	s.selectConversation(ctx, msg.Key(), true)
}

// requestConversations asks the socket for fresh summaries. Categories the
// socket cannot carry are fetched over REST on their own goroutine, since
// callers run on the socket read loop or the reconnect timer.
func (s *ChatSession) requestConversations(filter domain.ChatCategory) {
	for _, c := range categoriesFor(filter) {
		if err := s.transport.Send(events.RequestActiveConversationsEvent{ChatCategory: c}); err == nil {
			continue
		}
		go func(category domain.ChatCategory) {
			ctx, cancel := context.WithTimeout(context.Background(), conversationFetchTimeout)
			defer cancel()
			if err := s.fetchConversations(ctx, category); err != nil {
				s.logger.Warn("conversation refresh failed", zap.Error(err))
			}
		}(c)
	}
}

func (s *ChatSession) handleActiveConversations(_ context.Context, ev events.Event) error {
	e, ok := ev.(events.ActiveConversationsEvent)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.book.ApplySnapshot(e.ChatCategory, e.Conversations)
	s.mu.Unlock()
	return nil
}

func (s *ChatSession) handleTicketCreated(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TicketCreatedEvent)
	if !ok {
		return nil
	}
	t := e.Ticket
	s.invalidateTicket(ctx, t.ParticipantID)
	if err := s.archive.SaveTicket(ctx, t); err != nil {
		s.logger.Warn("archive ticket failed", zap.String("ticket_id", t.ID), zap.Error(err))
	}

	if s.principal.Role == domain.RoleAgent {
		s.mu.Lock()
		filter := s.filter
		s.mu.Unlock()
		return s.RefreshConversations(ctx, filter)
	}
	if t.ParticipantID != "" && t.ParticipantID != s.principal.ParticipantID {
		return nil
	}

	s.mu.Lock()
	changed := s.tickets.ApplyCreated(t)
	open := changed && s.category == domain.CategorySupport
	var key domain.ConversationKey
	if open {
		key = domain.NewConversationKey(s.principal.ParticipantID, domain.CategorySupport, &t.ID)
		s.log.Open(key)
	}
	s.mu.Unlock()

	if open {
		s.requestHistory(ctx, key)
	}
	return nil
}

func (s *ChatSession) handleTicketResolved(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TicketResolvedEvent)
	if !ok {
		return nil
	}
	t := e.Ticket
	s.invalidateTicket(ctx, t.ParticipantID)
	if err := s.archive.SaveTicket(ctx, t); err != nil {
		s.logger.Warn("archive ticket failed", zap.String("ticket_id", t.ID), zap.Error(err))
	}

	s.mu.Lock()
	s.tickets.ApplyResolved(t)
	if key, active := s.log.Active(); active && key.TicketID == t.ID {
		s.log.Close()
	}
	filter := s.filter
	s.mu.Unlock()

	if s.principal.Role == domain.RoleAgent {
		return s.RefreshConversations(ctx, filter)
	}
	return nil
}

func (s *ChatSession) invalidateTicket(ctx context.Context, participantID string) {
	if inv, ok := s.api.(ticketInvalidator); ok && participantID != "" {
		inv.InvalidateOpenTicket(ctx, participantID)
	}
}

// Messages returns the visible message list.
func (s *ChatSession) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

// Conversations returns the agent conversation list.
func (s *ChatSession) Conversations(category domain.ChatCategory) []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.List(category)
}

// OpenTicket returns the mirrored open ticket.
func (s *ChatSession) OpenTicket() (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets.Open()
}

// Tickets lists the tickets of the session owner, or of the selected
// customer for agents.
func (s *ChatSession) Tickets(ctx context.Context) ([]domain.Ticket, error) {
	participantID := s.principal.ParticipantID
	if s.principal.Role == domain.RoleAgent {
		s.mu.Lock()
		key, active := s.log.Active()
		s.mu.Unlock()
		if !active {
			return nil, ErrNoConversation
		}
		participantID = key.ParticipantID
	}
	return s.api.ListTickets(ctx, participantID)
}

// Archived returns archived messages of the open conversation.
func (s *ChatSession) Archived(ctx context.Context, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	key, active := s.log.Active()
	s.mu.Unlock()
	if !active {
		return nil, ErrNoConversation
	}
	return s.archive.Messages(ctx, key, limit)
}

// Snapshot returns the session state.
func (s *ChatSession) Snapshot() Snapshot {
	status := s.transport.Status()
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:            s.id,
		ParticipantID: s.principal.ParticipantID,
		Role:          s.principal.Role,
		Connection:    status,
		Category:      s.category,
		Messages:      s.log.Len(),
		Pending:       s.log.Pending(),
		CreatedAt:     s.createdAt,
	}
	if key, active := s.log.Active(); active {
		snap.Conversation = &key
	}
	if t, ok := s.tickets.Open(); ok {
		snap.OpenTicket = &t
	}
	return snap
}
