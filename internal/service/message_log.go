package service

import (
	"time"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// DefaultCorrelationWindow bounds how far apart a provisional message and
// its confirmation may be stamped and still be matched.
const DefaultCorrelationWindow = 10 * time.Second

// ApplyOutcome describes what an inbound message did to the visible list.
type ApplyOutcome string

const (
	OutcomeReplaced  ApplyOutcome = "replaced"
	OutcomeAppended  ApplyOutcome = "appended"
	OutcomeDuplicate ApplyOutcome = "duplicate"
	OutcomeForeign   ApplyOutcome = "foreign"
)

// MessageLog is the visible message list of the open conversation. It is not
// safe for concurrent use; ChatSession serializes access.
type MessageLog struct {
	window   time.Duration
	key      domain.ConversationKey
	active   bool
	messages []domain.Message
}

// NewMessageLog creates an empty log with the given correlation window.
func NewMessageLog(window time.Duration) *MessageLog {
	if window <= 0 {
		window = DefaultCorrelationWindow
	}
	return &MessageLog{window: window}
}

// Open switches the log to key and empties it.
func (l *MessageLog) Open(key domain.ConversationKey) {
	l.key = key
	l.active = true
	l.messages = nil
}

// Close empties the log and leaves no conversation open.
func (l *MessageLog) Close() {
	l.key = domain.ConversationKey{}
	l.active = false
	l.messages = nil
}

// Active returns the open conversation.
func (l *MessageLog) Active() (domain.ConversationKey, bool) {
	return l.key, l.active
}

// Belongs reports whether msg is part of the open conversation.
func (l *MessageLog) Belongs(msg domain.Message) bool {
	return l.active && msg.Key() == l.key
}

// AddProvisional appends a locally created message.
func (l *MessageLog) AddProvisional(msg domain.Message) {
	l.messages = append(l.messages, msg)
}

// Apply reconciles a server message into the list. A known permanent id is
// discarded, a pending provisional from the same sender inside the window is
// replaced in place, and anything else is appended.
func (l *MessageLog) Apply(msg domain.Message) ApplyOutcome {
	if !l.Belongs(msg) {
		return OutcomeForeign
	}
	msg.Status = domain.MessageStatusConfirmed

	if l.indexOf(msg.ID) >= 0 {
		return OutcomeDuplicate
	}
	if i := l.correlate(msg, nil); i >= 0 {
		l.messages[i] = msg
		return OutcomeReplaced
	}
	l.messages = append(l.messages, msg)
	return OutcomeAppended
}

// correlate finds the earliest pending provisional matching msg by sender and
// time proximity, skipping indexes already claimed.
func (l *MessageLog) correlate(msg domain.Message, claimed map[int]bool) int {
	for i, candidate := range l.messages {
		if claimed[i] || !candidate.IsProvisional() || candidate.Status != domain.MessageStatusPending {
			continue
		}
		if candidate.Sender != msg.Sender {
			continue
		}
		if absDuration(msg.SentAt.Sub(candidate.SentAt)) <= l.window {
			return i
		}
	}
	return -1
}

// ReplaceHistory swaps the list for a server transcript. Provisional messages
// that no transcript entry accounts for are kept at the end.
func (l *MessageLog) ReplaceHistory(history []domain.Message) {
	claimed := map[int]bool{}
	seen := map[string]bool{}
	next := make([]domain.Message, 0, len(history)+len(l.messages))
	for _, msg := range history {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		msg.Status = domain.MessageStatusConfirmed
		if i := l.correlate(msg, claimed); i >= 0 {
			claimed[i] = true
		}
		next = append(next, msg)
	}
	for i, msg := range l.messages {
		if msg.IsProvisional() && !claimed[i] {
			next = append(next, msg)
		}
	}
	l.messages = next
}

// Get returns the message with id.
func (l *MessageLog) Get(id string) (domain.Message, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.messages[i], true
	}
	return domain.Message{}, false
}

// Update applies fn to a provisional message.
func (l *MessageLog) Update(id string, fn func(*domain.Message)) bool {
	i := l.indexOf(id)
	if i < 0 || !l.messages[i].IsProvisional() {
		return false
	}
	fn(&l.messages[i])
	return true
}

// MarkFailed flags a provisional message as undeliverable.
func (l *MessageLog) MarkFailed(id string) bool {
	return l.Update(id, func(m *domain.Message) { m.Status = domain.MessageStatusFailed })
}

// Remove drops a provisional message.
func (l *MessageLog) Remove(id string) bool {
	i := l.indexOf(id)
	if i < 0 || !l.messages[i].IsProvisional() {
		return false
	}
	l.messages = append(l.messages[:i:i], l.messages[i+1:]...)
	return true
}

// Messages returns a copy of the visible list.
func (l *MessageLog) Messages() []domain.Message {
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of visible messages.
func (l *MessageLog) Len() int {
	return len(l.messages)
}

// Pending counts provisional messages still awaiting confirmation.
func (l *MessageLog) Pending() int {
	n := 0
	for _, m := range l.messages {
		if m.IsProvisional() && m.Status == domain.MessageStatusPending {
			n++
		}
	}
	return n
}

func (l *MessageLog) indexOf(id string) int {
	for i, m := range l.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
