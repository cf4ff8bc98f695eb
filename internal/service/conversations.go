package service

import (
	"github.com/spec-kit/storefront-chat/internal/domain"
)

// MergeConversations combines previous and incoming summaries keyed by
// (participant, category, ticket). Later entries win; each key keeps the
// position of its first appearance.
func MergeConversations(previous, incoming []domain.Conversation) []domain.Conversation {
	index := make(map[domain.ConversationKey]int, len(previous)+len(incoming))
	merged := make([]domain.Conversation, 0, len(previous)+len(incoming))
	for _, list := range [][]domain.Conversation{previous, incoming} {
		for _, conv := range list {
			key := conv.Key()
			if i, ok := index[key]; ok {
				merged[i] = conv
				continue
			}
			index[key] = len(merged)
			merged = append(merged, conv)
		}
	}
	return merged
}

// ConversationBook holds the agent's conversation list across category
// snapshots. It is not safe for concurrent use.
type ConversationBook struct {
	entries []domain.Conversation
}

// ApplySnapshot replaces every entry of category with list. An empty category
// merges list without dropping anything.
func (b *ConversationBook) ApplySnapshot(category domain.ChatCategory, list []domain.Conversation) {
	kept := b.entries
	if category != "" {
		kept = make([]domain.Conversation, 0, len(b.entries))
		for _, conv := range b.entries {
			if conv.ChatCategory != category {
				kept = append(kept, conv)
			}
		}
	}
	b.entries = MergeConversations(kept, list)
}

// Find returns the summary for key.
func (b *ConversationBook) Find(key domain.ConversationKey) (domain.Conversation, bool) {
	for _, conv := range b.entries {
		if conv.Key() == key {
			return conv, true
		}
	}
	return domain.Conversation{}, false
}

// MarkRead zeroes the unread counter of key.
func (b *ConversationBook) MarkRead(key domain.ConversationKey) {
	for i := range b.entries {
		if b.entries[i].Key() == key {
			b.entries[i].UnreadCount = 0
		}
	}
}

// List returns the conversations, optionally filtered by category.
func (b *ConversationBook) List(category domain.ChatCategory) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(b.entries))
	for _, conv := range b.entries {
		if category == "" || conv.ChatCategory == category {
			out = append(out, conv)
		}
	}
	return out
}

// Clear drops every entry.
func (b *ConversationBook) Clear() {
	b.entries = nil
}
