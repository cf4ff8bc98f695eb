package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ChatCategory partitions conversations into separate agent queues.
type ChatCategory string

const (
	CategorySales   ChatCategory = "sales"
	CategorySupport ChatCategory = "support"
)

// Valid reports whether c is a known category.
func (c ChatCategory) Valid() bool {
	return c == CategorySales || c == CategorySupport
}

// ParseChatCategory normalizes user input into a ChatCategory.
func ParseChatCategory(raw string) (ChatCategory, error) {
	c := ChatCategory(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrBadCategory, raw)
	}
	return c, nil
}

// MessageStatus tracks the client-side delivery state of a message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusConfirmed MessageStatus = "confirmed"
)

// TempIDPrefix marks client-generated ids that have not been confirmed by the server.
const TempIDPrefix = "temp_"

// MaxBodyLength is the longest body accepted for an outgoing message.
const MaxBodyLength = 500

var (
	ErrEmptyMessage   = errors.New("message must have a body or attachments")
	ErrBodyTooLong    = fmt.Errorf("message body cannot exceed %d characters", MaxBodyLength)
	ErrMissingSubject = errors.New("participant id required")
	ErrBadCategory    = errors.New("invalid chat category")
)

// Message is a unit of conversation content.
type Message struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId"`
	ChatCategory  ChatCategory  `json:"chatCategory"`
	TicketID      *string       `json:"ticketId,omitempty"`
	Body          string        `json:"body"`
	Sender        Role          `json:"sender"`
	IsRead        bool          `json:"isRead"`
	Attachments   []Attachment  `json:"attachments,omitempty"`
	SentAt        time.Time     `json:"sentAt"`
	Status        MessageStatus `json:"status,omitempty"`
}

// NewTempID returns a provisional id of the form temp_<unixmillis>_<random>.
func NewTempID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%s%d_%s", TempIDPrefix, now.UnixMilli(), suffix)
}

// IsTemporaryID reports whether id was generated locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// IsProvisional reports whether the message only exists in client memory.
func (m Message) IsProvisional() bool {
	return IsTemporaryID(m.ID)
}

// Key returns the conversation the message belongs to.
func (m Message) Key() ConversationKey {
	return NewConversationKey(m.ParticipantID, m.ChatCategory, m.TicketID)
}

// AttachmentsUploaded reports whether every attachment has a durable storage id.
func (m Message) AttachmentsUploaded() bool {
	for _, att := range m.Attachments {
		if !att.Uploaded() {
			return false
		}
	}
	return true
}

// NewProvisionalMessage builds the optimistic stand-in rendered before the server confirms.
func NewProvisionalMessage(key ConversationKey, sender Role, body string, attachments []Attachment, now time.Time) Message {
	return Message{
		ID:            NewTempID(now),
		ParticipantID: key.ParticipantID,
		ChatCategory:  key.ChatCategory,
		TicketID:      key.TicketIDPtr(),
		Body:          body,
		Sender:        sender,
		Attachments:   attachments,
		SentAt:        now,
		Status:        MessageStatusPending,
	}
}

// ValidateOutgoing checks the rules every outgoing message must satisfy.
func ValidateOutgoing(participantID string, category ChatCategory, body string, attachmentCount int) error {
	if strings.TrimSpace(participantID) == "" {
		return ErrMissingSubject
	}
	if !category.Valid() {
		return ErrBadCategory
	}
	if strings.TrimSpace(body) == "" && attachmentCount == 0 {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// AttachmentKind enumerates the media kinds a message can carry.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// LocalPreviewStorageID marks an attachment whose upload has not completed.
const LocalPreviewStorageID = "local-preview"

// Attachment references a single uploaded (or uploading) media file.
type Attachment struct {
	Kind            AttachmentKind `json:"kind"`
	SourceURL       string         `json:"sourceUrl"`
	OriginalName    string         `json:"originalName"`
	SizeBytes       int64          `json:"sizeBytes"`
	Dimensions      string         `json:"dimensions,omitempty"`
	DurationSeconds float64        `json:"duration,omitempty"`
	StorageID       string         `json:"storageId"`
	UploadedAt      *time.Time     `json:"uploadedAt,omitempty"`
}

// Uploaded reports whether the attachment points at durable hosted media.
func (a Attachment) Uploaded() bool {
	return a.StorageID != "" && a.StorageID != LocalPreviewStorageID
}
