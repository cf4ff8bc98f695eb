package dto

import (
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/service"
)

// EnterCategoryRequest payload.
type EnterCategoryRequest struct {
	Category string `json:"category"`
}

// LocalFileRequest names a file on the device running the sidecar.
type LocalFileRequest struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Body  string             `json:"body"`
	Files []LocalFileRequest `json:"files"`
}

// LocalFiles converts the request files for the media pipeline.
func (r SendMessageRequest) LocalFiles() []media.LocalFile {
	files := make([]media.LocalFile, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, media.LocalFile{Path: f.Path, Name: f.Name, MIMEType: f.MimeType, SizeBytes: f.SizeBytes})
	}
	return files
}

// RejectionResponse explains why a file was left out of a message.
type RejectionResponse struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// ErrorBody mirrors the error envelope for partial failures.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendMessageResponse carries the provisional message and any delivery error.
type SendMessageResponse struct {
	Message  domain.Message      `json:"message"`
	Rejected []RejectionResponse `json:"rejected"`
	Error    *ErrorBody          `json:"error,omitempty"`
}

// Rejections maps pipeline rejections to responses.
func Rejections(in []media.Rejection) []RejectionResponse {
	out := make([]RejectionResponse, 0, len(in))
	for _, r := range in {
		out = append(out, RejectionResponse{File: r.File.DisplayName(), Reason: r.Reason})
	}
	return out
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// Draft converts the request into a ticket draft.
func (r CreateTicketRequest) Draft() domain.TicketDraft {
	return domain.TicketDraft{Title: r.Title, Description: r.Description, Priority: r.Priority}
}

// SelectConversationRequest payload.
type SelectConversationRequest struct {
	ParticipantID string  `json:"participant_id"`
	Category      string  `json:"category"`
	TicketID      *string `json:"ticket_id"`
}

// RefreshConversationsRequest payload. An empty category refreshes both.
type RefreshConversationsRequest struct {
	Category string `json:"category"`
}

// SessionResponse wraps the session snapshot with its notices.
type SessionResponse struct {
	service.Snapshot
	Notices []service.Notice `json:"notices"`
}
