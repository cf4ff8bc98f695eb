package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingType = errors.New("events: frame has no type")

// Encode renders ev as a JSON frame with its tag in the "type" field.
func Encode(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("events: nil event")
	}
	if unknown, ok := ev.(UnknownEvent); ok {
		return unknown.Raw, nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s: %w", ev.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("events: flatten %s: %w", ev.Type(), err)
	}
	tag, _ := json.Marshal(ev.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}

// Decode parses an inbound frame into its concrete variant. Frames with an
// unrecognized tag decode to UnknownEvent so wildcard handlers still see them.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("events: decode frame: %w", err)
	}
	if head.Type == "" {
		return nil, ErrMissingType
	}

	switch head.Type {
	case EventHistory:
		return decodeAs[HistoryEvent](data)
	case EventNewMessage:
		return decodeAs[NewMessageEvent](data)
	case EventMessageConfirmed:
		return decodeAs[MessageConfirmedEvent](data)
	case EventActiveConversations:
		return decodeAs[ActiveConversationsEvent](data)
	case EventTicketCreated:
		return decodeAs[TicketCreatedEvent](data)
	case EventTicketResolved:
		return decodeAs[TicketResolvedEvent](data)
	case EventError:
		return decodeAs[ErrorEvent](data)
	case EventIdentify:
		return decodeAs[IdentifyEvent](data)
	case EventSendMessage:
		return decodeAs[SendMessageEvent](data)
	case EventSendMessageWithAttachments:
		return decodeAs[SendMessageWithAttachmentsEvent](data)
	case EventRequestHistory:
		return decodeAs[RequestHistoryEvent](data)
	case EventCreateTicket:
		return decodeAs[CreateTicketEvent](data)
	case EventResolveTicket:
		return decodeAs[ResolveTicketEvent](data)
	case EventRequestActiveConversations:
		return decodeAs[RequestActiveConversationsEvent](data)
	case EventMarkRead:
		return decodeAs[MarkReadEvent](data)
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return UnknownEvent{Tag: head.Type, Raw: raw}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", ev.Type(), err)
	}
	return ev, nil
}
