package event

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	Authenticate = "authenticate"
	SendMessage  = "sendMessage"
	Typing       = "typing"
	MarkAsRead   = "markAsRead"
	JoinChat     = "joinChat"
	LeaveChat    = "leaveChat"
	Error        = "error"
)

// Frame is the unit exchanged on the realtime channel.
// An acknowledgement reuses the ID and Event of the frame it answers.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ToFrame(evt DomainEvent) (Frame, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", evt.Type(), err)
	}
	return Frame{Event: string(evt.Type()), Data: data}, nil
}

// Ack is the answer to sendMessage, markAsRead and joinChat.
type Ack struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Message    any      `json:"message,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

func NewAckFrame(request Frame, ack Ack) (Frame, error) {
	data, err := json.Marshal(ack)
	if err != nil {
		return Frame{}, err
	}
	return Frame{ID: request.ID, Event: request.Event, Data: data}, nil
}

func NewErrorFrame(message string) Frame {
	data, _ := json.Marshal(map[string]string{"message": message})
	return Frame{Event: Error, Data: data}
}

type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type SendMessagePayload struct {
	ChatID   string         `json:"chatId" validate:"required"`
	Content  string         `json:"content" validate:"required"`
	Type     string         `json:"type" validate:"required,oneof=text image file location voice"`
	ReplyTo  string         `json:"replyTo,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

type MarkAsReadPayload struct {
	ChatID     string   `json:"chatId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"required,min=1,dive,required"`
}

type ChatPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}
