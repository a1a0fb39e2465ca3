// This file defines Message records and the rules applied before they are stored.
package domain

import (
	"fmt"
	"match-chat/domain/mimetypes"
	"match-chat/errors"
	"strings"
	"time"
	"unicode/utf8"
)

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "[message deleted]"

type MessageType string

const (
	TextMessage     MessageType = "text"
	ImageMessage    MessageType = "image"
	FileMessage     MessageType = "file"
	LocationMessage MessageType = "location"
	VoiceMessage    MessageType = "voice"
)

func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, FileMessage, LocationMessage, VoiceMessage:
		return true
	default:
		return false
	}
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// Advance never moves a status backwards.
func (s MessageStatus) Advance(to MessageStatus) MessageStatus {
	if to.rank() > s.rank() {
		return to
	}
	return s
}

type Metadata map[string]any

type Message struct {
	ID        string        `json:"id" dynamodbav:"id"`
	ChatID    string        `json:"chatId" dynamodbav:"chatId"`
	SenderID  string        `json:"senderId" dynamodbav:"senderId"`
	Content   string        `json:"content" dynamodbav:"content"`
	Type      MessageType   `json:"type" dynamodbav:"type"`
	Status    MessageStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time     `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" dynamodbav:"updatedAt"`
	IsEdited  bool          `json:"isEdited" dynamodbav:"isEdited"`
	IsDeleted bool          `json:"isDeleted" dynamodbav:"isDeleted"`
	ReplyTo   string        `json:"replyTo,omitempty" dynamodbav:"replyTo,omitempty"`
	Metadata  Metadata      `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// SoftDelete keeps the record but hides what was said.
func (m Message) SoftDelete(now time.Time) Message {
	m.Content = DeletedPlaceholder
	m.IsDeleted = true
	m.Metadata = nil
	m.UpdatedAt = now
	return m
}

// Draft is an inbound message before it gets an id and a timestamp.
type Draft struct {
	ChatID   string
	SenderID string
	Content  string
	Type     MessageType
	ReplyTo  string
	Metadata Metadata
}

// Validate checks the content against the message type.
func (d Draft) Validate(maxContentLength int) error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", errors.ErrInvalidPayload, d.Type)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is empty", errors.ErrInvalidPayload)
	}
	if maxContentLength > 0 && utf8.RuneCountInString(d.Content) > maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", errors.ErrInvalidPayload, maxContentLength)
	}
	switch d.Type {
	case ImageMessage, FileMessage, VoiceMessage:
		return d.validateAttachment()
	case LocationMessage:
		return d.validateLocation()
	}
	return nil
}

func (d Draft) validateAttachment() error {
	raw, ok := d.Metadata["mimeType"].(string)
	if !ok || raw == "" {
		return fmt.Errorf("%w: %s message needs a mimeType", errors.ErrInvalidPayload, d.Type)
	}
	kind, ok := mimetypes.Classify(raw)
	if !ok {
		return fmt.Errorf("%w: unsupported mime type %q", errors.ErrInvalidPayload, raw)
	}
	switch {
	case d.Type == ImageMessage && kind != mimetypes.KindImage:
		return fmt.Errorf("%w: %q is not an image", errors.ErrInvalidPayload, raw)
	case d.Type == VoiceMessage && kind != mimetypes.KindAudio:
		return fmt.Errorf("%w: %q is not an audio format", errors.ErrInvalidPayload, raw)
	}
	return nil
}

func (d Draft) validateLocation() error {
	for _, field := range []string{"lat", "lng"} {
		if _, ok := d.Metadata[field].(float64); !ok {
			return fmt.Errorf("%w: location message needs a numeric %s", errors.ErrInvalidPayload, field)
		}
	}
	return nil
}
