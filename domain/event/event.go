package event

import (
	"match-chat/domain"
	"time"
)

type Type string

const (
	NewMessageType        Type = "newMessage"
	UnreadCountUpdateType Type = "unreadCountUpdate"
	UserTypingType        Type = "userTyping"
	MessagesReadType      Type = "messagesRead"
	MessageDeletedType    Type = "messageDeleted"
	UserStatusChangeType  Type = "userStatusChange"
	MatchRequestedType    Type = "matchRequested"
	MatchAcceptedType     Type = "matchAccepted"
)

// DomainEvent is what the fanout delivers. Its JSON encoding is the payload sent to clients.
type DomainEvent interface {
	Type() Type
}

// RoomEvent is delivered to every connection joined to a chat room.
type RoomEvent interface {
	DomainEvent
	ChatID() string
	// ExcludedUser is skipped by the fanout, "" when nobody is.
	ExcludedUser() string
}

// UserEvent is delivered to every connection of its recipients, regardless of rooms.
type UserEvent interface {
	DomainEvent
	Recipients() []string
}

type MessageCreated struct {
	Message domain.Message `json:"message"`
	Chat    string         `json:"chatId"`
}

func NewMessageCreated(m domain.Message) MessageCreated {
	return MessageCreated{Message: m, Chat: m.ChatID}
}

func (e MessageCreated) Type() Type           { return NewMessageType }
func (e MessageCreated) ChatID() string       { return e.Chat }
func (e MessageCreated) ExcludedUser() string { return "" }

type UnreadCountUpdated struct {
	Chat        string `json:"chatId"`
	UnreadCount int    `json:"unreadCount"`
	UserID      string `json:"-"`
}

func (e UnreadCountUpdated) Type() Type           { return UnreadCountUpdateType }
func (e UnreadCountUpdated) Recipients() []string { return []string{e.UserID} }

type UserTyping struct {
	UserID   string `json:"userId"`
	Chat     string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

func (e UserTyping) Type() Type           { return UserTypingType }
func (e UserTyping) ChatID() string       { return e.Chat }
func (e UserTyping) ExcludedUser() string { return e.UserID }

type MessagesRead struct {
	Chat       string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
	ReadBy     string   `json:"readBy"`
}

func (e MessagesRead) Type() Type           { return MessagesReadType }
func (e MessagesRead) ChatID() string       { return e.Chat }
func (e MessagesRead) ExcludedUser() string { return "" }

type MessageDeleted struct {
	Chat      string `json:"chatId"`
	MessageID string `json:"messageId"`
}

func (e MessageDeleted) Type() Type           { return MessageDeletedType }
func (e MessageDeleted) ChatID() string       { return e.Chat }
func (e MessageDeleted) ExcludedUser() string { return "" }

type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

type UserStatusChanged struct {
	UserID    string    `json:"userId"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Contacts  []string  `json:"-"`
}

func (e UserStatusChanged) Type() Type           { return UserStatusChangeType }
func (e UserStatusChanged) Recipients() []string { return e.Contacts }

type MatchRequested struct {
	Match domain.Match `json:"match"`
}

func (e MatchRequested) Type() Type           { return MatchRequestedType }
func (e MatchRequested) Recipients() []string { return []string{e.Match.UserB} }

type MatchAccepted struct {
	Match domain.Match `json:"match"`
}

func (e MatchAccepted) Type() Type           { return MatchAcceptedType }
func (e MatchAccepted) Recipients() []string { return []string{e.Match.UserA, e.Match.UserB} }
