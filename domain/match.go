// Package domain contains core concepts of the matching and chat system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"match-chat/errors"
	"time"
)

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchAccepted, MatchRejected:
		return true
	default:
		return false
	}
}

// Match is the single record kept for an unordered pair of users.
// UserA is the first liker (and InitiatedBy), UserB the receiver.
type Match struct {
	ID          string      `json:"id" dynamodbav:"id"`
	UserA       string      `json:"userA" dynamodbav:"userA"`
	UserB       string      `json:"userB" dynamodbav:"userB"`
	Status      MatchStatus `json:"status" dynamodbav:"status"`
	Score       float64     `json:"score" dynamodbav:"score"`
	IsSuperLike bool        `json:"isSuperLike" dynamodbav:"isSuperLike"`
	InitiatedBy string      `json:"initiatedBy" dynamodbav:"initiatedBy"`
	ChatID      string      `json:"chatId,omitempty" dynamodbav:"chatId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" dynamodbav:"updatedAt"`
	Version     int64       `json:"-" dynamodbav:"version"`
}

// PairKey orders two user ids so that (a,b) and (b,a) address the same row.
func PairKey(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (m Match) Involves(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}

// Counterpart returns the other side of the match, or "" when userID is not part of it.
func (m Match) Counterpart(userID string) string {
	switch userID {
	case m.UserA:
		return m.UserB
	case m.UserB:
		return m.UserA
	default:
		return ""
	}
}

func (m Match) IsTerminal() bool {
	return m.Status == MatchAccepted || m.Status == MatchRejected
}

// Accept moves a pending match to accepted and binds the chat id the chat will be created with.
func (m Match) Accept(actingUser, chatID string, now time.Time) (Match, error) {
	if err := m.guardReceiver(actingUser); err != nil {
		return Match{}, err
	}
	m.Status = MatchAccepted
	m.ChatID = chatID
	m.UpdatedAt = now
	return m, nil
}

func (m Match) Reject(actingUser string, now time.Time) (Match, error) {
	if err := m.guardReceiver(actingUser); err != nil {
		return Match{}, err
	}
	m.Status = MatchRejected
	m.UpdatedAt = now
	return m, nil
}

func (m Match) guardReceiver(actingUser string) error {
	if actingUser != m.UserB {
		return fmt.Errorf("%w: only the receiver can answer match %s", errors.ErrForbidden, m.ID)
	}
	if m.Status != MatchPending {
		return fmt.Errorf("%w: match %s is %s", errors.ErrInvalidState, m.ID, m.Status)
	}
	return nil
}

// MatchRole selects which side of the match a listing is made from.
type MatchRole string

const (
	RoleAny       MatchRole = "any"
	RoleReceiver  MatchRole = "receiver"
	RoleInitiator MatchRole = "initiator"
)

// MatchFilter drives the confirmed, pending-received and sent queries.
type MatchFilter struct {
	Status *MatchStatus
	Role   MatchRole
}

func (f MatchFilter) Keep(userID string, m Match) bool {
	if f.Status != nil && m.Status != *f.Status {
		return false
	}
	switch f.Role {
	case RoleReceiver:
		return m.UserB == userID && m.InitiatedBy != userID
	case RoleInitiator:
		return m.InitiatedBy == userID
	default:
		return m.Involves(userID)
	}
}

// RecencyOf returns the timestamp a listing is sorted on.
// Confirmed matches move with their last update, the others with their creation.
func (f MatchFilter) RecencyOf(m Match) time.Time {
	if f.Status != nil && *f.Status == MatchAccepted {
		return m.UpdatedAt
	}
	return m.CreatedAt
}
