package domain

import "time"

// MaxRecentlyActiveWindow bounds how long after its last activity a user still counts as recently active.
const MaxRecentlyActiveWindow = 5 * time.Minute

// User is owned by the profile system. Only its activity timestamp is tracked here.
type User struct {
	ID         string    `json:"id" dynamodbav:"id"`
	LastSeenAt time.Time `json:"lastSeenAt" dynamodbav:"lastSeenAt"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

func (u User) IsRecentlyActive(now time.Time, window time.Duration) bool {
	if window <= 0 || window > MaxRecentlyActiveWindow {
		window = MaxRecentlyActiveWindow
	}
	if u.LastSeenAt.IsZero() {
		return false
	}
	return now.Sub(u.LastSeenAt) <= window
}

// Presence exposes the two online signals separately.
type Presence struct {
	UserID           string     `json:"userId"`
	IsConnected      bool       `json:"isConnected"`
	IsRecentlyActive bool       `json:"isRecentlyActive"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
}

// ConfirmedMatch is the listing view of an accepted match.
type ConfirmedMatch struct {
	Match            Match  `json:"match"`
	OtherUserID      string `json:"otherUserId"`
	IsConnected      bool   `json:"isConnected"`
	IsRecentlyActive bool   `json:"isRecentlyActive"`
	UnreadCount      int    `json:"unreadCount"`
}
