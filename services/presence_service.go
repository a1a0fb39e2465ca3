package services

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/repositories"
	"time"
)

type IPresenceService interface {
	Connect(ctx context.Context, userID, connID string, sink contract.EventSink) bool
	Disconnect(ctx context.Context, userID, connID string) bool
	IsConnected(userID string) bool
	IsRecentlyActive(ctx context.Context, userID string) bool
	Presence(ctx context.Context, userID string) (domain.Presence, error)
}

// PresenceService keeps the live connection signal (registry) and the
// last-seen signal (store) apart, and tells contacts when a user flips.
type PresenceService struct {
	registry  contract.IRegistry
	users     repositories.IUserRepository
	matches   repositories.IMatchRepository
	publisher contract.EventPublisher
	window    time.Duration
	now       Clock
	log       *slog.Logger
}

func NewPresenceService(registry contract.IRegistry, users repositories.IUserRepository,
	matches repositories.IMatchRepository, publisher contract.EventPublisher,
	window time.Duration, now Clock, log *slog.Logger) *PresenceService {
	if window <= 0 || window > domain.MaxRecentlyActiveWindow {
		window = domain.MaxRecentlyActiveWindow
	}
	return &PresenceService{
		registry:  registry,
		users:     users,
		matches:   matches,
		publisher: publisher,
		window:    window,
		now:       now,
		log:       log,
	}
}

// Connect registers the connection and reports whether the user just came online.
// Store failures are logged, presence stays usable without them.
func (s *PresenceService) Connect(ctx context.Context, userID, connID string, sink contract.EventSink) bool {
	wentOnline := s.registry.RegisterConnection(userID, connID, sink)
	at := s.now()
	if err := s.users.Touch(ctx, userID, at); err != nil {
		s.log.Warn("Unable to persist last seen", "user_id", userID, "error", err)
	}
	if wentOnline {
		s.broadcast(ctx, userID, event.Online, at)
	}
	return wentOnline
}

// Disconnect removes the connection; the last one flips the user offline and stamps last seen.
func (s *PresenceService) Disconnect(ctx context.Context, userID, connID string) bool {
	wentOffline := s.registry.UnregisterConnection(userID, connID)
	if !wentOffline {
		return false
	}
	at := s.now()
	if err := s.users.Touch(ctx, userID, at); err != nil {
		s.log.Warn("Unable to persist last seen", "user_id", userID, "error", err)
	}
	s.broadcast(ctx, userID, event.Offline, at)
	return true
}

func (s *PresenceService) broadcast(ctx context.Context, userID string, status event.Status, at time.Time) {
	contacts, err := contactsOf(ctx, s.matches, userID)
	if err != nil {
		s.log.Warn("Unable to resolve contacts", "user_id", userID, "error", err)
		return
	}
	if len(contacts) == 0 {
		return
	}
	s.publisher.Publish(event.UserStatusChanged{
		UserID:    userID,
		Status:    status,
		Timestamp: at,
		Contacts:  contacts,
	})
}

func (s *PresenceService) IsConnected(userID string) bool {
	return s.registry.IsConnected(userID)
}

func (s *PresenceService) IsRecentlyActive(ctx context.Context, userID string) bool {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Debug("Unable to read last seen", "user_id", userID, "error", err)
		}
		return false
	}
	return user.IsRecentlyActive(s.now(), s.window)
}

// Presence never fails for an unknown user, it just reports both signals off.
func (s *PresenceService) Presence(ctx context.Context, userID string) (domain.Presence, error) {
	presence := domain.Presence{UserID: userID, IsConnected: s.registry.IsConnected(userID)}
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return presence, nil
	}
	if err != nil {
		return domain.Presence{}, err
	}
	lastSeen := user.LastSeenAt
	presence.LastSeenAt = &lastSeen
	presence.IsRecentlyActive = user.IsRecentlyActive(s.now(), s.window)
	return presence, nil
}
