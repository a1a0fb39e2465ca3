package services

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain/mimetypes"
	"match-chat/errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Presigner issues time-limited URLs on the object store.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Upload struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Download struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type IAttachmentService interface {
	PresignUpload(ctx context.Context, chatID, userID, fileName, contentType string) (Upload, error)
	PresignDownload(ctx context.Context, chatID, userID, key string) (Download, error)
}

// AttachmentService hands out object store URLs for the media of image, file and voice messages.
// Every key lives under chats/{chatId}/ so that access follows chat membership.
type AttachmentService struct {
	authorizer ChatAuthorizer
	presigner  Presigner
	ttl        time.Duration
	now        Clock
	log        *slog.Logger
}

func NewAttachmentService(authorizer ChatAuthorizer, presigner Presigner, ttl time.Duration, now Clock, log *slog.Logger) *AttachmentService {
	return &AttachmentService{authorizer: authorizer, presigner: presigner, ttl: ttl, now: now, log: log}
}

func chatPrefix(chatID string) string { return fmt.Sprintf("chats/%s/", chatID) }

func (s *AttachmentService) PresignUpload(ctx context.Context, chatID, userID, fileName, contentType string) (Upload, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, chatID); err != nil {
		return Upload{}, err
	}
	kind, ok := mimetypes.Classify(contentType)
	if !ok {
		return Upload{}, fmt.Errorf("%w: unsupported content type %q", errors.ErrInvalidPayload, contentType)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return Upload{}, fmt.Errorf("%w: file name is empty", errors.ErrInvalidPayload)
	}
	if path.Ext(name) == "" {
		name += mimetypes.Extension(contentType)
	}

	key := chatPrefix(chatID) + uuid.NewString() + "/" + name
	url, err := s.presigner.PresignUpload(ctx, key, contentType, s.ttl)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	s.log.Debug("Upload presigned", "chat_id", chatID, "user_id", userID, "key", key)
	return Upload{UploadURL: url, Key: key, Kind: string(kind), ExpiresAt: s.now().Add(s.ttl)}, nil
}

func (s *AttachmentService) PresignDownload(ctx context.Context, chatID, userID, key string) (Download, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, chatID); err != nil {
		return Download{}, err
	}
	if !strings.HasPrefix(key, chatPrefix(chatID)) || strings.Contains(key, "..") {
		return Download{}, fmt.Errorf("%w: key %q is outside chat %s", errors.ErrForbidden, key, chatID)
	}
	url, err := s.presigner.PresignDownload(ctx, key, s.ttl)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	return Download{URL: url, ExpiresAt: s.now().Add(s.ttl)}, nil
}
