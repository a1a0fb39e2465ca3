package storage_test

import (
	"context"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/search"
	"match-chat/infrastructure/storage"
	"match-chat/services"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blugelabs/bluge"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *storage.MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return storage.NewMessageIndex(writer, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestMessageIndex_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)

	// Given messages in two chats
	for _, m := range []domain.Message{
		{ID: "m1", ChatID: "chat-1", SenderID: "alice", Content: "dinner on friday?"},
		{ID: "m2", ChatID: "chat-1", SenderID: "bob", Content: "friday dinner works"},
		{ID: "m3", ChatID: "chat-1", SenderID: "bob", Content: "see you at the cinema"},
		{ID: "m4", ChatID: "chat-2", SenderID: "carol", Content: "dinner tonight"},
	} {
		req.NoError(index.Index(ctx, m))
	}

	// When searching inside chat-1
	hits, err := index.Search(ctx, search.NewSearchQuery("chat-1", "dinner"))

	// Then only its matching messages come back
	req.NoError(err)
	req.ElementsMatch([]string{"m1", "m2"}, lo.Map(hits, func(h services.Hit, _ int) string { return h.MessageID }))

	// When restricted to a sender
	hits, err = index.Search(ctx, search.NewSearchQuery("chat-1", "dinner --from bob"))
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("m2", hits[0].MessageID)
	req.Equal("bob", hits[0].SenderID)
	req.Equal("friday dinner works", hits[0].Content)

	// When a message is deleted it disappears from results
	req.NoError(index.Delete(ctx, "m2"))
	hits, err = index.Search(ctx, search.NewSearchQuery("chat-1", "dinner"))
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("m1", hits[0].MessageID)
}

func TestS3Presigner(t *testing.T) {
	req := require.New(t)
	client := s3.New(s3.Options{
		Region: "eu-west-3",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	})
	presigner := storage.NewS3Presigner(client, "match-chat-media")
	key := "chats/chat-1/42/beach.png"

	upload, err := presigner.PresignUpload(context.Background(), key, "image/png", 15*time.Minute)
	req.NoError(err)
	parsed, err := url.Parse(upload)
	req.NoError(err)
	req.True(strings.HasSuffix(parsed.Path, key))
	req.Contains(parsed.Host, "match-chat-media")
	req.Equal("900", parsed.Query().Get("X-Amz-Expires"))

	download, err := presigner.PresignDownload(context.Background(), key, time.Minute)
	req.NoError(err)
	parsed, err = url.Parse(download)
	req.NoError(err)
	req.Equal("60", parsed.Query().Get("X-Amz-Expires"))
}
