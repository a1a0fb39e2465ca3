package sink_test

import (
	"context"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/sink"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := sink.NewConnectionSink("c1", 2)
	typing := event.UserTyping{UserID: "u1", Chat: "chat-1", IsTyping: true}

	// Given a queue of two slots
	req.NoError(s.Consume(ctx, typing))
	req.NoError(s.Consume(ctx, typing))

	// When a third event arrives, it is dropped
	req.ErrorIs(s.Consume(ctx, typing), errors.ErrSinkFull)

	// Then the queued events come out in order
	req.Equal(typing, <-s.Events())
	req.Len(s.Events(), 1)

	// When the connection closes, nothing else is accepted
	s.Close()
	s.Close()
	req.ErrorIs(s.Consume(ctx, typing), errors.ErrSessionClosed)
	_, open := <-s.Done()
	req.False(open)
}

type recordingIndex struct {
	indexed []string
	deleted []string
}

func (r *recordingIndex) Index(_ context.Context, m domain.Message) error {
	r.indexed = append(r.indexed, m.ID)
	return nil
}

func (r *recordingIndex) Delete(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func TestSearchSink_Consume(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := &recordingIndex{}
	s := sink.NewSearchSink(index, logs.GetLoggerFromLevel(slog.LevelDebug))

	// Text messages are indexed, media are not
	req.NoError(s.Consume(ctx, event.NewMessageCreated(domain.Message{ID: "m1", ChatID: "c", Type: domain.TextMessage, Content: "hi"})))
	req.NoError(s.Consume(ctx, event.NewMessageCreated(domain.Message{ID: "m2", ChatID: "c", Type: domain.ImageMessage})))

	// Deletions leave the index
	req.NoError(s.Consume(ctx, event.MessageDeleted{Chat: "c", MessageID: "m1"}))

	// Other events are ignored
	req.NoError(s.Consume(ctx, event.UserTyping{Chat: "c"}))

	req.Equal([]string{"m1"}, index.indexed)
	req.Equal([]string{"m1"}, index.deleted)
}
