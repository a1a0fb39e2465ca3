package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/observability"
)

var _ contract.Worker = (*ChatShardWorker)(nil)

// MessageCreator persists a message and publishes its events.
type MessageCreator interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Message, error)
}

// ChatShardWorker owns a subset of chats, chosen by hashing the chat id.
// It runs commands one at a time, so messages of a chat are persisted
// and published in the order they were dispatched.
type ChatShardWorker struct {
	shard    int
	commands <-chan domain.Command
	messages MessageCreator
	monitor  *observability.Monitor
	log      *slog.Logger
}

func NewChatShardWorker(shard int, commands <-chan domain.Command, messages MessageCreator,
	monitor *observability.Monitor, log *slog.Logger) *ChatShardWorker {
	return &ChatShardWorker{
		shard:    shard,
		commands: commands,
		messages: messages,
		monitor:  monitor,
		log:      log.With("shard", shard),
	}
}

func (w *ChatShardWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

func (w *ChatShardWorker) handle(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.SendMessageCommand:
		message, err := w.messages.Create(ctx, c.Draft)
		if err != nil {
			w.log.Debug("Message rejected", "chat_id", c.Draft.ChatID, "user_id", c.Draft.SenderID, "error", err)
		} else {
			w.monitor.IncrMessagesCreated()
		}
		select {
		case c.Reply <- domain.SendMessageResult{Message: message, Err: err}:
		default:
			w.log.Warn("Reply slot already used", "chat_id", c.Draft.ChatID)
		}
	default:
		w.log.Debug("Unknown command", "chat_id", cmd.ChatKey())
	}
}
