package domain

// Command is routed to the shard owning its chat.
type Command interface {
	ChatKey() string
}

type SendMessageResult struct {
	Message Message
	Err     error
}

// SendMessageCommand carries a draft to the ordered append path of its chat.
// Reply is buffered so the shard never blocks on a caller that went away.
type SendMessageCommand struct {
	Draft Draft
	Reply chan SendMessageResult
}

func NewSendMessageCommand(draft Draft) SendMessageCommand {
	return SendMessageCommand{Draft: draft, Reply: make(chan SendMessageResult, 1)}
}

func (c SendMessageCommand) ChatKey() string {
	return c.Draft.ChatID
}
