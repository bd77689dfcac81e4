package transport

import "context"

// RecipientID identifies a direct-message recipient (Telegram: the user's chat id).
type RecipientID int64

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FirstName    string
	LastName     string
	Text         string
	IsGroup      bool
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter abstracts the chat platform transport.
//
// Start feeds incoming updates into out until Stop is called; both are
// idempotent. SendText is safe for concurrent use.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to RecipientID, text string, opt *SendOptions) (MessageRef, error)
	// NotifyTyping shows a "typing" indicator to the recipient. Best-effort.
	NotifyTyping(ctx context.Context, to RecipientID) error
}
