package messages

import (
	"context"
	"time"

	"github.com/wardline/wardline/internal/users"
)

// Message is a persisted chat message. Exactly one of ChannelID and
// RecipientID is set: channel messages fan out to a room, direct messages
// go to a single recipient.
type Message struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	AuthorID      string         `json:"author_id"`
	Author        *users.Summary `json:"user,omitempty"`
	ChannelID     string         `json:"channel_id,omitempty"`
	RecipientID   string         `json:"recipient_id,omitempty"`
	ParentID      string         `json:"parent_id,omitempty"`
	Forwarded     bool           `json:"forwarded"`
	FromChannelID string         `json:"from_channel_id,omitempty"`
	FromChannel   string         `json:"from_channel,omitempty"`
	Read          bool           `json:"read"`
	Receipts      []Receipt      `json:"read_receipts,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Receipt records that a user observed a message at a given time.
// The receipt log is append-only and never deduplicated.
type Receipt struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"fullname,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendInput carries the fields for persisting a new message.
type AppendInput struct {
	AuthorID      string
	ChannelID     string
	RecipientID   string
	Content       string
	ParentID      string
	Forwarded     bool
	FromChannelID string
}

// Store is the message persistence contract. Implemented by DBService;
// the messaging core and forwarding coordinator depend on this interface.
type Store interface {
	Append(ctx context.Context, input AppendInput) (Message, error)
	Edit(ctx context.Context, id, content string) (Message, error)
	AppendReceipt(ctx context.Context, messageID, readerID string, ts time.Time) (Receipt, error)
	Get(ctx context.Context, id string) (Message, error)
	ListByChannel(ctx context.Context, channelID string) ([]Message, error)
}
