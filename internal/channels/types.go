package channels

import (
	"context"
	"time"

	"github.com/wardline/wardline/internal/users"
)

// Channel is a named group-messaging context with an owner and member set.
// The owner is implicitly authorized even when absent from MemberIDs.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tag         string    `json:"tag"`
	Specialty   bool      `json:"specialty"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is a channel with owner and members resolved to public profiles.
type View struct {
	Channel
	Owner   users.Summary   `json:"owner"`
	Members []users.Summary `json:"members"`
}

// UpsertInput carries the fields for CreateOrUpdate. The upsert key is the
// case-insensitive name; all other fields overwrite on conflict.
type UpsertInput struct {
	Name        string
	Description string
	Tag         string
	Specialty   bool
	OwnerID     string
	MemberIDs   []string
}

// Directory is the channel directory contract consumed by the session
// gateway and the forwarding coordinator.
type Directory interface {
	Get(ctx context.Context, id string) (Channel, error)
	GetByTag(ctx context.Context, tag string) (Channel, error)
	CanAccess(ctx context.Context, channelID, userID string) (bool, error)
}
