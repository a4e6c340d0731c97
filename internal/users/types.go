package users

import (
	"context"
	"time"
)

// User is a platform account. PasswordHash never leaves the service.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullname"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
}

// Summary is the minimal public profile used when expanding message
// authors and channel members.
type Summary struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// Directory resolves user ids to public profiles. Implemented by Service;
// consumers depend on this interface so they can be tested with fakes.
type Directory interface {
	Get(ctx context.Context, id string) (User, error)
	Summaries(ctx context.Context, ids []string) (map[string]Summary, error)
}
