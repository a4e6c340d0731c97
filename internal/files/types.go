package files

import (
	"context"
	"io"
	"time"

	"github.com/wardline/wardline/internal/users"
)

// MaxFileBytes is the default upload size limit.
const MaxFileBytes int64 = 32 << 20

// File is a channel-scoped stored file. The binary is content-addressed;
// forwarding a file copies the metadata row and reuses the bytes, keeping
// the original uploader identity.
type File struct {
	ID            string         `json:"id"`
	ChannelID     string         `json:"channel_id"`
	UploaderID    string         `json:"uploader_id"`
	Uploader      *users.Summary `json:"uploader,omitempty"`
	Name          string         `json:"name"`
	Mime          string         `json:"mime"`
	SizeBytes     int64          `json:"size_bytes"`
	ContentHash   string         `json:"content_hash"`
	StorageKey    string         `json:"storage_key"`
	Forwarded     bool           `json:"forwarded"`
	FromChannelID string         `json:"from_channel_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// UploadInput carries the data for persisting a new file.
type UploadInput struct {
	ChannelID  string
	UploaderID string
	Name       string
	Mime       string
	// Reader provides the raw bytes; caller is responsible for closing.
	Reader io.Reader
	// MaxBytes optionally overrides the default size limit.
	MaxBytes int64
}

// Library is the file-store contract consumed by the forwarding coordinator.
type Library interface {
	Copy(ctx context.Context, fileID, destChannelID string) (File, error)
}
