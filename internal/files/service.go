// Package files provides channel-scoped file sharing over a
// content-addressed storage provider.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/wardline/wardline/internal/db"
	"github.com/wardline/wardline/internal/storage"
	"github.com/wardline/wardline/internal/users"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// Service persists file metadata in Postgres and bytes through a storage
// provider, keyed by content hash.
type Service struct {
	pool      *pgxpool.Pool
	provider  storage.Provider
	directory users.Directory
	logger    *slog.Logger
}

// NewService creates a file service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, provider storage.Provider, directory users.Directory) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:      pool,
		provider:  provider,
		directory: directory,
		logger:    log.With(slog.String("service", "files")),
	}
}

const fileColumns = `id, channel_id, uploader_id, name, mime, size_bytes, content_hash, storage_key, forwarded, from_channel_id, created_at`

// Upload hashes and stores the file bytes, deduplicating by content hash,
// and persists a metadata row scoped to the channel.
func (s *Service) Upload(ctx context.Context, input UploadInput) (File, error) {
	if s.provider == nil {
		return File{}, fmt.Errorf("storage provider not configured")
	}
	if input.Reader == nil {
		return File{}, fmt.Errorf("reader is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return File{}, fmt.Errorf("file name is required")
	}
	pgChannelID, err := dbpkg.ParseUUID(input.ChannelID)
	if err != nil {
		return File{}, fmt.Errorf("invalid channel id: %w", err)
	}
	pgUploaderID, err := dbpkg.ParseUUID(input.UploaderID)
	if err != nil {
		return File{}, fmt.Errorf("invalid uploader id: %w", err)
	}

	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxFileBytes
	}
	contentHash, sizeBytes, tempPath, err := spoolAndHashWithLimit(input.Reader, maxBytes)
	if err != nil {
		return File{}, err
	}
	defer func() {
		_ = os.Remove(tempPath)
	}()

	mimeType := coalesce(input.Mime, mime.TypeByExtension(path.Ext(name)), "application/octet-stream")
	storageKey := path.Join(contentHash[:2], contentHash)

	// Content dedup: skip the write when the bytes are already stored.
	if reader, openErr := s.provider.Open(ctx, storageKey); openErr == nil {
		reader.Close()
	} else {
		tempFile, err := os.Open(tempPath)
		if err != nil {
			return File{}, fmt.Errorf("open temp file: %w", err)
		}
		defer tempFile.Close()
		if err := s.provider.Put(ctx, storageKey, tempFile); err != nil {
			return File{}, fmt.Errorf("store file: %w", err)
		}
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO files (channel_id, uploader_id, name, mime, size_bytes, content_hash, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+fileColumns,
		pgChannelID, pgUploaderID, name, mimeType, sizeBytes, contentHash, storageKey,
	)
	file, err := scanFile(row)
	if err != nil {
		return File{}, err
	}
	s.expandUploader(ctx, &file)
	return file, nil
}

// Get returns file metadata by id.
func (s *Service) Get(ctx context.Context, id string) (File, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return File{}, ErrFileNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, pgID)
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, err
	}
	s.expandUploader(ctx, &file)
	return file, nil
}

// ListByChannel returns all files shared into a channel, uploader expanded.
func (s *Service) ListByChannel(ctx context.Context, channelID string) ([]File, error) {
	pgChannelID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return nil, fmt.Errorf("invalid channel id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files WHERE channel_id = $1 ORDER BY created_at, id`, pgChannelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		s.expandUploader(ctx, &items[i])
	}
	return items, nil
}

// Open returns a reader for the file's bytes together with its metadata.
func (s *Service) Open(ctx context.Context, id string) (io.ReadCloser, File, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, File{}, err
	}
	reader, err := s.provider.Open(ctx, file.StorageKey)
	if err != nil {
		return nil, File{}, fmt.Errorf("open storage: %w", err)
	}
	return reader, file, nil
}

// Copy duplicates a file's metadata into the destination channel, marking
// it forwarded and recording the origin channel. The uploader identity is
// preserved and the content-addressed bytes are shared, not copied.
func (s *Service) Copy(ctx context.Context, fileID, destChannelID string) (File, error) {
	source, err := s.Get(ctx, fileID)
	if err != nil {
		return File{}, err
	}
	pgDestID, err := dbpkg.ParseUUID(destChannelID)
	if err != nil {
		return File{}, fmt.Errorf("invalid destination channel id: %w", err)
	}
	pgUploaderID, err := dbpkg.ParseUUID(source.UploaderID)
	if err != nil {
		return File{}, err
	}
	pgFromChannelID, err := dbpkg.ParseUUID(source.ChannelID)
	if err != nil {
		return File{}, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO files (channel_id, uploader_id, name, mime, size_bytes, content_hash, storage_key, forwarded, from_channel_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		 RETURNING `+fileColumns,
		pgDestID, pgUploaderID, source.Name, source.Mime, source.SizeBytes, source.ContentHash, source.StorageKey, pgFromChannelID,
	)
	file, err := scanFile(row)
	if err != nil {
		return File{}, err
	}
	s.expandUploader(ctx, &file)
	return file, nil
}

func (s *Service) expandUploader(ctx context.Context, file *File) {
	summaries, err := s.directory.Summaries(ctx, []string{file.UploaderID})
	if err != nil {
		s.logger.Warn("resolve uploader failed", slog.Any("error", err))
		return
	}
	if summary, ok := summaries[file.UploaderID]; ok {
		resolved := summary
		file.Uploader = &resolved
	}
}

// spoolAndHashWithLimit streams the reader to a temp file while hashing,
// enforcing the byte limit. Returns the hex hash, size, and temp path.
func spoolAndHashWithLimit(reader io.Reader, maxBytes int64) (string, int64, string, error) {
	tmp, err := os.CreateTemp("", "wardline-upload-*")
	if err != nil {
		return "", 0, "", err
	}
	hasher := sha256.New()
	limited := io.LimitReader(reader, maxBytes+1)
	size, err := io.Copy(io.MultiWriter(tmp, hasher), limited)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", 0, "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", 0, "", err
	}
	if size > maxBytes {
		os.Remove(tmp.Name())
		return "", 0, "", ErrFileTooLarge
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, tmp.Name(), nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func scanFile(row interface{ Scan(dest ...any) error }) (File, error) {
	var (
		file            File
		pgID            pgtype.UUID
		pgChannelID     pgtype.UUID
		pgUploaderID    pgtype.UUID
		pgFromChannelID pgtype.UUID
		createdAt       pgtype.Timestamptz
	)
	err := row.Scan(&pgID, &pgChannelID, &pgUploaderID, &file.Name, &file.Mime, &file.SizeBytes,
		&file.ContentHash, &file.StorageKey, &file.Forwarded, &pgFromChannelID, &createdAt)
	if err != nil {
		return File{}, err
	}
	file.ID = dbpkg.UUIDToString(pgID)
	file.ChannelID = dbpkg.UUIDToString(pgChannelID)
	file.UploaderID = dbpkg.UUIDToString(pgUploaderID)
	file.FromChannelID = dbpkg.UUIDToString(pgFromChannelID)
	file.CreatedAt = dbpkg.TimeFromPg(createdAt)
	return file, nil
}
