// Package messages provides the message store: append, edit, append-only
// read receipts, and channel history with author expansion.
package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/wardline/wardline/internal/db"
	"github.com/wardline/wardline/internal/users"
)

var (
	// ErrMessageNotFound is returned when a message id resolves to nothing.
	ErrMessageNotFound = errors.New("message not found")
	// ErrInvalidChannel is returned when a channel id is not a valid UUID.
	ErrInvalidChannel = errors.New("invalid channel id")
)

// DBService is the Postgres-backed message store.
type DBService struct {
	pool      *pgxpool.Pool
	directory users.Directory
	logger    *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, directory users.Directory) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		pool:      pool,
		directory: directory,
		logger:    log.With(slog.String("service", "messages")),
	}
}

const messageColumns = `m.id, m.content, m.author_id, m.channel_id, m.recipient_id, m.parent_id,
	m.forwarded, m.from_channel_id, fc.name, m.read, m.created_at, m.updated_at`

const messageFrom = ` FROM messages m LEFT JOIN channels fc ON fc.id = m.from_channel_id `

// Append persists a new message and returns it with the author expanded to
// a public profile. Broadcast is the caller's responsibility and must
// happen after this returns (persist-then-broadcast ordering).
func (s *DBService) Append(ctx context.Context, input AppendInput) (Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return Message{}, fmt.Errorf("message content is required")
	}
	if (input.ChannelID == "") == (input.RecipientID == "") {
		return Message{}, fmt.Errorf("exactly one of channel or recipient is required")
	}
	pgAuthorID, err := dbpkg.ParseUUID(input.AuthorID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid author id: %w", err)
	}
	pgChannelID, err := dbpkg.ParseOptionalUUID(input.ChannelID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid channel id: %w", err)
	}
	pgRecipientID, err := dbpkg.ParseOptionalUUID(input.RecipientID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid recipient id: %w", err)
	}
	pgParentID, err := dbpkg.ParseOptionalUUID(input.ParentID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid parent id: %w", err)
	}
	pgFromChannelID, err := dbpkg.ParseOptionalUUID(input.FromChannelID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid origin channel id: %w", err)
	}

	var id pgtype.UUID
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (content, author_id, channel_id, recipient_id, parent_id, forwarded, from_channel_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		input.Content, pgAuthorID, pgChannelID, pgRecipientID, pgParentID, input.Forwarded, pgFromChannelID,
	).Scan(&id)
	if err != nil {
		return Message{}, err
	}
	return s.Get(ctx, dbpkg.UUIDToString(id))
}

// Edit overwrites a message's content in place. Author, forwarded flag, and
// origin channel are never touched.
func (s *DBService) Edit(ctx context.Context, id, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("message content is required")
	}
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Message{}, ErrMessageNotFound
	}
	result, err := s.pool.Exec(ctx,
		`UPDATE messages SET content = $2, updated_at = now() WHERE id = $1`, pgID, content)
	if err != nil {
		return Message{}, err
	}
	if result.RowsAffected() == 0 {
		return Message{}, ErrMessageNotFound
	}
	return s.Get(ctx, id)
}

// AppendReceipt pushes a read receipt onto the message's append-only log
// and marks the message as read. Duplicate receipts from the same reader
// are kept.
func (s *DBService) AppendReceipt(ctx context.Context, messageID, readerID string, ts time.Time) (Receipt, error) {
	pgMessageID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return Receipt{}, ErrMessageNotFound
	}
	pgReaderID, err := dbpkg.ParseUUID(readerID)
	if err != nil {
		return Receipt{}, fmt.Errorf("invalid reader id: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	var readAt pgtype.Timestamptz
	err = s.pool.QueryRow(ctx,
		`INSERT INTO message_receipts (message_id, reader_id, read_at)
		 VALUES ($1, $2, $3)
		 RETURNING read_at`,
		pgMessageID, pgReaderID, pgtype.Timestamptz{Time: ts, Valid: true},
	).Scan(&readAt)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := s.pool.Exec(ctx, `UPDATE messages SET read = TRUE WHERE id = $1`, pgMessageID); err != nil {
		s.logger.Warn("mark message read failed", slog.String("message_id", messageID), slog.Any("error", err))
	}

	receipt := Receipt{UserID: readerID, Timestamp: dbpkg.TimeFromPg(readAt)}
	summaries, err := s.directory.Summaries(ctx, []string{readerID})
	if err == nil {
		if summary, ok := summaries[readerID]; ok {
			receipt.FullName = summary.FullName
		}
	}
	return receipt, nil
}

// Get returns a single message with author and forward origin expanded.
func (s *DBService) Get(ctx context.Context, id string) (Message, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Message{}, ErrMessageNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+messageColumns+messageFrom+`WHERE m.id = $1`, pgID)
	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrMessageNotFound
		}
		return Message{}, err
	}
	s.expandAuthors(ctx, []*Message{&message})
	return message, nil
}

// ListByChannel returns all messages for a channel in storage order, with
// authors, forward origins, and receipt logs attached.
func (s *DBService) ListByChannel(ctx context.Context, channelID string) ([]Message, error) {
	pgChannelID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, channelID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+messageFrom+`WHERE m.channel_id = $1 ORDER BY m.created_at, m.id`,
		pgChannelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Message, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.expandAuthors(ctx, refs)
	if err := s.attachReceipts(ctx, refs); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *DBService) expandAuthors(ctx context.Context, items []*Message) {
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.AuthorID)
	}
	summaries, err := s.directory.Summaries(ctx, uniqueStrings(ids))
	if err != nil {
		s.logger.Warn("resolve authors failed", slog.Any("error", err))
		return
	}
	for _, m := range items {
		if summary, ok := summaries[m.AuthorID]; ok {
			resolved := summary
			m.Author = &resolved
		}
	}
}

func (s *DBService) attachReceipts(ctx context.Context, items []*Message) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*Message, len(items))
	ids := make([]pgtype.UUID, 0, len(items))
	for _, m := range items {
		byID[m.ID] = m
		pgID, err := dbpkg.ParseUUID(m.ID)
		if err != nil {
			return err
		}
		ids = append(ids, pgID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT r.message_id, r.reader_id, u.full_name, r.read_at
		 FROM message_receipts r
		 JOIN users u ON u.id = r.reader_id
		 WHERE r.message_id = ANY ($1)
		 ORDER BY r.id`,
		ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pgMessageID pgtype.UUID
			pgReaderID  pgtype.UUID
			fullName    string
			readAt      pgtype.Timestamptz
		)
		if err := rows.Scan(&pgMessageID, &pgReaderID, &fullName, &readAt); err != nil {
			return err
		}
		if m, ok := byID[dbpkg.UUIDToString(pgMessageID)]; ok {
			m.Receipts = append(m.Receipts, Receipt{
				UserID:    dbpkg.UUIDToString(pgReaderID),
				FullName:  fullName,
				Timestamp: dbpkg.TimeFromPg(readAt),
			})
		}
	}
	return rows.Err()
}

func scanMessage(row interface{ Scan(dest ...any) error }) (Message, error) {
	var (
		message         Message
		pgID            pgtype.UUID
		pgAuthorID      pgtype.UUID
		pgChannelID     pgtype.UUID
		pgRecipientID   pgtype.UUID
		pgParentID      pgtype.UUID
		pgFromChannelID pgtype.UUID
		fromChannelName pgtype.Text
		createdAt       pgtype.Timestamptz
		updatedAt       pgtype.Timestamptz
	)
	err := row.Scan(&pgID, &message.Content, &pgAuthorID, &pgChannelID, &pgRecipientID, &pgParentID,
		&message.Forwarded, &pgFromChannelID, &fromChannelName, &message.Read, &createdAt, &updatedAt)
	if err != nil {
		return Message{}, err
	}
	message.ID = dbpkg.UUIDToString(pgID)
	message.AuthorID = dbpkg.UUIDToString(pgAuthorID)
	message.ChannelID = dbpkg.UUIDToString(pgChannelID)
	message.RecipientID = dbpkg.UUIDToString(pgRecipientID)
	message.ParentID = dbpkg.UUIDToString(pgParentID)
	message.FromChannelID = dbpkg.UUIDToString(pgFromChannelID)
	message.FromChannel = dbpkg.TextToString(fromChannelName)
	message.CreatedAt = dbpkg.TimeFromPg(createdAt)
	message.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	return message, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
