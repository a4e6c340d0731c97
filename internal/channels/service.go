// Package channels provides the channel directory: case-insensitive channel
// upsert, owner-gated membership writes, and resolved listings.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/wardline/wardline/internal/db"
	"github.com/wardline/wardline/internal/users"
)

var (
	// ErrChannelNotFound covers both a missing channel and a requester who
	// is not the owner. The two cases are deliberately indistinguishable so
	// non-owners cannot probe for channel existence.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrTagConflict is returned when a tag is already used by another channel.
	ErrTagConflict = errors.New("channel tag already in use")
)

// Service is the Postgres-backed channel directory.
type Service struct {
	pool      *pgxpool.Pool
	directory users.Directory
	logger    *slog.Logger
}

// NewService creates a channel service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, directory users.Directory) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:      pool,
		directory: directory,
		logger:    log.With(slog.String("service", "channels")),
	}
}

const channelColumns = `id, name, description, tag, specialty, owner_id, member_ids, created_at, updated_at`

// CreateOrUpdate upserts a channel keyed by its case-insensitive name.
// On conflict the description, tag, specialty, owner, and member set are
// overwritten (last writer wins for the whole record). A tag collision with
// a different channel fails with ErrTagConflict.
func (s *Service) CreateOrUpdate(ctx context.Context, input UpsertInput) (Channel, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Channel{}, fmt.Errorf("channel name is required")
	}
	tag := strings.TrimSpace(input.Tag)
	if tag == "" {
		return Channel{}, fmt.Errorf("channel tag is required")
	}
	pgOwnerID, err := dbpkg.ParseUUID(input.OwnerID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid owner id: %w", err)
	}
	pgMemberIDs, err := parseUUIDs(input.MemberIDs)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid member id: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO channels (name, description, tag, specialty, owner_id, member_ids)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (LOWER(name)) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			tag         = EXCLUDED.tag,
			specialty   = EXCLUDED.specialty,
			owner_id    = EXCLUDED.owner_id,
			member_ids  = EXCLUDED.member_ids,
			updated_at  = now()
		 RETURNING `+channelColumns,
		name, strings.TrimSpace(input.Description), tag, input.Specialty, pgOwnerID, pgMemberIDs,
	)
	channel, err := scanChannel(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return Channel{}, ErrTagConflict
		}
		return Channel{}, err
	}
	return channel, nil
}

// AddMembers appends the given user ids to the channel's member set.
// Only the channel owner may add members; a missing channel and a
// non-owner requester both fail with ErrChannelNotFound. The append is a
// single atomic statement that skips ids already present, so concurrent
// disjoint adds both apply and re-adds are harmless.
func (s *Service) AddMembers(ctx context.Context, channelID, requesterID string, memberIDs []string) error {
	if len(memberIDs) == 0 {
		return fmt.Errorf("at least one member id is required")
	}
	pgChannelID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	pgRequesterID, err := dbpkg.ParseUUID(requesterID)
	if err != nil {
		return fmt.Errorf("invalid requester id: %w", err)
	}
	pgMemberIDs, err := parseUUIDs(memberIDs)
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}

	result, err := s.pool.Exec(ctx,
		`UPDATE channels
		 SET member_ids = member_ids || (
			SELECT COALESCE(array_agg(x), '{}'::uuid[])
			FROM unnest($3::uuid[]) AS x
			WHERE NOT (x = ANY (member_ids))
		 ), updated_at = now()
		 WHERE id = $1 AND owner_id = $2`,
		pgChannelID, pgRequesterID, pgMemberIDs,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// List returns all channels with owner and members resolved.
func (s *Service) List(ctx context.Context) ([]View, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return s.collectViews(ctx, rows)
}

// ListForUser returns channels whose member set contains the user. Channels
// where the user is only the owner are excluded.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]View, error) {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE $1 = ANY (member_ids) ORDER BY created_at, id`,
		pgUserID,
	)
	if err != nil {
		return nil, err
	}
	return s.collectViews(ctx, rows)
}

// Get returns a channel by id.
func (s *Service) Get(ctx context.Context, id string) (Channel, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Channel{}, ErrChannelNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, pgID)
	channel, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, err
	}
	return channel, nil
}

// GetByTag returns the channel owning the given unique tag.
func (s *Service) GetByTag(ctx context.Context, tag string) (Channel, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Channel{}, ErrChannelNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE tag = $1`, tag)
	channel, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, err
	}
	return channel, nil
}

// CanAccess reports whether the user is a member of the channel or its
// owner. The owner is authorized even when not listed as a member.
func (s *Service) CanAccess(ctx context.Context, channelID, userID string) (bool, error) {
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return false, err
	}
	if channel.OwnerID == userID {
		return true, nil
	}
	for _, id := range channel.MemberIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) collectViews(ctx context.Context, rows pgx.Rows) ([]View, error) {
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for _, channel := range items {
		ids = append(ids, channel.OwnerID)
		ids = append(ids, channel.MemberIDs...)
	}
	summaries, err := s.directory.Summaries(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(items))
	for _, channel := range items {
		view := View{
			Channel: channel,
			Owner:   summaries[channel.OwnerID],
			Members: make([]users.Summary, 0, len(channel.MemberIDs)),
		}
		for _, id := range channel.MemberIDs {
			if summary, ok := summaries[id]; ok {
				view.Members = append(view.Members, summary)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func scanChannel(row interface{ Scan(dest ...any) error }) (Channel, error) {
	var (
		channel     Channel
		pgID        pgtype.UUID
		pgOwnerID   pgtype.UUID
		pgMemberIDs []pgtype.UUID
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&pgID, &channel.Name, &channel.Description, &channel.Tag, &channel.Specialty, &pgOwnerID, &pgMemberIDs, &createdAt, &updatedAt)
	if err != nil {
		return Channel{}, err
	}
	channel.ID = dbpkg.UUIDToString(pgID)
	channel.OwnerID = dbpkg.UUIDToString(pgOwnerID)
	channel.MemberIDs = make([]string, 0, len(pgMemberIDs))
	for _, member := range pgMemberIDs {
		channel.MemberIDs = append(channel.MemberIDs, dbpkg.UUIDToString(member))
	}
	channel.CreatedAt = dbpkg.TimeFromPg(createdAt)
	channel.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	return channel, nil
}

func parseUUIDs(ids []string) ([]pgtype.UUID, error) {
	parsed := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgID, err := dbpkg.ParseUUID(id)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, pgID)
	}
	return parsed, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
