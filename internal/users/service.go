// Package users provides the user directory: accounts, login, and
// display-name resolution for message and channel expansion.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	dbpkg "github.com/wardline/wardline/internal/db"
	"github.com/wardline/wardline/internal/identity"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

// Service is the Postgres-backed user directory.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

const userColumns = `id, email, full_name, role, is_active, created_at, updated_at, last_login_at`

// Create registers a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return User{}, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return User{}, fmt.Errorf("password is required")
	}
	role := identity.NormalizeRole(input.Role)
	if role == "" {
		role = identity.RoleClinician
	}
	if !identity.IsValidRole(role) {
		return User{}, fmt.Errorf("invalid role: %s", input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		email, string(hash), strings.TrimSpace(input.FullName), role,
	)
	user, _, err := scanUser(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

// Login validates credentials and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return User{}, ErrInvalidCredentials
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email)

	user, hash, err := scanUserWithHash(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, ErrInactiveUser
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if _, err := s.pool.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, user.ID); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	}
	return user, nil
}

// Get returns a single user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return User{}, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, pgID)
	user, _, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

// List returns all users ordered by creation time.
func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, _, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// Summaries resolves a set of user ids to public profiles. Unknown ids are
// simply absent from the result.
func (s *Service) Summaries(ctx context.Context, ids []string) (map[string]Summary, error) {
	result := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	pgIDs := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgID, err := dbpkg.ParseUUID(id)
		if err != nil {
			return nil, err
		}
		pgIDs = append(pgIDs, pgID)
	}
	rows, err := s.pool.Query(ctx, `SELECT id, full_name FROM users WHERE id = ANY ($1)`, pgIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pgID     pgtype.UUID
			fullName string
		)
		if err := rows.Scan(&pgID, &fullName); err != nil {
			return nil, err
		}
		id := dbpkg.UUIDToString(pgID)
		result[id] = Summary{ID: id, FullName: fullName}
	}
	return result, rows.Err()
}

// EnsureAdmin creates the bootstrap superuser if no account with the given
// email exists. Called once at startup.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	_, err := s.Create(ctx, CreateInput{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     identity.RoleSuperuser,
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	if err == nil {
		s.logger.Info("bootstrap superuser created", slog.String("email", email))
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, string, error) {
	var (
		user        User
		pgID        pgtype.UUID
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
		lastLoginAt pgtype.Timestamptz
	)
	err := row.Scan(&pgID, &user.Email, &user.FullName, &user.Role, &user.IsActive, &createdAt, &updatedAt, &lastLoginAt)
	if err != nil {
		return User{}, "", err
	}
	user.ID = dbpkg.UUIDToString(pgID)
	user.CreatedAt = dbpkg.TimeFromPg(createdAt)
	user.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	user.LastLoginAt = dbpkg.TimeFromPg(lastLoginAt)
	return user, "", nil
}

func scanUserWithHash(row rowScanner) (User, string, error) {
	var (
		user        User
		pgID        pgtype.UUID
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
		lastLoginAt pgtype.Timestamptz
		hash        string
	)
	err := row.Scan(&pgID, &user.Email, &user.FullName, &user.Role, &user.IsActive, &createdAt, &updatedAt, &lastLoginAt, &hash)
	if err != nil {
		return User{}, "", err
	}
	user.ID = dbpkg.UUIDToString(pgID)
	user.CreatedAt = dbpkg.TimeFromPg(createdAt)
	user.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	user.LastLoginAt = dbpkg.TimeFromPg(lastLoginAt)
	return user, hash, nil
}
