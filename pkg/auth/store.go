package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when no live session matches a token
var ErrSessionNotFound = errors.New("session not found")

// Store handles user and session persistence. Sessions live in
// postgres as the source of truth; redis caches the resolved session
// blob keyed by token hash so the hot path skips the database.
type Store struct {
	db    *sql.DB
	redis *redis.Client
}

// NewStore creates a new auth store. Redis is optional; a nil client
// disables the session cache.
func NewStore(db *sql.DB, redisClient *redis.Client) *Store {
	return &Store{db: db, redis: redisClient}
}

// --- Users ---

// GetUserByEmail fetches an active user by email, including the role
// name for display
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.role_id, r.name, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByID fetches a user by id
func (s *Store) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.role_id, r.name, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.RoleID,
		&user.RoleName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a user record. Used by seeding and tests.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.RoleID,
		user.IsActive,
		now,
		now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// --- Sessions ---

// CreateSession persists a new session row and primes the cache
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now()
	session.CreatedAt = now
	err := s.db.QueryRowContext(ctx, query,
		session.TokenHash,
		session.UserID,
		now,
		session.ExpiresAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	s.cacheSession(ctx, session)
	return nil
}

// GetSession resolves a live session by token hash, consulting the
// redis cache first
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*Session, error) {
	if cached := s.cachedSession(ctx, tokenHash); cached != nil {
		if cached.Valid(time.Now()) {
			return cached, nil
		}
		return nil, ErrSessionNotFound
	}

	query := `
		SELECT id, token_hash, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE token_hash = $1
	`

	var session Session
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&revokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}

	if !session.Valid(time.Now()) {
		return nil, ErrSessionNotFound
	}

	s.cacheSession(ctx, &session)
	return &session, nil
}

// RevokeSession marks a session revoked and drops it from the cache
func (s *Store) RevokeSession(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`,
		time.Now(), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrSessionNotFound
	}

	s.dropCachedSession(ctx, tokenHash)
	return nil
}

// RevokeUserSessions revokes every live session for a user. Called
// when an account is deactivated or its role reassigned.
func (s *Store) RevokeUserSessions(ctx context.Context, userID int64) error {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL RETURNING token_hash`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tokenHash string
		if err := rows.Scan(&tokenHash); err != nil {
			return fmt.Errorf("failed to scan token hash: %w", err)
		}
		s.dropCachedSession(ctx, tokenHash)
	}
	return rows.Err()
}

// SweepExpired deletes expired and revoked session rows. Returns the
// number of rows removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < NOW() OR revoked_at IS NOT NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}

// CountActiveSessions returns the number of live sessions
func (s *Store) CountActiveSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE revoked_at IS NULL AND expires_at > NOW()`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// --- Redis session cache ---

func sessionCacheKey(tokenHash string) string {
	return "edushield:session:" + tokenHash
}

func (s *Store) cacheSession(ctx context.Context, session *Session) {
	if s.redis == nil {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	blob, err := json.Marshal(session)
	if err != nil {
		return
	}
	// Cache failures are invisible; postgres remains authoritative
	s.redis.Set(ctx, sessionCacheKey(session.TokenHash), blob, ttl)
}

func (s *Store) cachedSession(ctx context.Context, tokenHash string) *Session {
	if s.redis == nil {
		return nil
	}
	blob, err := s.redis.Get(ctx, sessionCacheKey(tokenHash)).Bytes()
	if err != nil {
		return nil
	}
	var session Session
	if err := json.Unmarshal(blob, &session); err != nil {
		return nil
	}
	session.TokenHash = tokenHash
	return &session
}

func (s *Store) dropCachedSession(ctx context.Context, tokenHash string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, sessionCacheKey(tokenHash))
}
