package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/edushield/edushield/pkg/observability"
)

// Service ties together credential checks and the session lifecycle
type Service struct {
	store      *Store
	tokens     *TokenGenerator
	sessionTTL time.Duration
	bcryptCost int
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewService creates an auth service. Metrics may be nil.
func NewService(store *Store, sessionTTL time.Duration, bcryptCost int, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		store:      store,
		tokens:     NewTokenGenerator(),
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		logger:     logger,
		metrics:    metrics,
	}
}

// Login verifies credentials and opens a session. The plaintext token
// is returned exactly once; only its hash is stored.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		s.recordLogin("failure")
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.recordLogin("failure")
		return "", nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.recordLogin("failure")
		return "", nil, ErrInvalidCredentials
	}

	token, tokenHash, err := s.tokens.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &Session{
		TokenHash: tokenHash,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}

	s.recordLogin("success")
	s.logger.WithField("user_id", user.ID).Info("user signed in")
	return token, user, nil
}

// Authenticate resolves a bearer token to the requesting identity
func (s *Service) Authenticate(ctx context.Context, token string) (*AuthContext, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.store.GetSession(ctx, s.tokens.HashToken(token))
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if !user.IsActive {
		return nil, ErrSessionNotFound
	}

	return &AuthContext{User: user, Session: session}, nil
}

// Logout revokes the session behind a bearer token. Revoking an
// already-dead token is not an error to the caller.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil
	}
	err := s.store.RevokeSession(ctx, s.tokens.HashToken(token))
	if err != nil && err != ErrSessionNotFound {
		return err
	}
	return nil
}

// SweepExpiredSessions removes dead session rows and refreshes the
// active-session gauge. Wired to a cron schedule at startup.
func (s *Service) SweepExpiredSessions(ctx context.Context) {
	removed, err := s.store.SweepExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("session sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Infof("session sweep removed %d rows", removed)
	}

	if s.metrics != nil {
		if active, err := s.store.CountActiveSessions(ctx); err == nil {
			s.metrics.SessionsActive.Set(float64(active))
		}
	}
}

// HashPassword hashes a password at the service's configured cost
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) recordLogin(status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}
