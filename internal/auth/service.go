package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"medreel/internal/models"
	"medreel/internal/redis"
)

// Identity is what a validated token resolves to: the account, its role,
// and the conversation session id minted at login. The session id stays
// stable for the token's lifetime, so one login maps to one thread.
type Identity struct {
	UserID    int64           `json:"user_id"`
	Role      models.UserRole `json:"role"`
	SessionID string          `json:"session_id"`
}

// Service issues, validates, and revokes authentication tokens.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token
// lifetime. The redis client is optional; without it every validation
// hits the database.
func NewService(db *sql.DB, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:             db,
		cache:          cache,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// IssueToken mints a random token plus a fresh conversation session id
// for the user and persists both.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, string, error) {
	if userID <= 0 {
		return "", "", errors.New("invalid user id")
	}
	sessionID := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO user_tokens (token, user_id, session_id, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
			token, userID, sessionID, now, expiresAt,
		)
		if err == nil {
			return token, sessionID, nil
		}
	}
	return "", "", errors.New("could not issue token")
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning
// the resolved identity. Hits the redis cache first when configured.
func (s *Service) ValidateToken(ctx context.Context, authToken string) (*Identity, error) {
	if authToken == "" {
		return nil, errors.New("token required")
	}

	if ident := s.cachedIdentity(ctx, authToken); ident != nil {
		return ident, nil
	}

	var ident Identity
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT t.user_id, t.session_id, t.expires_at, u.role
		 FROM user_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token = ?`, authToken,
	).Scan(&ident.UserID, &ident.SessionID, &expires, &ident.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid token")
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken)
		return nil, errors.New("token expired")
	}

	s.cacheIdentity(ctx, authToken, &ident, time.Until(expires))
	return &ident, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(authToken)); err != nil {
			log.Printf("auth cache revoke failed: %v", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) cachedIdentity(ctx context.Context, authToken string) *Identity {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(authToken))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("auth cache lookup failed: %v", err)
		}
		return nil
	}
	var ident Identity
	if err := json.Unmarshal([]byte(raw), &ident); err != nil {
		log.Printf("auth cache decode failed: %v", err)
		return nil
	}
	return &ident
}

func (s *Service) cacheIdentity(ctx context.Context, authToken string, ident *Identity, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(ident)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(authToken), data, ttl); err != nil {
		log.Printf("auth cache store failed: %v", err)
	}
}

func cacheKey(authToken string) string {
	return "auth:token:" + authToken
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
