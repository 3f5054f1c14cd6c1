package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	sessionKeyPrefix = "admin:session:"
	// SessionTTL is how long an admin panel session stays valid without a
	// new login.
	SessionTTL = 8 * time.Hour
)

// AdminSession is the state stored for a logged-in admin panel user.
type AdminSession struct {
	UserID    uint      `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore keeps admin panel sessions in Redis (or the in-process
// fallback) keyed by an opaque token that travels in a cookie.
type SessionStore struct {
	client *Client
}

// NewSessionStore wraps the shared cache client.
func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client}
}

// Create stores a new session and returns its token.
func (s *SessionStore) Create(ctx context.Context, session AdminSession) (string, error) {
	session.CreatedAt = time.Now()
	token := uuid.NewString()
	if err := s.client.SetJSON(ctx, sessionKeyPrefix+token, session, SessionTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Get returns the session for a token, or false when it is unknown or
// expired.
func (s *SessionStore) Get(ctx context.Context, token string) (*AdminSession, bool) {
	if token == "" {
		return nil, false
	}
	var session AdminSession
	ok, err := s.client.GetJSON(ctx, sessionKeyPrefix+token, &session)
	if err != nil || !ok {
		return nil, false
	}
	return &session, true
}

// Destroy removes a session on logout.
func (s *SessionStore) Destroy(ctx context.Context, token string) {
	if token == "" {
		return
	}
	s.client.Del(ctx, sessionKeyPrefix+token)
}
