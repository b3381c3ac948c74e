package signon

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultSessionTTL bounds how long an issued session stays valid
// without being renewed.
const DefaultSessionTTL = 24 * time.Hour

// SessionData is the server side record for one logged in user.
type SessionData struct {
	SessionID string     `json:"session_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
}

// GetUserUUID parses the session owner id.
func (s *SessionData) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// SessionStore issues and resolves opaque session identifiers. Get
// returns ErrSessionNotFound for unknown, expired, or deleted ids.
type SessionStore interface {
	Issue(ctx context.Context, user *User) (*SessionData, error)
	Get(ctx context.Context, sessionID string) (*SessionData, error)
	Delete(ctx context.Context, sessionID string) error
	Stop()
}

type memorySessionStore struct {
	cache  *ttlcache.Cache[string, *SessionData]
	ttl    time.Duration
	logger Logger
}

var _ SessionStore = (*memorySessionStore)(nil)

// NewMemorySessionStore creates an in process session store. Entries
// expire after cfg.GetSessionTTL and are purged by a background
// janitor; call Stop to release it.
func NewMemorySessionStore(cfg Config, logger Logger) SessionStore {
	if logger == nil {
		logger = defLogger{}
	}

	ttl := cfg.GetSessionTTL()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *SessionData](ttl),
		ttlcache.WithDisableTouchOnHit[string, *SessionData](),
	)

	go cache.Start()

	return &memorySessionStore{
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *memorySessionStore) Issue(ctx context.Context, user *User) (*SessionData, error) {
	if user == nil {
		return nil, errors.New("user must not be nil", errors.CategoryInternal)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()
	session := &SessionData{
		SessionID: uuid.NewString(),
		UserID:    user.ID.String(),
		Username:  user.Username,
		IssuedAt:  &now,
	}

	s.cache.Set(session.SessionID, session, s.ttl)
	s.logger.Debug("session issued for user %s", session.UserID)

	return session, nil
}

func (s *memorySessionStore) Get(ctx context.Context, sessionID string) (*SessionData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	item := s.cache.Get(sessionID)
	if item == nil {
		return nil, ErrSessionNotFound
	}

	return item.Value(), nil
}

func (s *memorySessionStore) Delete(ctx context.Context, sessionID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.cache.Delete(sessionID)
	return nil
}

func (s *memorySessionStore) Stop() {
	s.cache.Stop()
}
