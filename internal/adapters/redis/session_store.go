// Package redis provides Redis-backed storage for the local identity provider.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

var (
	// ErrNotFound is returned when a session token is unknown or expired.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when saving a session whose expiry has passed.
	ErrExpired = errors.New("session is expired")
)

// DefaultSessionPrefix namespaces session keys.
const DefaultSessionPrefix = "session:"

// SessionStore keeps sessions keyed by access token. TTL follows ExpiresAt.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a session store. An empty prefix uses DefaultSessionPrefix.
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if client == nil {
		panic("redis.NewSessionStore: client is required")
	}
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

// Save stores sess under its access token and indexes it by principal.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.AccessToken == "" {
		return errors.New("session access token cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if sess.ExpiresAt.IsZero() || ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	idx := s.userKey(sess.Principal.ID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.tokenKey(sess.AccessToken), data, ttl)
		p.SAdd(ctx, idx, sess.AccessToken)
		p.Expire(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Get loads the session for token.
func (s *SessionStore) Get(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, ErrNotFound
	}
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis get session: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Expired(s.now()) {
		if err := s.Delete(ctx, sess); err != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes the session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sess domainauth.Session) error {
	if sess.AccessToken == "" {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.tokenKey(sess.AccessToken))
		if sess.Principal.ID != "" {
			p.SRem(ctx, s.userKey(sess.Principal.ID), sess.AccessToken)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID and returns how many tokens were indexed.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	idx := s.userKey(userID)
	tokens, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list sessions: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		keys = append(keys, s.tokenKey(tok))
	}
	keys = append(keys, idx)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("redis delete sessions: %w", err)
	}
	return len(tokens), nil
}

func (s *SessionStore) tokenKey(token string) string { return s.prefix + "token:" + token }
func (s *SessionStore) userKey(userID string) string  { return s.prefix + "user:" + userID }
