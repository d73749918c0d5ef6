package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any transport or server failure from Redis.
var ErrRedisUnavailable = errors.New("session: redis unavailable")

// ErrNotFound is returned when a token resolves to no live session.
var ErrNotFound = errors.New("session: not found")

// ErrDeviceMismatch is returned when a rotation request arrives from a
// device other than the one the session is bound to. The session is revoked
// before the error is returned.
var ErrDeviceMismatch = errors.New("session: device mismatch")

// deleteScript removes a session record and its user-index entry in one
// atomic step, so a crash between the two cannot leave a dangling index.
var deleteScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`)

// Store persists sessions in Redis with a per-user secondary index.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore returns a Store writing under the given key prefix.
func NewStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) tokenKey(token string) string {
	return s.prefix + ":" + token
}

func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("%s:u:%d", s.prefix, userID)
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores a new session and returns its opaque token. Any live session
// bound to the same device is revoked first, so a user holds at most one
// session per device.
func (s *Store) Create(ctx context.Context, userID int64, publicID string, device [32]byte, newToken func() (string, error)) (*Session, string, error) {
	if err := s.DeleteForDevice(ctx, userID, device); err != nil {
		return nil, "", err
	}

	token, err := newToken()
	if err != nil {
		return nil, "", fmt.Errorf("session: token generation: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	sess := &Session{
		UserID:     userID,
		PublicID:   publicID,
		DeviceHash: device,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token), encode(sess), s.ttl)
		pipe.SAdd(ctx, s.userKey(userID), token)
		pipe.Expire(ctx, s.userKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, token, nil
}

// Get loads the session for token. Expired or missing sessions return
// ErrNotFound; a corrupt record is deleted and reported as missing.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := decode(raw)
	if err != nil {
		_ = s.rdb.Del(ctx, s.tokenKey(token)).Err()
		return nil, ErrNotFound
	}
	if sess.Expired(time.Now()) {
		_ = s.delete(ctx, token, sess.UserID)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Rotate atomically replaces the session for token with a fresh one bound to
// the same user and device, restarting the expiry window. A device mismatch
// revokes the presented session and fails.
func (s *Store) Rotate(ctx context.Context, token string, device [32]byte, newToken func() (string, error)) (*Session, string, error) {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if sess.DeviceHash != device {
		_ = s.delete(ctx, token, sess.UserID)
		return nil, "", ErrDeviceMismatch
	}
	if err := s.delete(ctx, token, sess.UserID); err != nil {
		return nil, "", err
	}
	return s.Create(ctx, sess.UserID, sess.PublicID, device, newToken)
}

// Delete revokes the session for token. Missing tokens are a no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	raw, err := s.rdb.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := decode(raw)
	if err != nil {
		return s.wrapDel(s.rdb.Del(ctx, s.tokenKey(token)).Err())
	}
	return s.delete(ctx, token, sess.UserID)
}

// DeleteForDevice revokes whichever session of userID is bound to device.
func (s *Store) DeleteForDevice(ctx context.Context, userID int64, device [32]byte) error {
	tokens, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for _, tok := range tokens {
		raw, err := s.rdb.Get(ctx, s.tokenKey(tok)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Stale index entry left by TTL expiry.
			_ = s.rdb.SRem(ctx, s.userKey(userID), tok).Err()
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		sess, err := decode(raw)
		if err != nil || sess.DeviceHash == device {
			if err := s.delete(ctx, tok, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteAllForUser revokes every session of userID and returns how many
// were removed.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) (int, error) {
	tokens, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		keys = append(keys, s.tokenKey(tok))
	}
	keys = append(keys, s.userKey(userID))

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return len(tokens), nil
}

// ActiveCount returns the number of live sessions for userID, skipping
// index entries whose records have already expired.
func (s *Store) ActiveCount(ctx context.Context, userID int64) (int, error) {
	sessions, err := s.ActiveSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// ActiveSessions returns the live sessions for userID.
func (s *Store) ActiveSessions(ctx context.Context, userID int64) ([]*Session, error) {
	tokens, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	out := make([]*Session, 0, len(tokens))
	for _, tok := range tokens {
		raw, err := s.rdb.Get(ctx, s.tokenKey(tok)).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = s.rdb.SRem(ctx, s.userKey(userID), tok).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		sess, err := decode(raw)
		if err != nil || sess.Expired(now) {
			_ = s.delete(ctx, tok, userID)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, token string, userID int64) error {
	err := deleteScript.Run(ctx, s.rdb, []string{s.tokenKey(token), s.userKey(userID)}, token).Err()
	return s.wrapDel(err)
}

func (s *Store) wrapDel(err error) error {
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
