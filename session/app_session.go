// Package session keeps login sessions and in-flight passkey ceremonies in
// Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned for unknown or expired session ids.
var ErrNoSession = errors.New("session: not found or expired")

// AppSessionStore holds login sessions. Each user also has a set of their
// session ids so every session can be revoked at once.
type AppSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAppSessionStore(rdb redis.Cmdable, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

type AppSession struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

func key(id string) string         { return fmt.Sprintf("lendbook:sess:%s", id) }
func userSetKey(uid string) string { return fmt.Sprintf("lendbook:user_sessions:%s", uid) }

func (s *AppSessionStore) Create(ctx context.Context, id, userID string) error {
	now := time.Now()
	b, err := json.Marshal(AppSession{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), id)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &as, nil
}

// Delete removes one session. Unknown ids are not an error.
func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if as != nil {
		pipe.SRem(ctx, userSetKey(as.UserID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForUser ends every session of userID.
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
