package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// ErrCeremonyExpired is returned when no ceremony state is stored under a key,
// either because it expired or because it was already used.
var ErrCeremonyExpired = errors.New("session: ceremony expired or already used")

// Store keeps WebAuthn ceremony state between begin and finish. State is
// consumed on load, so a finish can run only once per begin.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

// Sign-up ceremonies are keyed by the normalized email, add-credential
// ceremonies by account id, logins by a random ceremony id.
func signupKey(email string) string { return "lendbook:webauthn:signup:" + strings.ToLower(strings.TrimSpace(email)) }
func addKey(userID string) string   { return "lendbook:webauthn:add:" + userID }
func authKey(sid string) string     { return "lendbook:webauthn:auth:" + sid }

func (s *Store) put(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

func (s *Store) take(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCeremonyExpired
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, fmt.Errorf("decode ceremony: %w", err)
	}
	return &sd, nil
}

func (s *Store) SaveSignup(ctx context.Context, email string, sd *webauthn.SessionData) error {
	return s.put(ctx, signupKey(email), sd)
}

func (s *Store) TakeSignup(ctx context.Context, email string) (*webauthn.SessionData, error) {
	return s.take(ctx, signupKey(email))
}

func (s *Store) SaveAdd(ctx context.Context, userID string, sd *webauthn.SessionData) error {
	return s.put(ctx, addKey(userID), sd)
}

func (s *Store) TakeAdd(ctx context.Context, userID string) (*webauthn.SessionData, error) {
	return s.take(ctx, addKey(userID))
}

func (s *Store) SaveAuth(ctx context.Context, sid string, sd *webauthn.SessionData) error {
	return s.put(ctx, authKey(sid), sd)
}

func (s *Store) TakeAuth(ctx context.Context, sid string) (*webauthn.SessionData, error) {
	return s.take(ctx, authKey(sid))
}
