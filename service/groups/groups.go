// Package groups manages lending circles: a group has an invite code, an
// owner and members, and items can be shared with it.
package groups

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const inviteCodeBytes = 8

type Service struct {
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(store storage.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func newInviteCode() (string, error) {
	b := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create makes a group with creator as its owner. Group and membership are
// written together.
func (s *Service) Create(ctx context.Context, creator, name, description string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}
	code, err := newInviteCode()
	if err != nil {
		return nil, err
	}
	now := s.now()
	g := &models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		InviteCode:  code,
		CreatedBy:   creator,
		CreatedAt:   now,
	}
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateGroup(ctx, g); err != nil {
			return err
		}
		return tx.AddMembership(ctx, &models.GroupMembership{
			ID:        uuid.NewString(),
			GroupID:   g.ID,
			UserID:    creator,
			Role:      models.RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]models.MemberGroup, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// Get returns a group to its members.
func (s *Service) Get(ctx context.Context, caller, id string) (*models.MemberGroup, error) {
	g, err := s.store.GetGroup(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("group not found")
	}
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMembership(ctx, id, caller)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Authorization("not a member of this group")
	}
	if err != nil {
		return nil, err
	}
	return &models.MemberGroup{Group: *g, Role: m.Role}, nil
}

func (s *Service) byCode(ctx context.Context, code string) (*models.Group, error) {
	g, err := s.store.GetGroupByInviteCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("invalid invite link")
	}
	return g, err
}

// Preview shows what an invite link leads to.
func (s *Service) Preview(ctx context.Context, caller, code string) (*models.GroupPreview, error) {
	g, err := s.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountMembers(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.store.GetMembership(ctx, g.ID, caller)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return &models.GroupPreview{Group: *g, MemberCount: n, IsMember: err == nil}, nil
}

// Join adds caller as a member. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, caller, code string) (*models.Group, error) {
	g, err := s.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	err = s.store.AddMembership(ctx, &models.GroupMembership{
		ID:        uuid.NewString(),
		GroupID:   g.ID,
		UserID:    caller,
		Role:      models.RoleMember,
		CreatedAt: s.now(),
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return nil, err
	}
	if err == nil {
		s.log.Info("member joined group", zap.String("group_id", g.ID), zap.String("user_id", caller))
	}
	return g, nil
}
