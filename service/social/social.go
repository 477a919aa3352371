// Package social covers follows between accounts and discovery of the public
// items of followed accounts.
package social

import (
	"context"
	"errors"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store storage.Store
	log   *zap.Logger
}

func New(store storage.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Profile is the public view of an account.
type Profile struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Counts      models.FollowCounts `json:"counts"`
	IsFollowing bool                `json:"isFollowing"`
	IsSelf      bool                `json:"isSelf"`
}

func (s *Service) account(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	return u, err
}

func (s *Service) Profile(ctx context.Context, caller, id string) (*Profile, error) {
	u, err := s.account(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountFollows(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{ID: u.ID, Name: u.Name, Counts: counts, IsSelf: caller == id}
	if !p.IsSelf {
		if p.IsFollowing, err = s.store.IsFollowing(ctx, caller, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Follow is idempotent.
func (s *Service) Follow(ctx context.Context, caller, target string) error {
	if caller == target {
		return apperr.Validation("you cannot follow yourself")
	}
	if _, err := s.account(ctx, target); err != nil {
		return err
	}
	err := s.store.CreateFollow(ctx, &models.Follow{ID: uuid.NewString(), FollowerID: caller, FollowingID: target})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil
	}
	return err
}

func (s *Service) Unfollow(ctx context.Context, caller, target string) error {
	_, err := s.store.DeleteFollow(ctx, caller, target)
	return err
}

func (s *Service) IsFollowing(ctx context.Context, caller, target string) (bool, error) {
	return s.store.IsFollowing(ctx, caller, target)
}

func (s *Service) Followers(ctx context.Context, userID string) ([]models.FollowView, error) {
	return s.store.ListFollowers(ctx, userID)
}

func (s *Service) Following(ctx context.Context, userID string) ([]models.FollowView, error) {
	return s.store.ListFollowing(ctx, userID)
}

func (s *Service) Counts(ctx context.Context, userID string) (models.FollowCounts, error) {
	return s.store.CountFollows(ctx, userID)
}

// Discover lists public items of the accounts caller follows, newest first.
func (s *Service) Discover(ctx context.Context, caller string) ([]models.Item, error) {
	following, err := s.store.ListFollowing(ctx, caller)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(following))
	for _, f := range following {
		ids = append(ids, f.User.ID)
	}
	items, err := s.store.ListPublicItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}
