// Package catalog owns items and their visibility. Availability is read here
// but only ever changed through FlipAvailability, on behalf of the ledger.
package catalog

import (
	"context"
	"errors"
	"strings"

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

type ItemInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Visibility  models.Visibility `json:"visibility"`
	GroupID     *string           `json:"groupId"`
	PriceUSD    *float64          `json:"priceUsd"`
}

// ItemPatch is a partial update; nil fields are left alone. ClearGroup and
// ClearPrice remove the optional values, as does an empty GroupID.
type ItemPatch struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Visibility  *models.Visibility `json:"visibility"`
	GroupID     *string            `json:"groupId"`
	ClearGroup  bool               `json:"clearGroup"`
	PriceUSD    *float64           `json:"priceUsd"`
	ClearPrice  bool               `json:"clearPrice"`
}

func validPrice(p *float64) error {
	if p != nil && *p < 0 {
		return apperr.Validation("price must not be negative")
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID string) error {
	_, err := s.store.GetMembership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Authorization("not a member of this group")
	}
	return err
}

func (s *Service) Create(ctx context.Context, owner string, in ItemInput) (*models.Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("item name is required")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	if !in.Visibility.Valid() {
		return nil, apperr.Validation("invalid visibility %q", in.Visibility)
	}
	if err := validPrice(in.PriceUSD); err != nil {
		return nil, err
	}
	if in.GroupID != nil && *in.GroupID == "" {
		in.GroupID = nil
	}
	if in.GroupID != nil {
		if err := s.requireMember(ctx, *in.GroupID, owner); err != nil {
			return nil, err
		}
	}
	it := &models.Item{
		ID:           uuid.NewString(),
		OwnerUserID:  owner,
		GroupID:      in.GroupID,
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		Category:     strings.TrimSpace(in.Category),
		Visibility:   in.Visibility,
		Availability: models.Available,
		PriceUSD:     in.PriceUSD,
	}
	if err := s.store.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Owned loads an item and checks owner.
func (s *Service) Owned(ctx context.Context, owner, id string) (*models.Item, error) {
	it, err := s.store.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, err
	}
	if it.OwnerUserID != owner {
		return nil, apperr.Authorization("item belongs to another user")
	}
	return it, nil
}

func (s *Service) Update(ctx context.Context, owner, id string, p ItemPatch) (*models.Item, error) {
	if _, err := s.Owned(ctx, owner, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("item name is required")
		}
		fields["name"] = name
	}
	if p.Description != nil {
		fields["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		fields["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Visibility != nil {
		if !p.Visibility.Valid() {
			return nil, apperr.Validation("invalid visibility %q", *p.Visibility)
		}
		fields["visibility"] = *p.Visibility
	}
	switch {
	case p.ClearGroup, p.GroupID != nil && *p.GroupID == "":
		fields["group_id"] = (*string)(nil)
	case p.GroupID != nil:
		if err := s.requireMember(ctx, *p.GroupID, owner); err != nil {
			return nil, err
		}
		fields["group_id"] = p.GroupID
	}
	switch {
	case p.ClearPrice:
		fields["price_usd"] = (*float64)(nil)
	case p.PriceUSD != nil:
		if err := validPrice(p.PriceUSD); err != nil {
			return nil, err
		}
		fields["price_usd"] = p.PriceUSD
	}
	if len(fields) > 0 {
		if err := s.store.UpdateItemFields(ctx, id, fields); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperr.NotFound("item not found")
			}
			return nil, err
		}
	}
	return s.store.GetItem(ctx, id)
}

// Delete hard-deletes the item. Its lending records and requests stay and
// show it as an unknown item.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	it, err := s.Owned(ctx, owner, id)
	if err != nil {
		return err
	}
	if !it.IsAvailable() {
		s.log.Info("deleting item that is lent out", zap.String("item_id", id))
	}
	err = s.store.DeleteItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("item not found")
	}
	return err
}

func (s *Service) canRead(ctx context.Context, caller string, it *models.Item) (bool, error) {
	switch {
	case it.OwnerUserID == caller, it.Visibility == models.VisibilityPublic:
		return true, nil
	case it.GroupID != nil:
		_, err := s.store.GetMembership(ctx, *it.GroupID, caller)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	return false, nil
}

// Get returns the item page for caller. The current borrow and its contact are
// only shown to the owner.
func (s *Service) Get(ctx context.Context, caller, id string) (*models.ItemDetail, error) {
	it, err := s.store.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.canRead(ctx, caller, it)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Authorization("item is private")
	}

	d := &models.ItemDetail{Item: *it, IsOwner: it.OwnerUserID == caller}
	d.Owner = models.ResolveRef(it.OwnerUserID, s.userName(ctx, it.OwnerUserID), models.UnknownUser)
	if it.GroupID != nil {
		var name *string
		if g, err := s.store.GetGroup(ctx, *it.GroupID); err == nil {
			name = &g.Name
		}
		d.Group = models.ResolveOptionalRef(it.GroupID, name, "Unknown Group")
	}
	if d.IsOwner {
		rec, err := s.store.OpenRecordForItem(ctx, id)
		switch {
		case err == nil:
			d.ActiveBorrow = rec
			var name *string
			if c, err := s.store.GetContact(ctx, rec.ContactID); err == nil {
				name = &c.Name
			}
			ref := models.ResolveRef(rec.ContactID, name, models.UnknownContact)
			d.Contact = &ref
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) userName(ctx context.Context, id string) *string {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil
	}
	return &u.Name
}

func (s *Service) ListOwned(ctx context.Context, owner string) ([]models.Item, error) {
	return s.store.ListItemsByOwner(ctx, owner)
}

func (s *Service) ListGroupItems(ctx context.Context, caller, groupID string) ([]models.Item, error) {
	if err := s.requireMember(ctx, groupID, caller); err != nil {
		return nil, err
	}
	return s.store.ListItemsByGroup(ctx, groupID)
}

// ListPublicForUser lists another user's public items.
func (s *Service) ListPublicForUser(ctx context.Context, userID string) ([]models.Item, error) {
	return s.store.ListPublicItems(ctx, []string{userID})
}

// FlipAvailability is the single write path for item availability. It moves
// the item from one state to the other and fails with a conflict when the item
// is not in from. items is the caller's (transactional) store.
func FlipAvailability(ctx context.Context, items storage.ItemStore, itemID string, from, to models.Availability) error {
	err := items.SetItemAvailability(ctx, itemID, from, to)
	if errors.Is(err, storage.ErrStale) {
		return apperr.Conflict("item %s is no longer %s", itemID, from)
	}
	return err
}
