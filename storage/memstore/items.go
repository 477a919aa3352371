package memstore

import (
	"context"
	"slices"
	"sort"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) CreateItem(ctx context.Context, it *models.Item) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.items[it.ID]; ok {
		return storage.ErrDuplicate
	}
	if it.Availability == "" {
		it.Availability = models.Available
	}
	if it.Visibility == "" {
		it.Visibility = models.VisibilityPrivate
	}
	it.UpdatedAt = m.stamp(&it.CreatedAt)
	m.s.t.items[it.ID] = *it
	return nil
}

func (m *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	it, ok := m.s.t.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &it, nil
}

// GetItemForUpdate needs no lock: transactions are already serialized.
func (m *Store) GetItemForUpdate(ctx context.Context, id string) (*models.Item, error) {
	return m.GetItem(ctx, id)
}

// UpdateItemFields accepts the column names the Postgres repo does.
func (m *Store) UpdateItemFields(ctx context.Context, id string, fields map[string]any) error {
	unlock := m.lock()
	defer unlock()

	it, ok := m.s.t.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			it.Name = v.(string)
		case "description":
			it.Description = v.(string)
		case "category":
			it.Category = v.(string)
		case "visibility":
			it.Visibility = v.(models.Visibility)
		case "group_id":
			it.GroupID = v.(*string)
		case "price_usd":
			it.PriceUSD = v.(*float64)
		}
	}
	it.UpdatedAt = m.now()
	m.s.t.items[id] = it
	return nil
}

func (m *Store) DeleteItem(ctx context.Context, id string) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.s.t.items, id)
	return nil
}

func (m *Store) ListItemsByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	return m.filterItems(func(it models.Item) bool { return it.OwnerUserID == ownerID }), nil
}

func (m *Store) ListItemsByGroup(ctx context.Context, groupID string) ([]models.Item, error) {
	return m.filterItems(func(it models.Item) bool { return strPtrEq(it.GroupID, groupID) }), nil
}

func (m *Store) ListPublicItems(ctx context.Context, ownerIDs []string) ([]models.Item, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	return m.filterItems(func(it models.Item) bool {
		return it.Visibility == models.VisibilityPublic && slices.Contains(ownerIDs, it.OwnerUserID)
	}), nil
}

func (m *Store) SetItemAvailability(ctx context.Context, id string, from, to models.Availability) error {
	unlock := m.lock()
	defer unlock()

	it, ok := m.s.t.items[id]
	if !ok || it.Availability != from {
		return storage.ErrStale
	}
	it.Availability = to
	it.UpdatedAt = m.now()
	m.s.t.items[id] = it
	return nil
}

func (m *Store) filterItems(keep func(models.Item) bool) []models.Item {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.Item
	for _, it := range m.s.t.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
