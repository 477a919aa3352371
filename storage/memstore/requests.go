package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) InsertRequest(ctx context.Context, r *models.BorrowRequest) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.requests[r.ID]; ok {
		return storage.ErrDuplicate
	}
	if r.Status == "" {
		r.Status = models.RequestPending
	}
	r.UpdatedAt = m.stamp(&r.CreatedAt)
	m.s.t.requests[r.ID] = *r
	return nil
}

func (m *Store) GetRequest(ctx context.Context, id string) (*models.BorrowRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	r, ok := m.s.t.requests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (m *Store) FindPendingRequest(ctx context.Context, itemID, requesterID string) (*models.BorrowRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, r := range m.s.t.requests {
		if r.ItemID == itemID && r.RequesterUserID == requesterID && r.Status == models.RequestPending {
			return &r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) error {
	unlock := m.lock()
	defer unlock()

	r, ok := m.s.t.requests[id]
	if !ok || r.Status != from {
		return storage.ErrStale
	}
	r.Status = to
	r.RespondedAt = &at
	r.UpdatedAt = at
	m.s.t.requests[id] = r
	return nil
}

func (m *Store) ListRequestViews(ctx context.Context, f storage.RequestFilter) ([]models.BorrowRequestView, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.BorrowRequestView
	for _, r := range m.s.t.requests {
		switch {
		case f.ID != "" && r.ID != f.ID,
			f.OwnerID != "" && r.OwnerUserID != f.OwnerID,
			f.RequesterID != "" && r.RequesterUserID != f.RequesterID,
			f.Status != "" && r.Status != f.Status,
			len(f.ItemIDs) > 0 && !slices.Contains(f.ItemIDs, r.ItemID):
			continue
		}
		v := models.BorrowRequestView{
			BorrowRequest: r,
			Item:          models.ResolveRef(r.ItemID, m.itemNameLocked(r.ItemID), models.UnknownItem),
			Requester:     models.ResolveRef(r.RequesterUserID, m.userNameLocked(r.RequesterUserID), models.UnknownUser),
			Owner:         models.ResolveRef(r.OwnerUserID, m.userNameLocked(r.OwnerUserID), models.UnknownUser),
		}
		if it, ok := m.s.t.items[r.ItemID]; ok {
			a := it.Availability
			v.ItemState = &a
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
