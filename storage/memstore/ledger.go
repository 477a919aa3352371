package memstore

import (
	"context"
	"sort"
	"time"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) InsertLendingRecord(ctx context.Context, r *models.LendingRecord) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.records[r.ID]; ok {
		return storage.ErrDuplicate
	}
	if r.Status == "" {
		r.Status = models.StatusBorrowed
	}
	if r.IsOpen() {
		for _, other := range m.s.t.records {
			if other.ItemID == r.ItemID && other.IsOpen() {
				return storage.ErrDuplicate
			}
		}
	}
	m.stamp(&r.CreatedAt)
	m.s.t.records[r.ID] = *r
	return nil
}

func (m *Store) GetLendingRecord(ctx context.Context, id string) (*models.LendingRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	r, ok := m.s.t.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (m *Store) OpenRecordForItem(ctx context.Context, itemID string) (*models.LendingRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, r := range m.s.t.records {
		if r.ItemID == itemID && r.IsOpen() {
			return &r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) CloseLendingRecord(ctx context.Context, id string, returnedAt time.Time) error {
	unlock := m.lock()
	defer unlock()

	r, ok := m.s.t.records[id]
	if !ok || !r.IsOpen() {
		return storage.ErrStale
	}
	r.Status = models.StatusReturned
	r.ReturnedAt = &returnedAt
	m.s.t.records[id] = r
	return nil
}

func (m *Store) ListLendingViews(ctx context.Context, f storage.LendingFilter) ([]models.LendingRecordView, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.LendingRecordView
	for _, r := range m.s.t.records {
		switch {
		case f.LenderID != "" && r.LenderUserID != f.LenderID,
			f.BorrowerID != "" && !strPtrEq(r.BorrowerUserID, f.BorrowerID),
			f.ContactID != "" && r.ContactID != f.ContactID,
			f.ItemID != "" && r.ItemID != f.ItemID,
			f.Status != "" && r.Status != f.Status:
			continue
		}
		out = append(out, m.lendingViewLocked(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) lendingViewLocked(r models.LendingRecord) models.LendingRecordView {
	return models.LendingRecordView{
		LendingRecord: r,
		Item:          models.ResolveRef(r.ItemID, m.itemNameLocked(r.ItemID), models.UnknownItem),
		Contact:       models.ResolveRef(r.ContactID, m.contactNameLocked(r.ContactID), models.UnknownContact),
		Lender:        models.ResolveRef(r.LenderUserID, m.userNameLocked(r.LenderUserID), models.UnknownUser),
		Borrower:      models.ResolveOptionalRef(r.BorrowerUserID, m.optUserNameLocked(r.BorrowerUserID), models.UnknownUser),
	}
}

// The name lookups below play the role of LEFT JOINs: nil when the row is gone.

func (m *Store) itemNameLocked(id string) *string {
	if it, ok := m.s.t.items[id]; ok {
		return &it.Name
	}
	return nil
}

func (m *Store) contactNameLocked(id string) *string {
	if c, ok := m.s.t.contacts[id]; ok {
		return &c.Name
	}
	return nil
}

func (m *Store) userNameLocked(id string) *string {
	if u, ok := m.s.t.users[id]; ok {
		return &u.Name
	}
	return nil
}

func (m *Store) optUserNameLocked(id *string) *string {
	if id == nil {
		return nil
	}
	return m.userNameLocked(*id)
}

func (m *Store) optItemNameLocked(id *string) *string {
	if id == nil {
		return nil
	}
	return m.itemNameLocked(*id)
}
