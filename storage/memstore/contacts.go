package memstore

import (
	"context"
	"sort"
	"strings"

	"lendbook/models"
	"lendbook/storage"
)

// linkTakenLocked reports whether another contact of owner already links to
// the same account.
func (m *Store) linkTakenLocked(c *models.Contact) bool {
	if !c.IsLinked() {
		return false
	}
	for _, other := range m.s.t.contacts {
		if other.ID != c.ID && other.OwnerUserID == c.OwnerUserID && strPtrEq(other.LinkedUserID, *c.LinkedUserID) {
			return true
		}
	}
	return false
}

func (m *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.contacts[c.ID]; ok || m.linkTakenLocked(c) {
		return storage.ErrDuplicate
	}
	c.UpdatedAt = m.stamp(&c.CreatedAt)
	m.s.t.contacts[c.ID] = *c
	return nil
}

func (m *Store) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	c, ok := m.s.t.contacts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (m *Store) FindContactByLinkedUser(ctx context.Context, ownerID, linkedUserID string) (*models.Contact, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, c := range m.s.t.contacts {
		if c.OwnerUserID == ownerID && strPtrEq(c.LinkedUserID, linkedUserID) {
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) FindUnlinkedContactByEmail(ctx context.Context, ownerID, email string) (*models.Contact, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	var match *models.Contact
	for _, c := range m.s.t.contacts {
		if c.OwnerUserID != ownerID || c.IsLinked() || c.Email == nil || strings.ToLower(*c.Email) != email {
			continue
		}
		if match == nil || c.CreatedAt.Before(match.CreatedAt) {
			match = &c
		}
	}
	if match == nil {
		return nil, storage.ErrNotFound
	}
	return match, nil
}

func (m *Store) UpdateContact(ctx context.Context, c *models.Contact) error {
	unlock := m.lock()
	defer unlock()

	cur, ok := m.s.t.contacts[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	// owner is immutable
	c.OwnerUserID = cur.OwnerUserID
	if m.linkTakenLocked(c) {
		return storage.ErrDuplicate
	}
	cur.Name, cur.Email, cur.Phone, cur.LinkedUserID = c.Name, c.Email, c.Phone, c.LinkedUserID
	cur.UpdatedAt = m.now()
	m.s.t.contacts[c.ID] = cur
	*c = cur
	return nil
}

func (m *Store) DeleteContact(ctx context.Context, id string) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.contacts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.s.t.contacts, id)
	return nil
}

func (m *Store) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	return m.filterContacts(ownerID, func(models.Contact) bool { return true }), nil
}

func (m *Store) SearchContacts(ctx context.Context, ownerID, q string) ([]models.Contact, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	return m.filterContacts(ownerID, func(c models.Contact) bool {
		return strings.Contains(strings.ToLower(c.Name), q) ||
			(c.Email != nil && strings.Contains(strings.ToLower(*c.Email), q)) ||
			(c.Phone != nil && strings.Contains(*c.Phone, q))
	}), nil
}

func (m *Store) filterContacts(ownerID string, keep func(models.Contact) bool) []models.Contact {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.Contact
	for _, c := range m.s.t.contacts {
		if c.OwnerUserID == ownerID && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
