package memstore

import (
	"context"
	"sort"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	unlock := m.lock()
	defer unlock()

	for _, other := range m.s.t.groups {
		if other.ID == g.ID || other.InviteCode == g.InviteCode {
			return storage.ErrDuplicate
		}
	}
	m.stamp(&g.CreatedAt)
	m.s.t.groups[g.ID] = *g
	return nil
}

func (m *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	g, ok := m.s.t.groups[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &g, nil
}

func (m *Store) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, g := range m.s.t.groups {
		if g.InviteCode == code {
			return &g, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) AddMembership(ctx context.Context, gm *models.GroupMembership) error {
	unlock := m.lock()
	defer unlock()

	for _, other := range m.s.t.memberships {
		if other.ID == gm.ID || (other.GroupID == gm.GroupID && other.UserID == gm.UserID) {
			return storage.ErrDuplicate
		}
	}
	m.stamp(&gm.CreatedAt)
	m.s.t.memberships[gm.ID] = *gm
	return nil
}

func (m *Store) GetMembership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, gm := range m.s.t.memberships {
		if gm.GroupID == groupID && gm.UserID == userID {
			return &gm, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) CountMembers(ctx context.Context, groupID string) (int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var n int64
	for _, gm := range m.s.t.memberships {
		if gm.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (m *Store) ListGroupsForUser(ctx context.Context, userID string) ([]models.MemberGroup, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.MemberGroup
	for _, gm := range m.s.t.memberships {
		if gm.UserID != userID {
			continue
		}
		if g, ok := m.s.t.groups[gm.GroupID]; ok {
			out = append(out, models.MemberGroup{Group: g, Role: gm.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
