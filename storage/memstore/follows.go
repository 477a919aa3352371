package memstore

import (
	"context"
	"sort"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) CreateFollow(ctx context.Context, f *models.Follow) error {
	unlock := m.lock()
	defer unlock()

	for _, other := range m.s.t.follows {
		if other.ID == f.ID || (other.FollowerID == f.FollowerID && other.FollowingID == f.FollowingID) {
			return storage.ErrDuplicate
		}
	}
	m.stamp(&f.CreatedAt)
	m.s.t.follows[f.ID] = *f
	return nil
}

func (m *Store) DeleteFollow(ctx context.Context, followerID, followingID string) (int64, error) {
	unlock := m.lock()
	defer unlock()

	var n int64
	for id, f := range m.s.t.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			delete(m.s.t.follows, id)
			n++
		}
	}
	return n, nil
}

func (m *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, f := range m.s.t.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) ListFollowers(ctx context.Context, userID string) ([]models.FollowView, error) {
	return m.listFollows(func(f models.Follow) (bool, string) { return f.FollowingID == userID, f.FollowerID }), nil
}

func (m *Store) ListFollowing(ctx context.Context, userID string) ([]models.FollowView, error) {
	return m.listFollows(func(f models.Follow) (bool, string) { return f.FollowerID == userID, f.FollowingID }), nil
}

// listFollows keeps follows accepted by match and describes the other side.
func (m *Store) listFollows(match func(models.Follow) (bool, string)) []models.FollowView {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.FollowView
	for _, f := range m.s.t.follows {
		ok, other := match(f)
		if !ok {
			continue
		}
		v := models.FollowView{
			ID:        f.ID,
			User:      models.ResolveRef(other, m.userNameLocked(other), models.UnknownUser),
			CreatedAt: f.CreatedAt,
		}
		if u, found := m.s.t.users[other]; found {
			v.Email = u.Email
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Store) CountFollows(ctx context.Context, userID string) (models.FollowCounts, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var c models.FollowCounts
	for _, f := range m.s.t.follows {
		if f.FollowingID == userID {
			c.Followers++
		}
		if f.FollowerID == userID {
			c.Following++
		}
	}
	return c, nil
}
