package memstore

import (
	"context"
	"sort"
	"strings"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	u, ok := m.s.t.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.userByEmailLocked(email)
}

func (m *Store) userByEmailLocked(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.s.t.users {
		if strings.ToLower(u.Email) == email {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Store) FindOrCreateUser(ctx context.Context, email, name, newID string) (*models.User, error) {
	unlock := m.lock()
	defer unlock()

	if u, err := m.userByEmailLocked(email); err == nil {
		return u, nil
	}
	u := models.User{ID: newID, Email: strings.ToLower(strings.TrimSpace(email)), Name: name}
	u.UpdatedAt = m.stamp(&u.CreatedAt)
	m.s.t.users[u.ID] = u
	return &u, nil
}

func (m *Store) SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	q = strings.ToLower(strings.TrimSpace(q))
	var out []models.User
	for _, u := range m.s.t.users {
		if u.ID == excludeID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	unlock := m.lock()
	defer unlock()

	u, ok := m.s.t.users[userID]
	if !ok {
		return nil
	}
	now := m.now()
	u.LastLoginAt, u.LastSeenAt = &now, &now
	u.LoginCount++
	u.LastLoginIP, u.LastLoginUA = ip, ua
	m.s.t.users[userID] = u
	return nil
}

func (m *Store) TouchUserSeen(ctx context.Context, userID string) error {
	unlock := m.lock()
	defer unlock()

	u, ok := m.s.t.users[userID]
	if !ok {
		return nil
	}
	now := m.now()
	u.LastSeenAt = &now
	m.s.t.users[userID] = u
	return nil
}

func (m *Store) AddCredential(ctx context.Context, c *models.Credential) error {
	unlock := m.lock()
	defer unlock()

	key := string(c.CredentialID)
	if _, ok := m.s.t.creds[key]; ok {
		return storage.ErrDuplicate
	}
	m.s.t.credSeq++
	c.ID = m.s.t.credSeq
	c.UpdatedAt = m.stamp(&c.CreatedAt)
	m.s.t.creds[key] = *c
	return nil
}

func (m *Store) LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.Credential
	for _, c := range m.s.t.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	c, ok := m.s.t.creds[string(credID)]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	u, ok := m.s.t.users[c.UserID]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	return &u, &c, nil
}

func (m *Store) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	unlock := m.lock()
	defer unlock()

	c, ok := m.s.t.creds[string(credID)]
	if !ok {
		return nil
	}
	now := m.now()
	c.SignCount, c.CloneWarning, c.LastUsedAt = newCount, cloneWarn, &now
	m.s.t.creds[string(credID)] = c
	return nil
}
