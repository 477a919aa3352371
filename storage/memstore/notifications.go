package memstore

import (
	"context"
	"sort"

	"lendbook/models"
	"lendbook/storage"
)

func (m *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.notifications[n.ID]; ok {
		return storage.ErrDuplicate
	}
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	m.stamp(&n.CreatedAt)
	m.s.t.notifications[n.ID] = *n
	return nil
}

func (m *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	n, ok := m.s.t.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &n, nil
}

func (m *Store) ListNotificationViews(ctx context.Context, recipientID string, limit int) ([]models.NotificationView, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.NotificationView
	for _, n := range m.s.t.notifications {
		if n.RecipientUserID != recipientID {
			continue
		}
		out = append(out, models.NotificationView{
			Notification: n,
			Sender:       models.ResolveOptionalRef(n.SenderUserID, m.optUserNameLocked(n.SenderUserID), models.UnknownUser),
			Item:         models.ResolveOptionalRef(n.RelatedItemID, m.optItemNameLocked(n.RelatedItemID), models.UnknownItem),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var n int64
	for _, x := range m.s.t.notifications {
		if x.RecipientUserID == recipientID && x.Status == models.NotificationUnread {
			n++
		}
	}
	return n, nil
}

func (m *Store) MarkNotificationRead(ctx context.Context, id string) error {
	unlock := m.lock()
	defer unlock()

	n, ok := m.s.t.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Status = models.NotificationRead
	m.s.t.notifications[id] = n
	return nil
}

func (m *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	unlock := m.lock()
	defer unlock()

	var count int64
	for id, n := range m.s.t.notifications {
		if n.RecipientUserID == recipientID && n.Status == models.NotificationUnread {
			n.Status = models.NotificationRead
			m.s.t.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (m *Store) DeleteNotification(ctx context.Context, id string) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.s.t.notifications[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.s.t.notifications, id)
	return nil
}

func (m *Store) DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error) {
	unlock := m.lock()
	defer unlock()

	var count int64
	for id, n := range m.s.t.notifications {
		if n.RecipientUserID == recipientID {
			delete(m.s.t.notifications, id)
			count++
		}
	}
	return count, nil
}
