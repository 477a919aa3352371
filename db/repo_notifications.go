package db

import (
	"context"

	"lendbook/models"
	"lendbook/storage"
)

func (r *Repo) InsertNotification(ctx context.Context, n *models.Notification) error {
	return translate(r.DB.WithContext(ctx).Create(n).Error)
}

func (r *Repo) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.DB.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

type notificationRow struct {
	models.Notification
	SenderName *string
	ItemName   *string
}

func (r *Repo) ListNotificationViews(ctx context.Context, recipientID string, limit int) ([]models.NotificationView, error) {
	var rows []notificationRow
	err := r.DB.WithContext(ctx).
		Table(models.NotificationTable+" n").
		Select("n.*, s.name AS sender_name, i.name AS item_name").
		Joins("LEFT JOIN "+models.UserTable+" s ON s.id = n.sender_user_id").
		Joins("LEFT JOIN "+models.ItemTable+" i ON i.id = n.related_item_id").
		Where("n.recipient_user_id = ?", recipientID).
		Order("n.created_at DESC, n.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.NotificationView, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.NotificationView{
			Notification: row.Notification,
			Sender:       models.ResolveOptionalRef(row.SenderUserID, row.SenderName, models.UnknownUser),
			Item:         models.ResolveOptionalRef(row.RelatedItemID, row.ItemName, models.UnknownItem),
		})
	}
	return out, nil
}

func (r *Repo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_user_id = ? AND status = ?", recipientID, models.NotificationUnread).
		Count(&n).Error
	return n, err
}

func (r *Repo) MarkNotificationRead(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("status", models.NotificationRead)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_user_id = ? AND status = ?", recipientID, models.NotificationUnread).
		Update("status", models.NotificationRead)
	return res.RowsAffected, res.Error
}

func (r *Repo) DeleteNotification(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("recipient_user_id = ?", recipientID).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
