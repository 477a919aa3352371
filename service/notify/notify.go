// Package notify records in-app notifications. Workflows call Send, which
// never fails the calling operation.
package notify

import (
	"context"
	"errors"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Event describes one notification to append. Empty optional fields are
// stored as NULL.
type Event struct {
	Recipient string
	Sender    string
	Type      models.NotificationType
	Title     string
	Message   string
	ItemID    string
	RequestID string
	RecordID  string
	ActionURL string
	Metadata  map[string]any
}

type Dispatcher struct {
	store storage.NotificationStore
	log   *zap.Logger
	now   func() time.Time
}

func New(store storage.NotificationStore, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock used for CreatedAt.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	cp := *d
	cp.now = now
	return &cp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Emit appends one notification.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) (*models.Notification, error) {
	if ev.Recipient == "" {
		return nil, apperr.Validation("notification recipient is required")
	}
	if ev.Type == "" || ev.Title == "" {
		return nil, apperr.Validation("notification type and title are required")
	}
	n := &models.Notification{
		ID:               uuid.NewString(),
		RecipientUserID:  ev.Recipient,
		SenderUserID:     optional(ev.Sender),
		Type:             ev.Type,
		Title:            ev.Title,
		Message:          optional(ev.Message),
		Status:           models.NotificationUnread,
		RelatedItemID:    optional(ev.ItemID),
		RelatedRequestID: optional(ev.RequestID),
		RelatedRecordID:  optional(ev.RecordID),
		ActionURL:        optional(ev.ActionURL),
		Metadata:         ev.Metadata,
		CreatedAt:        d.now(),
	}
	if err := d.store.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Send is Emit for side effects: a failure is logged and dropped. It keeps
// going when ctx is cancelled after the main operation committed.
func (d *Dispatcher) Send(ctx context.Context, ev Event) {
	if _, err := d.Emit(context.WithoutCancel(ctx), ev); err != nil {
		d.log.Warn("notification dropped",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.Recipient),
			zap.String("item_id", ev.ItemID),
			zap.String("request_id", ev.RequestID),
			zap.String("record_id", ev.RecordID),
			zap.Error(err))
	}
}

// List returns the newest notifications for recipient. limit <= 0 means the
// default; it is capped at MaxListLimit.
func (d *Dispatcher) List(ctx context.Context, recipient string, limit int) ([]models.NotificationView, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return d.store.ListNotificationViews(ctx, recipient, limit)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	return d.store.CountUnread(ctx, recipient)
}

// owned loads a notification and checks it is addressed to caller.
func (d *Dispatcher) owned(ctx context.Context, caller, id string) (*models.Notification, error) {
	n, err := d.store.GetNotification(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("notification not found")
	}
	if err != nil {
		return nil, err
	}
	if n.RecipientUserID != caller {
		return nil, apperr.Authorization("notification belongs to another user")
	}
	return n, nil
}

func (d *Dispatcher) MarkRead(ctx context.Context, caller, id string) error {
	n, err := d.owned(ctx, caller, id)
	if err != nil {
		return err
	}
	if n.Status == models.NotificationRead {
		return nil
	}
	return d.store.MarkNotificationRead(ctx, id)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, caller string) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, caller)
}

func (d *Dispatcher) Dismiss(ctx context.Context, caller, id string) error {
	if _, err := d.owned(ctx, caller, id); err != nil {
		return err
	}
	err := d.store.DeleteNotification(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// dismissed concurrently
		return nil
	}
	return err
}

func (d *Dispatcher) DismissAll(ctx context.Context, caller string) (int64, error) {
	return d.store.DeleteAllNotifications(ctx, caller)
}
