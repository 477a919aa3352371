package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage"
	"lendbook/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type downStore struct{ storage.NotificationStore }

func (downStore) InsertNotification(context.Context, *models.Notification) error {
	return errors.New("notification store unavailable")
}

func TestEmitValidates(t *testing.T) {
	d := New(memstore.New(), zaptest.NewLogger(t))

	_, err := d.Emit(context.Background(), Event{Type: models.NotifyItemLent, Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = d.Emit(context.Background(), Event{Recipient: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEmitStoresOptionalRefs(t *testing.T) {
	store := memstore.New()
	d := New(store, zaptest.NewLogger(t))
	ctx := context.Background()

	n, err := d.Emit(ctx, Event{
		Recipient: "u1",
		Type:      models.NotifyRequestRejected,
		Title:     "Borrow request declined",
		RequestID: "q1",
		Metadata:  map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Nil(t, n.SenderUserID)
	assert.Nil(t, n.Message)
	require.NotNil(t, n.RelatedRequestID)
	assert.Equal(t, "q1", *n.RelatedRequestID)
	assert.Equal(t, models.NotificationUnread, n.Status)
	assert.Equal(t, "v", n.Metadata["k"])
}

func TestSendSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := New(downStore{}, zap.New(core))

	assert.NotPanics(t, func() {
		d.Send(context.Background(), Event{Recipient: "u1", Type: models.NotifyItemLent, Title: "Item lent to you", ItemID: "i1"})
	})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "notification dropped", entry.Message)
	assert.Equal(t, "i1", entry.ContextMap()["item_id"])
}

func TestSendSurvivesCancelledContext(t *testing.T) {
	store := memstore.New()
	d := New(store, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Send(ctx, Event{Recipient: "u1", Type: models.NotifyItemLent, Title: "t"})
	n, err := d.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListLimits(t *testing.T) {
	store := memstore.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	d := New(store, zaptest.NewLogger(t)).WithClock(func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	})
	ctx := context.Background()
	for n := 0; n < MaxListLimit+10; n++ {
		_, err := d.Emit(ctx, Event{Recipient: "u1", Type: models.NotifyItemLent, Title: fmt.Sprintf("n%d", n)})
		require.NoError(t, err)
	}

	got, err := d.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultListLimit)
	assert.Equal(t, fmt.Sprintf("n%d", MaxListLimit+9), got[0].Title, "newest first")

	got, err = d.List(ctx, "u1", 10_000)
	require.NoError(t, err)
	assert.Len(t, got, MaxListLimit)
}

func TestRecipientScoping(t *testing.T) {
	store := memstore.New()
	d := New(store, zaptest.NewLogger(t))
	ctx := context.Background()

	n, err := d.Emit(ctx, Event{Recipient: "u1", Type: models.NotifyItemLent, Title: "t"})
	require.NoError(t, err)

	assert.ErrorIs(t, d.MarkRead(ctx, "u2", n.ID), apperr.ErrAuthorization)
	assert.ErrorIs(t, d.Dismiss(ctx, "u2", n.ID), apperr.ErrAuthorization)
	assert.ErrorIs(t, d.MarkRead(ctx, "u1", "nope"), apperr.ErrNotFound)

	require.NoError(t, d.MarkRead(ctx, "u1", n.ID))
	require.NoError(t, d.MarkRead(ctx, "u1", n.ID))
	unread, err := d.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, d.Dismiss(ctx, "u1", n.ID))
	assert.ErrorIs(t, d.Dismiss(ctx, "u1", n.ID), apperr.ErrNotFound)
}

func TestBulkOperationsOnlyTouchCaller(t *testing.T) {
	store := memstore.New()
	d := New(store, zaptest.NewLogger(t))
	ctx := context.Background()
	for _, r := range []string{"u1", "u1", "u2"} {
		_, err := d.Emit(ctx, Event{Recipient: r, Type: models.NotifyItemLent, Title: "t"})
		require.NoError(t, err)
	}

	n, err := d.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = d.DismissAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := d.List(ctx, "u2", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, models.NotificationUnread, left[0].Status)
}
