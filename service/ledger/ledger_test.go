package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/service/notify"
	"lendbook/storage"
	"lendbook/storage/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	ledger *Service
	ctx    context.Context
}

func setup(t *testing.T) *fixture {
	store := memstore.New().WithClock(func() time.Time { return now })
	log := zaptest.NewLogger(t)
	var mu sync.Mutex
	tick := now
	n := notify.New(store, log).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	})
	f := &fixture{
		store:  store,
		ledger: New(store, n, log).WithClock(func() time.Time { return now }),
		ctx:    context.Background(),
	}
	for _, u := range [][2]string{{"alice", "Alice"}, {"bob", "Bob"}} {
		_, err := store.FindOrCreateUser(f.ctx, u[0]+"@example.com", u[1], u[0])
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) item(t *testing.T, owner, name string) *models.Item {
	it := &models.Item{ID: uuid.NewString(), OwnerUserID: owner, Name: name, Availability: models.Available}
	require.NoError(t, f.store.CreateItem(f.ctx, it))
	return it
}

func (f *fixture) contact(t *testing.T, owner, name string, linked *string) *models.Contact {
	c := &models.Contact{ID: uuid.NewString(), OwnerUserID: owner, Name: name, LinkedUserID: linked}
	require.NoError(t, f.store.CreateContact(f.ctx, c))
	return c
}

func (f *fixture) availability(t *testing.T, id string) models.Availability {
	it, err := f.store.GetItem(f.ctx, id)
	require.NoError(t, err)
	return it.Availability
}

// assertConsistent checks that every item has at most one open record and is
// unavailable exactly when it has one.
func (f *fixture) assertConsistent(t *testing.T, owner string) {
	items, err := f.store.ListItemsByOwner(f.ctx, owner)
	require.NoError(t, err)
	for _, it := range items {
		open, err := f.store.ListLendingViews(f.ctx, storage.LendingFilter{ItemID: it.ID, Status: models.StatusBorrowed})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(open), 1, "item %s", it.Name)
		assert.Equal(t, len(open) == 1, it.Availability == models.Unavailable, "item %s", it.Name)
	}
}

func strp(s string) *string { return &s }

func TestLendAndReturnRoundTrip(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)

	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusBorrowed, recs[0].Status)
	assert.Equal(t, now, recs[0].StartDate)
	assert.Nil(t, recs[0].BorrowerUserID)
	assert.Equal(t, models.Unavailable, f.availability(t, drill.ID))
	f.assertConsistent(t, "alice")

	rec, err := f.ledger.Return(f.ctx, "alice", recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, rec.Status)
	require.NotNil(t, rec.ReturnedAt)

	assert.Equal(t, models.Available, f.availability(t, drill.ID))
	all, err := f.store.ListLendingViews(f.ctx, storage.LendingFilter{ItemID: drill.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusReturned, all[0].Status)
	assert.NotNil(t, all[0].ReturnedAt)
	f.assertConsistent(t, "alice")
}

func TestReturnTwiceIsInvalidState(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)

	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)
	first, err := f.ledger.Return(f.ctx, "alice", recs[0].ID)
	require.NoError(t, err)

	_, err = f.ledger.Return(f.ctx, "alice", recs[0].ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := f.store.GetLendingRecord(f.ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ReturnedAt, *got.ReturnedAt)
}

func TestReturnChecks(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)
	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)

	_, err = f.ledger.Return(f.ctx, "bob", recs[0].ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = f.ledger.Return(f.ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReturnAfterItemDeleted(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)
	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteItem(f.ctx, drill.ID))

	rec, err := f.ledger.Return(f.ctx, "alice", recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, rec.Status)
}

func TestBatchAtomicity(t *testing.T) {
	f := setup(t)
	a := f.item(t, "alice", "A")
	b := f.item(t, "alice", "B")
	bob := f.contact(t, "alice", "Bob", nil)
	carol := f.contact(t, "alice", "Carol", nil)

	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{b.ID}, ContactID: carol.ID})
	require.NoError(t, err)

	_, err = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{a.ID, b.ID}, ContactID: bob.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), `"B" is already lent out`)

	assert.Equal(t, models.Available, f.availability(t, a.ID))
	recs, err := f.store.ListLendingViews(f.ctx, storage.LendingFilter{ItemID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)
	f.assertConsistent(t, "alice")
}

func TestLendReportsEveryFailingItem(t *testing.T) {
	f := setup(t)
	ok := f.item(t, "alice", "Mine")
	foreign := f.item(t, "bob", "Theirs")
	bob := f.contact(t, "alice", "Bob", nil)

	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{ok.ID, foreign.ID, "ghost"}, ContactID: bob.ID})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), `"Theirs" is not yours`)
	assert.Contains(t, err.Error(), "item ghost not found")
	assert.Equal(t, models.Available, f.availability(t, ok.ID))
}

func TestLendPreconditions(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	foreignContact := f.contact(t, "bob", "Someone", nil)

	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ContactID: foreignContact.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation, "empty batch")

	_, err = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: "ghost"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: foreignContact.ID})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	past := now.Add(-72 * time.Hour)
	mine := f.contact(t, "alice", "Bob", nil)
	_, err = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: mine.ID, DueDate: &past})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLendCollapsesDuplicateIDs(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)

	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID, drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLendToLinkedContactNotifiesBorrower(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", strp("bob"))
	due := now.Add(7 * 24 * time.Hour)

	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID, DueDate: &due})
	require.NoError(t, err)
	require.NotNil(t, recs[0].BorrowerUserID)
	assert.Equal(t, "bob", *recs[0].BorrowerUserID)

	notes, err := f.store.ListNotificationViews(f.ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyItemLent, notes[0].Type)
	assert.Equal(t, "2024-06-08", notes[0].Metadata["dueDate"])

	borrowed, err := f.ledger.ActiveForBorrower(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, "Drill", borrowed[0].Item.Name)

	_, err = f.ledger.Return(f.ctx, "alice", recs[0].ID)
	require.NoError(t, err)
	notes, err = f.store.ListNotificationViews(f.ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyItemReturned, notes[0].Type)
}

type noNotes struct{ storage.NotificationStore }

func (noNotes) InsertNotification(context.Context, *models.Notification) error {
	return errors.New("notifications down")
}

func TestNotificationFailureDoesNotFailLend(t *testing.T) {
	f := setup(t)
	log := zaptest.NewLogger(t)
	l := New(f.store, notify.New(noNotes{f.store}, log), log)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", strp("bob"))

	recs, err := l.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)
	_, err = l.Return(f.ctx, "alice", recs[0].ID)
	require.NoError(t, err)
}

func TestCommitFailureIsPartialFailure(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)
	f.store.FailNextCommit(errors.New("connection reset by peer"))

	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	assert.ErrorIs(t, err, apperr.ErrPartialFailure)
	assert.Equal(t, apperr.KindPartialFailure, apperr.KindOf(err))
}

func TestConcurrentLendsHaveOneWinner(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		kind := apperr.KindOf(err)
		assert.True(t, kind == apperr.KindConflict || kind == apperr.KindValidation, "unexpected error %v", err)
	}
	assert.Equal(t, 1, wins)
	f.assertConsistent(t, "alice")
}

func TestHistoryToleratesDeletedRows(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")
	bob := f.contact(t, "alice", "Bob", nil)
	recs, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{drill.ID}, ContactID: bob.ID})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteContact(f.ctx, bob.ID))
	hist, err := f.ledger.HistoryForContact(f.ctx, "alice", bob.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.UnknownContact, hist[0].Contact.Name)
	assert.Equal(t, "Drill", hist[0].Item.Name)

	require.NoError(t, f.store.DeleteItem(f.ctx, drill.ID))
	hist, err = f.ledger.HistoryForItem(f.ctx, "alice", drill.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, recs[0].ID, hist[0].ID)
	assert.Equal(t, models.UnknownItem, hist[0].Item.Name)

	hist, err = f.ledger.HistoryForItem(f.ctx, "bob", drill.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestHistoryForItemOwnerOnly(t *testing.T) {
	f := setup(t)
	drill := f.item(t, "alice", "Drill")

	_, err := f.ledger.HistoryForItem(f.ctx, "bob", drill.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestActiveGroupedByContact(t *testing.T) {
	f := setup(t)
	zed := f.contact(t, "alice", "Zed", nil)
	amy := f.contact(t, "alice", "Amy", nil)
	a, b, c := f.item(t, "alice", "A"), f.item(t, "alice", "B"), f.item(t, "alice", "C")

	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{a.ID, b.ID}, ContactID: zed.ID})
	require.NoError(t, err)
	_, err = f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{c.ID}, ContactID: amy.ID})
	require.NoError(t, err)

	groups, err := f.ledger.ActiveGroupedByContact(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Amy", groups[0].Contact.Name)
	assert.Len(t, groups[0].Records, 1)
	assert.Equal(t, "Zed", groups[1].Contact.Name)
	assert.Len(t, groups[1].Records, 2)
}

func TestReconcile(t *testing.T) {
	f := setup(t)
	good := f.item(t, "alice", "Good")
	drifted := f.item(t, "alice", "Drifted")
	bob := f.contact(t, "alice", "Bob", nil)
	_, err := f.ledger.Lend(f.ctx, "alice", LendInput{ItemIDs: []string{good.ID}, ContactID: bob.ID})
	require.NoError(t, err)

	report, err := f.ledger.Reconcile(f.ctx, "alice")
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// flag flipped without a record
	require.NoError(t, f.store.SetItemAvailability(f.ctx, drifted.ID, models.Available, models.Unavailable))
	require.NoError(t, f.store.InsertRequest(f.ctx, &models.BorrowRequest{
		ID: "q1", ItemID: good.ID, RequesterUserID: "bob", OwnerUserID: "alice", Status: models.RequestAccepted,
	}))

	report, err = f.ledger.Reconcile(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, drifted.ID, report.Items[0].ItemID)
	assert.Equal(t, 0, report.Items[0].OpenRecords)
	assert.Equal(t, []string{"q1"}, report.AcceptedOrphans)
}
