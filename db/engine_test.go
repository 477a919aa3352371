package db

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/service"
	"lendbook/service/catalog"
	"lendbook/service/contacts"
	"lendbook/service/ledger"
	"lendbook/service/requests"
	"lendbook/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// missLinkedOnce makes the next linked-contact lookup miss once armed, as
// when another session inserts that contact right after the lookup.
type missLinkedOnce struct {
	storage.Store
	armed *atomic.Bool
}

func (s missLinkedOnce) FindContactByLinkedUser(ctx context.Context, ownerID, linkedUserID string) (*models.Contact, error) {
	if s.armed.CompareAndSwap(true, false) {
		return nil, storage.ErrNotFound
	}
	return s.Store.FindContactByLinkedUser(ctx, ownerID, linkedUserID)
}

func (s missLinkedOnce) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.Store.InTx(ctx, func(tx storage.Store) error {
		return fn(missLinkedOnce{Store: tx, armed: s.armed})
	})
}

func linkedContact(t *testing.T, eng *service.Engine, owner, name, account string) *models.Contact {
	ctx := context.Background()
	c, err := eng.Contacts.Create(ctx, owner, contacts.Input{Name: name})
	require.NoError(t, err)
	c, err = eng.Contacts.LinkToAccount(ctx, owner, c.ID, account)
	require.NoError(t, err)
	return c
}

func openRecords(t *testing.T, repo *Repo, itemID string) []models.LendingRecordView {
	views, err := repo.ListLendingViews(context.Background(), storage.LendingFilter{ItemID: itemID, Status: models.StatusBorrowed})
	require.NoError(t, err)
	return views
}

func TestEngineOnPostgres(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("accept absorbs a contact created concurrently", func(t *testing.T) {
		olivia := seedUser(t, repo, "olivia")
		riley := seedUser(t, repo, "riley")
		armed := new(atomic.Bool)
		eng := service.New(missLinkedOnce{Store: repo, armed: armed}, zaptest.NewLogger(t))

		item, err := eng.Catalog.Create(ctx, olivia.ID, catalog.ItemInput{Name: "Drill"})
		require.NoError(t, err)
		viaRiley := linkedContact(t, eng, riley.ID, "Olivia", olivia.ID)
		existing := linkedContact(t, eng, olivia.ID, "Riley R.", riley.ID)

		req, err := eng.Requests.Create(ctx, riley.ID, requests.CreateInput{ContactID: viaRiley.ID, ItemID: item.ID})
		require.NoError(t, err)

		// the insert hits the unique index; the transaction must survive it
		armed.Store(true)
		res, err := eng.Requests.Accept(ctx, olivia.ID, req.ID)
		require.NoError(t, err)
		assert.False(t, armed.Load())
		assert.Equal(t, existing.ID, res.Contact.ID)
		assert.Equal(t, existing.ID, res.Record.ContactID)

		got, err := repo.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestAccepted, got.Status)
		it, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Unavailable, it.Availability)
		assert.Len(t, openRecords(t, repo, item.ID), 1)

		all, err := repo.ListContacts(ctx, olivia.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("concurrent lends of one item have one winner", func(t *testing.T) {
		owner := seedUser(t, repo, "oscar")
		eng := service.New(repo, zaptest.NewLogger(t))
		item, err := eng.Catalog.Create(ctx, owner.ID, catalog.ItemInput{Name: "Ladder"})
		require.NoError(t, err)

		const n = 4
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range errs {
			c, err := eng.Contacts.Create(ctx, owner.ID, contacts.Input{Name: "Neighbour"})
			require.NoError(t, err)
			wg.Add(1)
			go func(i int, contactID string) {
				defer wg.Done()
				_, errs[i] = eng.Ledger.Lend(ctx, owner.ID, ledger.LendInput{ItemIDs: []string{item.ID}, ContactID: contactID})
			}(i, c.ID)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			kind := apperr.KindOf(err)
			assert.Contains(t, []apperr.Kind{apperr.KindConflict, apperr.KindValidation}, kind, err.Error())
		}
		assert.Equal(t, 1, wins)
		assert.Len(t, openRecords(t, repo, item.ID), 1)
	})

	t.Run("batch lend rolls back records already written", func(t *testing.T) {
		owner := seedUser(t, repo, "paula")
		eng := service.New(repo, zaptest.NewLogger(t))
		first, err := eng.Catalog.Create(ctx, owner.ID, catalog.ItemInput{Name: "Tent"})
		require.NoError(t, err)
		second, err := eng.Catalog.Create(ctx, owner.ID, catalog.ItemInput{Name: "Stove"})
		require.NoError(t, err)
		c, err := eng.Contacts.Create(ctx, owner.ID, contacts.Input{Name: "Quinn"})
		require.NoError(t, err)

		// second already has an open record though its flag still says available
		require.NoError(t, repo.InsertLendingRecord(ctx, &models.LendingRecord{
			ID: uuid.NewString(), ItemID: second.ID, ContactID: c.ID, LenderUserID: owner.ID,
			StartDate: time.Now(), Status: models.StatusBorrowed,
		}))

		_, err = eng.Ledger.Lend(ctx, owner.ID, ledger.LendInput{ItemIDs: []string{first.ID, second.ID}, ContactID: c.ID})
		assert.ErrorIs(t, err, apperr.ErrConflict)

		assert.Empty(t, openRecords(t, repo, first.ID))
		it, err := repo.GetItem(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Available, it.Availability)
	})

	t.Run("malformed ids are not found", func(t *testing.T) {
		owner := seedUser(t, repo, "rita")
		eng := service.New(repo, zaptest.NewLogger(t))
		c, err := eng.Contacts.Create(ctx, owner.ID, contacts.Input{Name: "Sam"})
		require.NoError(t, err)

		_, err = repo.GetItem(ctx, "foo")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = eng.Catalog.Get(ctx, owner.ID, "foo")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = eng.Ledger.Return(ctx, owner.ID, "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = eng.Contacts.Get(ctx, owner.ID, "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = eng.Ledger.Lend(ctx, owner.ID, ledger.LendInput{ItemIDs: []string{"x"}, ContactID: c.ID})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, err.Error(), "item x not found")

		hist, err := eng.Ledger.HistoryForContact(ctx, owner.ID, "x")
		require.NoError(t, err)
		assert.Empty(t, hist)
		pending, err := eng.Requests.PendingForItems(ctx, owner.ID, []string{"x"})
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
