package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lendbook/models"
	"lendbook/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"
)

// setupTestRepo starts a Postgres container and applies the migrations.
func setupTestRepo(t *testing.T) *Repo {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pg, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("lendbook"),
		postgresTC.WithUsername("lendbook"),
		postgresTC.WithPassword("lendbook"),
		postgresTC.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start Postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pg) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := Connect(ctx, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	repo := NewRepo(gdb)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, r *Repo, name string) *models.User {
	u, err := r.FindOrCreateUser(context.Background(), name+"@example.com", name, uuid.NewString())
	require.NoError(t, err)
	return u
}

func seedItem(t *testing.T, r *Repo, ownerID, name string) *models.Item {
	it := &models.Item{
		ID:           uuid.NewString(),
		OwnerUserID:  ownerID,
		Name:         name,
		Visibility:   models.VisibilityPrivate,
		Availability: models.Available,
	}
	require.NoError(t, r.CreateItem(context.Background(), it))
	return it
}

func TestPostgresRepo(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")

	t.Run("one open record per item", func(t *testing.T) {
		item := seedItem(t, repo, alice.ID, "Drill")
		contact := &models.Contact{ID: uuid.NewString(), OwnerUserID: alice.ID, Name: "Bob"}
		require.NoError(t, repo.CreateContact(ctx, contact))

		first := &models.LendingRecord{
			ID: uuid.NewString(), ItemID: item.ID, ContactID: contact.ID,
			LenderUserID: alice.ID, StartDate: time.Now(), Status: models.StatusBorrowed,
		}
		require.NoError(t, repo.InsertLendingRecord(ctx, first))

		second := *first
		second.ID = uuid.NewString()
		err := repo.InsertLendingRecord(ctx, &second)
		assert.ErrorIs(t, err, storage.ErrDuplicate)

		require.NoError(t, repo.CloseLendingRecord(ctx, first.ID, time.Now()))
		assert.ErrorIs(t, repo.CloseLendingRecord(ctx, first.ID, time.Now()), storage.ErrStale)

		// closed records no longer block a new loan
		require.NoError(t, repo.InsertLendingRecord(ctx, &second))
	})

	t.Run("availability compare and swap", func(t *testing.T) {
		item := seedItem(t, repo, alice.ID, "Ladder")
		require.NoError(t, repo.SetItemAvailability(ctx, item.ID, models.Available, models.Unavailable))
		err := repo.SetItemAvailability(ctx, item.ID, models.Available, models.Unavailable)
		assert.ErrorIs(t, err, storage.ErrStale)
	})

	t.Run("linked contact unique per owner", func(t *testing.T) {
		a := &models.Contact{ID: uuid.NewString(), OwnerUserID: alice.ID, Name: "Bob", LinkedUserID: &bob.ID}
		require.NoError(t, repo.CreateContact(ctx, a))
		b := &models.Contact{ID: uuid.NewString(), OwnerUserID: alice.ID, Name: "Bobby", LinkedUserID: &bob.ID}
		assert.ErrorIs(t, repo.CreateContact(ctx, b), storage.ErrDuplicate)

		got, err := repo.FindContactByLinkedUser(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	})

	t.Run("views tolerate deleted rows", func(t *testing.T) {
		item := seedItem(t, repo, alice.ID, "Tent")
		contact := &models.Contact{ID: uuid.NewString(), OwnerUserID: alice.ID, Name: "Carol"}
		require.NoError(t, repo.CreateContact(ctx, contact))
		rec := &models.LendingRecord{
			ID: uuid.NewString(), ItemID: item.ID, ContactID: contact.ID,
			LenderUserID: alice.ID, StartDate: time.Now(), Status: models.StatusBorrowed,
		}
		require.NoError(t, repo.InsertLendingRecord(ctx, rec))
		require.NoError(t, repo.DeleteContact(ctx, contact.ID))
		require.NoError(t, repo.DeleteItem(ctx, item.ID))

		views, err := repo.ListLendingViews(ctx, storage.LendingFilter{ItemID: item.ID})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, models.UnknownItem, views[0].Item.Name)
		assert.True(t, views[0].Item.Missing)
		assert.Equal(t, models.UnknownContact, views[0].Contact.Name)
		assert.Equal(t, "alice", views[0].Lender.Name)
	})

	t.Run("rollback on error", func(t *testing.T) {
		item := seedItem(t, repo, alice.ID, "Kayak")
		boom := errors.New("boom")
		err := repo.InTx(ctx, func(tx storage.Store) error {
			require.NoError(t, tx.SetItemAvailability(ctx, item.ID, models.Available, models.Unavailable))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Available, got.Availability)
	})

	t.Run("concurrent transitions have one winner", func(t *testing.T) {
		item := seedItem(t, repo, alice.ID, "Bike")
		req := &models.BorrowRequest{
			ID: uuid.NewString(), ItemID: item.ID, RequesterUserID: bob.ID,
			OwnerUserID: alice.ID, Status: models.RequestPending,
		}
		require.NoError(t, repo.InsertRequest(ctx, req))

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.TransitionRequest(ctx, req.ID, models.RequestPending, models.RequestAccepted, time.Now())
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, storage.ErrStale)
			}
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		users, err := repo.SearchUsers(ctx, "%", "", 10)
		require.NoError(t, err)
		assert.Empty(t, users)

		users, err = repo.SearchUsers(ctx, "ALI", bob.ID, 10)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, alice.ID, users[0].ID)
	})

	t.Run("follow counts", func(t *testing.T) {
		require.NoError(t, repo.CreateFollow(ctx, &models.Follow{ID: uuid.NewString(), FollowerID: bob.ID, FollowingID: alice.ID}))
		err := repo.CreateFollow(ctx, &models.Follow{ID: uuid.NewString(), FollowerID: bob.ID, FollowingID: alice.ID})
		assert.ErrorIs(t, err, storage.ErrDuplicate)

		counts, err := repo.CountFollows(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts.Followers)
		assert.Equal(t, int64(0), counts.Following)

		followers, err := repo.ListFollowers(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, followers, 1)
		assert.Equal(t, "bob", followers[0].User.Name)
	})
}
