package social

import (
	"context"
	"testing"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*Service, *memstore.Store, context.Context) {
	store := memstore.New()
	ctx := context.Background()
	for _, u := range [][2]string{{"alice", "Alice"}, {"bob", "Bob"}, {"carol", "Carol"}} {
		_, err := store.FindOrCreateUser(ctx, u[0]+"@example.com", u[1], u[0])
		require.NoError(t, err)
	}
	return New(store, zaptest.NewLogger(t)), store, ctx
}

func TestFollowLifecycle(t *testing.T) {
	svc, _, ctx := setup(t)

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Follow(ctx, "carol", "bob"))

	ok, err := svc.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	counts, err := svc.Counts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.FollowCounts{Followers: 2, Following: 0}, counts)

	followers, err := svc.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	following, err := svc.Following(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "Bob", following[0].User.Name)

	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))
	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))
	ok, err = svc.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollowChecks(t *testing.T) {
	svc, _, ctx := setup(t)

	assert.ErrorIs(t, svc.Follow(ctx, "alice", "alice"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Follow(ctx, "alice", "ghost"), apperr.ErrNotFound)
}

func TestProfile(t *testing.T) {
	svc, _, ctx := setup(t)
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))

	p, err := svc.Profile(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", p.Name)
	assert.True(t, p.IsFollowing)
	assert.False(t, p.IsSelf)
	assert.EqualValues(t, 1, p.Counts.Followers)

	self, err := svc.Profile(ctx, "bob", "bob")
	require.NoError(t, err)
	assert.True(t, self.IsSelf)
	assert.False(t, self.IsFollowing)

	_, err = svc.Profile(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDiscoverShowsPublicItemsOfFollowed(t *testing.T) {
	svc, store, ctx := setup(t)
	add := func(owner, name string, vis models.Visibility) {
		require.NoError(t, store.CreateItem(ctx, &models.Item{
			ID: uuid.NewString(), OwnerUserID: owner, Name: name,
			Visibility: vis, Availability: models.Available,
		}))
	}
	add("bob", "Tent", models.VisibilityPublic)
	add("bob", "Diary", models.VisibilityPrivate)
	add("carol", "Kayak", models.VisibilityPublic)

	items, err := svc.Discover(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	items, err = svc.Discover(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tent", items[0].Name)
}
