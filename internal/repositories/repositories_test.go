package repositories_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/storage"
)

func setupStore(t *testing.T) *storage.Store {
	t.Helper()
	s := storage.New(storage.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "store.db")}, zaptest.NewLogger(t))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSyncQueueRepository_InsertionOrderAndRetries(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStoreSyncQueueRepository(setupStore(t))

	for _, key := range []string{"a", "b", "c"} {
		entry := &models.SyncQueueEntry{Action: models.ActionOrderSubmit, Payload: []byte(`"` + key + `"`), Timestamp: time.Now()}
		require.NoError(t, repo.Append(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, `"a"`, string(entries[0].Payload))
	assert.Equal(t, `"b"`, string(entries[1].Payload))
	assert.Equal(t, `"c"`, string(entries[2].Payload))

	first := entries[0].ID
	updated, err := repo.RecordFailure(ctx, first, "timeout", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RetryCount)
	assert.False(t, updated.DeadLettered)

	updated, err = repo.RecordFailure(ctx, first, "timeout again", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.RetryCount)
	assert.True(t, updated.DeadLettered)
	assert.Equal(t, "timeout again", updated.LastError)

	live, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	dead, err := repo.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, first, dead[0].ID)

	require.NoError(t, repo.Remove(ctx, live[0].ID))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCartRepository_SaveReplacesEverything(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStoreCartRepository(setupStore(t))

	require.NoError(t, repo.Save(ctx, []models.CartEntry{
		{ProductID: "p1", Product: models.Product{ID: "p1", Name: "Latte", Price: 4}, Quantity: 1},
		{ProductID: "p2", Product: models.Product{ID: "p2", Name: "Muffin", Price: 3}, Quantity: 2},
	}))
	require.NoError(t, repo.Save(ctx, []models.CartEntry{
		{ProductID: "p3", Product: models.Product{ID: "p3", Name: "Tea", Price: 2}, Quantity: 5},
	}))

	cart, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "Tea", cart[0].Product.Name)
	assert.Equal(t, 5, cart[0].Quantity)

	require.NoError(t, repo.Clear(ctx))
	cart, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestCartRepository_DuplicateEntriesLeaveCartUntouched(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStoreCartRepository(setupStore(t))

	require.NoError(t, repo.Save(ctx, []models.CartEntry{{ProductID: "p1", Quantity: 1}}))
	err := repo.Save(ctx, []models.CartEntry{{ProductID: "p2", Quantity: 1}, {ProductID: "p2", Quantity: 2}})
	assert.Error(t, err)

	cart, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "p1", cart[0].ProductID)
}

func TestOrderRepository_MarkSynced(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStoreOrderRepository(setupStore(t))

	local := &models.Order{
		ID:           "local_1_abc",
		LocalID:      "local_1_abc",
		Items:        []models.OrderItem{{ProductID: "p1", Name: "Latte", Price: 4, Quantity: 1}},
		Total:        4,
		CustomerInfo: models.CustomerInfo{Name: "Ada"},
		Status:       models.OrderStatusOfflinePending,
		Timestamp:    time.Now(),
		IsLocalOnly:  true,
	}
	require.NoError(t, repo.Save(ctx, local))

	pending, err := repo.GetByStatus(ctx, models.OrderStatusOfflinePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	synced := *local
	synced.ID = "srv-42"
	synced.Status = models.OrderStatusPending
	synced.IsLocalOnly = false
	require.NoError(t, repo.MarkSynced(ctx, local.ID, &synced))

	_, err = repo.GetByID(ctx, local.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := repo.GetByID(ctx, "srv-42")
	require.NoError(t, err)
	assert.False(t, got.IsLocalOnly)
	assert.Equal(t, "local_1_abc", got.LocalID)

	byLocal, err := repo.GetByLocalID(ctx, "local_1_abc")
	require.NoError(t, err)
	assert.Equal(t, "srv-42", byLocal.ID)
	_, err = repo.GetByLocalID(ctx, "local_2_def")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPreferenceRepository_PutAndGet(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewStorePreferenceRepository(setupStore(t))

	require.NoError(t, repo.Put(ctx,
		models.Preference{Key: "theme", Value: `"dark"`, Timestamp: time.Now()},
		models.Preference{Key: "notifications", Value: `true`, Timestamp: time.Now()},
	))

	pref, err := repo.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, pref.Value)

	_, err = repo.Get(ctx, "language")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
