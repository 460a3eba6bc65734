package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var syncBase = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func seedMerchant(t *testing.T, repo *GormMerchantRepository) *merchant.Merchant {
	t.Helper()
	expires := syncBase.Add(time.Hour)
	m := &merchant.Merchant{
		BaseEntity:     shared.NewBaseEntity(),
		Name:           "Oud House",
		CommissionRate: decimal.RequireFromString("0.05"),
	}
	m.Connections = []merchant.PlatformConnection{{
		MerchantID:     m.ID,
		Platform:       integration.PlatformSalla,
		StoreID:        "store-1",
		StoreURL:       "https://oud.example",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: &expires,
	}}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestGormMerchantRepository_Find(t *testing.T) {
	repo := NewGormMerchantRepository(newTestDB(t))
	ctx := context.Background()
	m := seedMerchant(t, repo)

	t.Run("by id loads connections", func(t *testing.T) {
		found, err := repo.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Oud House", found.Name)
		require.Len(t, found.Connections, 1)
		conn := found.Connection(integration.PlatformSalla)
		require.NotNil(t, conn)
		assert.Equal(t, "store-1", conn.StoreID)
		assert.Equal(t, "access-1", conn.AccessToken)
	})

	t.Run("by store", func(t *testing.T) {
		found, err := repo.FindByStore(ctx, integration.PlatformSalla, "store-1")
		require.NoError(t, err)
		assert.Equal(t, m.ID, found.ID)
	})

	t.Run("unknown store on another platform", func(t *testing.T) {
		_, err := repo.FindByStore(ctx, integration.PlatformZid, "store-1")
		assert.ErrorIs(t, err, merchant.ErrMerchantNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, merchant.ErrMerchantNotFound)
	})
}

func TestGormMerchantRepository_ListAutoSyncIDs(t *testing.T) {
	repo := NewGormMerchantRepository(newTestDB(t))
	ctx := context.Background()

	manual := seedMerchant(t, repo)
	auto := &merchant.Merchant{BaseEntity: shared.NewBaseEntity(), Name: "Amber Co", AutoSyncEnabled: true}
	require.NoError(t, repo.Create(ctx, auto))

	ids, err := repo.ListAutoSyncIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{auto.ID}, ids)
	assert.NotContains(t, ids, manual.ID)
}

func TestGormMerchantRepository_AcquireSyncLock_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormMerchantRepository(gormDB)

	id := uuid.New()
	cooldown := 5 * time.Minute
	query := `UPDATE "merchants" SET "last_sync_at"=\$1,"updated_at"=\$2 WHERE id = \$3 AND \(last_sync_at IS NULL OR last_sync_at <= \$4\)`

	t.Run("one row updated takes the lock", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(syncBase, syncBase, id, syncBase.Add(-cooldown)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.AcquireSyncLock(context.Background(), id, syncBase, cooldown)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no row updated means conflict", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(syncBase, syncBase, id, syncBase.Add(-cooldown)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.AcquireSyncLock(context.Background(), id, syncBase, cooldown)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMerchantRepository_SyncLockLifecycle(t *testing.T) {
	repo := NewGormMerchantRepository(newTestDB(t))
	ctx := context.Background()
	m := seedMerchant(t, repo)
	cooldown := 5 * time.Minute

	ok, err := repo.AcquireSyncLock(ctx, m.ID, syncBase, cooldown)
	require.NoError(t, err)
	assert.True(t, ok, "first acquire on a never-synced merchant")

	ok, err = repo.AcquireSyncLock(ctx, m.ID, syncBase.Add(time.Minute), cooldown)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire inside the cooldown")

	// A failed run restores the previous value
	require.NoError(t, repo.RestoreSyncLock(ctx, m.ID, nil, syncBase))
	found, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, found.LastSyncAt)

	ok, err = repo.AcquireSyncLock(ctx, m.ID, syncBase.Add(time.Minute), cooldown)
	require.NoError(t, err)
	assert.True(t, ok, "restored lock can be taken again")

	// A stale restore must not clobber a newer lock
	require.NoError(t, repo.RestoreSyncLock(ctx, m.ID, nil, syncBase))
	found, err = repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastSyncAt)
	assert.True(t, found.LastSyncAt.Equal(syncBase.Add(time.Minute)))

	ok, err = repo.AcquireSyncLock(ctx, m.ID, syncBase.Add(7*time.Minute), cooldown)
	require.NoError(t, err)
	assert.True(t, ok, "cooldown elapsed")
}

func TestGormMerchantRepository_Tokens(t *testing.T) {
	repo := NewGormMerchantRepository(newTestDB(t))
	ctx := context.Background()
	m := seedMerchant(t, repo)

	require.NoError(t, repo.MarkCredentialsInvalid(ctx, m.ID, integration.PlatformSalla, syncBase))
	found, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, found.Connection(integration.PlatformSalla).CredentialsInvalidAt)

	t.Run("update clears quarantine and keeps refresh token when omitted", func(t *testing.T) {
		expires := syncBase.Add(2 * time.Hour)
		err := repo.UpdateTokens(ctx, m.ID, integration.PlatformSalla, integration.TokenSet{
			AccessToken: "access-2",
			ExpiresAt:   expires,
		})
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, m.ID)
		require.NoError(t, err)
		conn := found.Connection(integration.PlatformSalla)
		assert.Equal(t, "access-2", conn.AccessToken)
		assert.Equal(t, "refresh-1", conn.RefreshToken)
		assert.Nil(t, conn.CredentialsInvalidAt)
		require.NotNil(t, conn.TokenExpiresAt)
		assert.True(t, conn.TokenExpiresAt.Equal(expires))
	})

	t.Run("unconnected platform", func(t *testing.T) {
		err := repo.UpdateTokens(ctx, m.ID, integration.PlatformZid, integration.TokenSet{AccessToken: "x"})
		assert.ErrorIs(t, err, merchant.ErrNotConnected)
	})
}
