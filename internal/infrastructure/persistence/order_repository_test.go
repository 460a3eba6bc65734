package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(externalID string, status order.Status) *order.Order {
	return &order.Order{
		BaseEntity:      shared.NewBaseEntity(),
		MerchantID:      uuid.New(),
		Platform:        integration.PlatformSalla,
		ExternalOrderID: externalID,
		TotalAmount:     decimal.RequireFromString("320.25"),
		Currency:        "SAR",
		Status:          status,
		StatusRaw:       "under_review",
		CustomerName:    "Noura",
		PlacedAt:        time.Date(2026, 1, 9, 8, 30, 0, 0, time.UTC),
	}
}

func TestGormOrderRepository_Upsert(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()

	first := newTestOrder("ord-100", order.StatusPending)
	created, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := newTestOrder("ord-100", order.StatusShipped)
	again.StatusRaw = "delivering"
	again.MerchantID = first.MerchantID
	created, err = repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID, "stored id is written back")

	found, err := repo.FindByExternalID(ctx, "ord-100")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, order.StatusShipped, found.Status)
	assert.Equal(t, "delivering", found.StatusRaw)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("320.25")))

	_, err = repo.FindByExternalID(ctx, "ord-missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestGormOrderRepository_UpsertIsIdempotent(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()

	createdCount := 0
	for range 3 {
		created, err := repo.Upsert(ctx, newTestOrder("ord-7", order.StatusPending))
		require.NoError(t, err)
		if created {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
}

func TestGormOrderRepository_StatusOnlyUpdateKeepsSyncedFields(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()

	synced := newTestOrder("ord-11", order.StatusPending)
	synced.Currency = "USD"
	synced.CustomerEmail = "noura@example.com"
	synced.PaymentStatus = "paid"
	_, err := repo.Upsert(ctx, synced)
	require.NoError(t, err)

	statusOnly := &order.Order{
		BaseEntity:      shared.NewBaseEntity(),
		MerchantID:      synced.MerchantID,
		Platform:        integration.PlatformSalla,
		ExternalOrderID: "ord-11",
		Currency:        "SAR",
		Status:          order.StatusShipped,
		StatusRaw:       "delivering",
		PlacedAt:        time.Now(),
	}
	created, err := repo.Upsert(ctx, statusOnly)
	require.NoError(t, err)
	assert.False(t, created)

	found, err := repo.FindByExternalID(ctx, "ord-11")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, found.Status)
	assert.Equal(t, "delivering", found.StatusRaw)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("320.25")))
	assert.Equal(t, "USD", found.Currency)
	assert.Equal(t, "Noura", found.CustomerName)
	assert.Equal(t, "noura@example.com", found.CustomerEmail)
	assert.Equal(t, "paid", found.PaymentStatus)
}

func TestGormOrderRepository_UpsertKeepsProductMatch(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()

	productID := uuid.New()
	matched := newTestOrder("ord-9", order.StatusPending)
	matched.ProductID = &productID
	_, err := repo.Upsert(ctx, matched)
	require.NoError(t, err)

	unmatched := newTestOrder("ord-9", order.StatusDelivered)
	_, err = repo.Upsert(ctx, unmatched)
	require.NoError(t, err)

	found, err := repo.FindByExternalID(ctx, "ord-9")
	require.NoError(t, err)
	require.NotNil(t, found.ProductID)
	assert.Equal(t, productID, *found.ProductID)
	assert.Equal(t, order.StatusDelivered, found.Status)
}
