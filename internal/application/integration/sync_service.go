package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultSyncCooldown is the minimum spacing between two syncs of one merchant
const DefaultSyncCooldown = 5 * time.Minute

// ErrSyncFailed wraps any failure during the syncing phase
var ErrSyncFailed = shared.NewDomainError("SYNC_FAILED", "Platform sync failed")

// Sync outcome labels
const (
	SyncOutcomeSucceeded = telemetry.OutcomeSuccess
	SyncOutcomeFailed    = telemetry.OutcomeFailed
	SyncOutcomeConflict  = telemetry.OutcomeRejected
)

// SyncMetrics records sync runs
type SyncMetrics interface {
	RecordSyncRun(ctx context.Context, platform, outcome string, elapsed time.Duration)
}

// SyncRequest selects what to sync
type SyncRequest struct {
	MerchantID uuid.UUID
	// Platform is optional; the first connected platform is used when empty.
	Platform integration.PlatformCode
	// SyncOrders overrides the configured default when set.
	SyncOrders *bool
}

// SyncSummary aggregates the reconciler counters of one sync
type SyncSummary struct {
	ProductsCreated        int `json:"products_created"`
	ProductsUpdated        int `json:"products_updated"`
	CategoriesCreated      int `json:"categories_created"`
	CategoriesUpdated      int `json:"categories_updated"`
	OrdersSeen             int `json:"orders_seen"`
	OrdersUpserted         int `json:"orders_upserted"`
	OrdersWithProductMatch int `json:"orders_with_product_match"`
}

// SyncResult is returned by a successful sync
type SyncResult struct {
	Platform integration.PlatformCode
	Summary  SyncSummary
	Duration time.Duration
}

// SyncStatus describes the lock state of a merchant
type SyncStatus struct {
	LastSyncAt      *time.Time
	CanSyncNow      bool
	AutoSyncEnabled bool
}

// SyncServiceConfig holds the orchestration settings
type SyncServiceConfig struct {
	Cooldown          time.Duration
	SyncOrdersDefault bool
}

// SyncService orchestrates a merchant sync: platform selection, the database
// lock, credentials, and the catalog and order reconcilers.
type SyncService struct {
	merchants   merchant.Repository
	platforms   integration.Registry
	credentials *CredentialManager
	catalog     *CatalogReconciler
	orders      *OrderReconciler
	cfg         SyncServiceConfig
	metrics     SyncMetrics
	now         func() time.Time
	logger      *zap.Logger
}

// NewSyncService creates a new SyncService. metrics may be nil.
func NewSyncService(
	merchants merchant.Repository,
	platforms integration.Registry,
	credentials *CredentialManager,
	catalogReconciler *CatalogReconciler,
	orderReconciler *OrderReconciler,
	cfg SyncServiceConfig,
	metrics SyncMetrics,
	logger *zap.Logger,
) *SyncService {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultSyncCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		merchants:   merchants,
		platforms:   platforms,
		credentials: credentials,
		catalog:     catalogReconciler,
		orders:      orderReconciler,
		cfg:         cfg,
		metrics:     metrics,
		now:         time.Now,
		logger:      logger,
	}
}

// Sync runs one sync for the merchant.
//
// It fails with merchant.ErrNotConnected when no platform is connected,
// merchant.ErrCredentialsInvalid when the stored credentials are quarantined
// or a refresh fails, and *merchant.LockConflictError when another sync holds
// the lock or the cooldown has not elapsed. Any failure after the lock is
// taken restores the previous lastSyncAt.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "run",
		telemetry.WithAttribute(string(telemetry.AttrMerchantID), req.MerchantID.String()),
	)
	defer span.End()

	result, err := s.sync(ctx, req)
	var conflict *merchant.LockConflictError
	switch {
	case errors.As(err, &conflict):
		telemetry.AddEvent(span, "lock_conflict", "retry_after_seconds", conflict.RetryAfterSeconds())
		return nil, err
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		string(telemetry.AttrPlatform), result.Platform.String(),
		"products_created", result.Summary.ProductsCreated,
		"products_updated", result.Summary.ProductsUpdated,
		"orders_upserted", result.Summary.OrdersUpserted,
	)
	return result, nil
}

func (s *SyncService) sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	m, err := s.merchants.FindByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	conn, err := m.SelectPlatform(req.Platform)
	if err != nil {
		return nil, err
	}
	if conn.CredentialsInvalidAt != nil {
		return nil, merchant.ErrCredentialsInvalid
	}

	platform, err := s.platforms.Get(conn.Platform)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("merchant_id", m.ID.String()),
		zap.String("platform", conn.Platform.String()),
	)

	previous := m.LastSyncAt
	lockedAt := s.now()
	acquired, err := s.merchants.AcquireSyncLock(ctx, m.ID, lockedAt, s.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		s.record(ctx, conn.Platform, SyncOutcomeConflict, 0)
		return nil, s.lockConflict(ctx, m, lockedAt)
	}

	log.Info("Sync started")
	summary, err := s.run(ctx, m.ID, *conn, platform, s.syncOrders(req))
	elapsed := s.now().Sub(lockedAt)
	if err != nil {
		s.restoreLock(ctx, m.ID, previous, lockedAt, log)
		s.record(ctx, conn.Platform, SyncOutcomeFailed, elapsed)
		log.Warn("Sync failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		if errors.Is(err, integration.ErrCredentialsInvalid) {
			return nil, fmt.Errorf("%w: %w", merchant.ErrCredentialsInvalid, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	s.record(ctx, conn.Platform, SyncOutcomeSucceeded, elapsed)
	log.Info("Sync succeeded",
		zap.Duration("elapsed", elapsed),
		zap.Int("products_created", summary.ProductsCreated),
		zap.Int("products_updated", summary.ProductsUpdated),
		zap.Int("orders_upserted", summary.OrdersUpserted),
	)
	return &SyncResult{Platform: conn.Platform, Summary: *summary, Duration: elapsed}, nil
}

// run is the SYNCING phase
func (s *SyncService) run(ctx context.Context, merchantID uuid.UUID, conn merchant.PlatformConnection, platform integration.Platform, syncOrders bool) (*SyncSummary, error) {
	creds, err := s.credentials.Source(ctx, merchantID, conn)
	if err != nil {
		return nil, err
	}
	session := platform.NewSession(conn.Store(), creds)

	catalogSummary, err := s.catalog.Reconcile(ctx, merchantID, session, conn.Platform)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	summary := &SyncSummary{
		ProductsCreated:   catalogSummary.ProductsCreated,
		ProductsUpdated:   catalogSummary.ProductsUpdated,
		CategoriesCreated: catalogSummary.CategoriesCreated,
		CategoriesUpdated: catalogSummary.CategoriesUpdated,
	}
	if !syncOrders {
		return summary, nil
	}

	orderSummary, err := s.orders.Reconcile(ctx, merchantID, session, conn.Platform)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	summary.OrdersSeen = orderSummary.OrdersSeen
	summary.OrdersUpserted = orderSummary.OrdersUpserted
	summary.OrdersWithProductMatch = orderSummary.OrdersWithProductMatch
	return summary, nil
}

// Status reports whether the merchant may sync now
func (s *SyncService) Status(ctx context.Context, merchantID uuid.UUID) (*SyncStatus, error) {
	m, err := s.merchants.FindByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		LastSyncAt:      m.LastSyncAt,
		CanSyncNow:      m.CanSyncAt(s.now(), s.cfg.Cooldown),
		AutoSyncEnabled: m.AutoSyncEnabled,
	}, nil
}

func (s *SyncService) syncOrders(req SyncRequest) bool {
	if req.SyncOrders != nil {
		return *req.SyncOrders
	}
	return s.cfg.SyncOrdersDefault
}

// lockConflict builds the conflict error from the lock holder's timestamp
func (s *SyncService) lockConflict(ctx context.Context, m *merchant.Merchant, now time.Time) error {
	if current, err := s.merchants.FindByID(ctx, m.ID); err == nil {
		m = current
	}
	return &merchant.LockConflictError{RetryAfter: m.RetryAfter(now, s.cfg.Cooldown)}
}

// restoreLock reverts lastSyncAt. It runs even when the request was cancelled.
func (s *SyncService) restoreLock(ctx context.Context, merchantID uuid.UUID, previous *time.Time, lockedAt time.Time, log *zap.Logger) {
	if err := s.merchants.RestoreSyncLock(context.WithoutCancel(ctx), merchantID, previous, lockedAt); err != nil {
		log.Error("Failed to restore sync lock", zap.Error(err))
	}
}

func (s *SyncService) record(ctx context.Context, platform integration.PlatformCode, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSyncRun(ctx, platform.String(), outcome, elapsed)
	}
}
