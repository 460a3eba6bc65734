package handler

import (
	"context"

	"github.com/google/uuid"
	appintegration "github.com/souq/backend/internal/application/integration"
	apptracking "github.com/souq/backend/internal/application/tracking"
	"github.com/stretchr/testify/mock"
)

// MockMerchantSyncer is a mock implementation of MerchantSyncer
type MockMerchantSyncer struct {
	mock.Mock
}

func (m *MockMerchantSyncer) Sync(ctx context.Context, req appintegration.SyncRequest) (*appintegration.SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.SyncResult), args.Error(1)
}

func (m *MockMerchantSyncer) Status(ctx context.Context, merchantID uuid.UUID) (*appintegration.SyncStatus, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.SyncStatus), args.Error(1)
}

// MockWebhookIngestor is a mock implementation of WebhookIngestor
type MockWebhookIngestor struct {
	mock.Mock
}

func (m *MockWebhookIngestor) Ingest(ctx context.Context, req appintegration.WebhookRequest) (*appintegration.WebhookResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.WebhookResult), args.Error(1)
}

// MockClickTracker is a mock implementation of ClickTracker
type MockClickTracker struct {
	mock.Mock
}

func (m *MockClickTracker) TrackClick(ctx context.Context, req apptracking.ClickRequest) (*apptracking.ClickResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptracking.ClickResult), args.Error(1)
}

func (m *MockClickTracker) TrackEvent(ctx context.Context, req apptracking.EventRequest) bool {
	args := m.Called(ctx, req)
	return args.Bool(0)
}

// MockTrendingRecomputer is a mock implementation of TrendingRecomputer
type MockTrendingRecomputer struct {
	mock.Mock
}

func (m *MockTrendingRecomputer) Recompute(ctx context.Context, opts apptracking.RecomputeOptions) (*apptracking.TrendingResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptracking.TrendingResult), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping() error {
	return p.err
}
