package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memMerchants struct {
	mu          sync.Mutex
	merchants   map[uuid.UUID]*merchant.Merchant
	invalidated []integration.PlatformCode
	restored    int
}

func newMemMerchants(ms ...*merchant.Merchant) *memMerchants {
	r := &memMerchants{merchants: make(map[uuid.UUID]*merchant.Merchant)}
	for _, m := range ms {
		r.merchants[m.ID] = m
	}
	return r
}

func (r *memMerchants) clone(m *merchant.Merchant) *merchant.Merchant {
	c := *m
	c.Connections = append([]merchant.PlatformConnection(nil), m.Connections...)
	return &c
}

func (r *memMerchants) FindByID(_ context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, merchant.ErrMerchantNotFound
	}
	return r.clone(m), nil
}

func (r *memMerchants) FindByStore(_ context.Context, platform integration.PlatformCode, storeID string) (*merchant.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.merchants {
		if c := m.Connection(platform); c != nil && c.StoreID == storeID {
			return r.clone(m), nil
		}
	}
	return nil, merchant.ErrMerchantNotFound
}

func (r *memMerchants) ListAutoSyncIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range r.merchants {
		if m.AutoSyncEnabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memMerchants) AcquireSyncLock(_ context.Context, id uuid.UUID, now time.Time, cooldown time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return false, nil
	}
	if m.LastSyncAt != nil && m.LastSyncAt.After(now.Add(-cooldown)) {
		return false, nil
	}
	t := now
	m.LastSyncAt = &t
	return true, nil
}

func (r *memMerchants) RestoreSyncLock(_ context.Context, id uuid.UUID, previous *time.Time, lockedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.merchants[id]
	if m.LastSyncAt != nil && m.LastSyncAt.Equal(lockedAt) {
		m.LastSyncAt = previous
		r.restored++
	}
	return nil
}

func (r *memMerchants) UpdateTokens(_ context.Context, id uuid.UUID, platform integration.PlatformCode, tokens integration.TokenSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.merchants[id].Connection(platform)
	c.AccessToken = tokens.AccessToken
	c.RefreshToken = tokens.RefreshToken
	c.CredentialsInvalidAt = nil
	return nil
}

func (r *memMerchants) MarkCredentialsInvalid(_ context.Context, id uuid.UUID, platform integration.PlatformCode, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merchants[id].Connection(platform).CredentialsInvalidAt = &at
	r.invalidated = append(r.invalidated, platform)
	return nil
}

func (r *memMerchants) lastSyncAt(id uuid.UUID) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.merchants[id].LastSyncAt
}

type memProducts struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*catalog.Product
	counters map[uuid.UUID]map[catalog.Counter]int
	scores   map[uuid.UUID]float64
	creates  int
	updates  int
}

func newMemProducts() *memProducts {
	return &memProducts{
		byID:     make(map[uuid.UUID]*catalog.Product),
		counters: make(map[uuid.UUID]map[catalog.Counter]int),
	}
}

func (r *memProducts) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (r *memProducts) FindByExternalID(_ context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.MerchantID == merchantID && p.Platform == platform && p.ExternalID == externalID {
			c := *p
			return &c, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (r *memProducts) FindByTitle(_ context.Context, merchantID uuid.UUID, title string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.MerchantID != merchantID {
			continue
		}
		if strings.EqualFold(p.Title, title) || (p.TitleAr != "" && strings.EqualFold(p.TitleAr, title)) {
			c := *p
			return &c, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (r *memProducts) Create(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	r.byID[p.ID] = &c
	r.creates++
	return nil
}

func (r *memProducts) Update(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	r.byID[p.ID] = &c
	r.updates++
	return nil
}

func (r *memProducts) IncrementCounter(_ context.Context, id uuid.UUID, counter catalog.Counter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters[id] == nil {
		r.counters[id] = make(map[catalog.Counter]int)
	}
	r.counters[id][counter]++
	return nil
}

func (r *memProducts) ReplaceTrendingScores(_ context.Context, scores map[uuid.UUID]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = scores
	return nil
}

func (r *memProducts) counter(id uuid.UUID, counter catalog.Counter) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[id][counter]
}

func (r *memProducts) slugs() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.byID))
	for _, p := range r.byID {
		out[p.ExternalID] = p.Slug
	}
	return out
}

type memCategories struct {
	mu   sync.Mutex
	rows map[string]*catalog.Category
}

func newMemCategories() *memCategories {
	return &memCategories{rows: make(map[string]*catalog.Category)}
}

func (r *memCategories) key(merchantID uuid.UUID, platform integration.PlatformCode, externalID string) string {
	return merchantID.String() + "/" + platform.String() + "/" + externalID
}

func (r *memCategories) FindByExternalID(_ context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*catalog.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[r.key(merchantID, platform, externalID)]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, catalog.ErrCategoryNotFound
}

func (r *memCategories) Create(_ context.Context, c *catalog.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.rows[r.key(c.MerchantID, c.Platform, c.ExternalID)] = &cp
	return nil
}

func (r *memCategories) Update(ctx context.Context, c *catalog.Category) error {
	return r.Create(ctx, c)
}

type memOrders struct {
	mu   sync.Mutex
	rows map[string]*order.Order
}

func newMemOrders() *memOrders {
	return &memOrders{rows: make(map[string]*order.Order)}
}

func (r *memOrders) Upsert(_ context.Context, o *order.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.rows[o.ExternalOrderID]; ok {
		o.FillFrom(stored)
		c := *o
		r.rows[o.ExternalOrderID] = &c
		return false, nil
	}
	c := *o
	r.rows[o.ExternalOrderID] = &c
	return true, nil
}

func (r *memOrders) FindByExternalID(_ context.Context, externalOrderID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.rows[externalOrderID]; ok {
		c := *o
		return &c, nil
	}
	return nil, order.ErrOrderNotFound
}

func (r *memOrders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memTrending struct {
	mu      sync.Mutex
	entries []tracking.TrendingLog
}

func (r *memTrending) Append(_ context.Context, entry *tracking.TrendingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memTrending) ScanSince(_ context.Context, since time.Time, fn func(batch []tracking.TrendingLog) error) error {
	r.mu.Lock()
	var batch []tracking.TrendingLog
	for _, e := range r.entries {
		if !e.CreatedAt.Before(since) {
			batch = append(batch, e)
		}
	}
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return fn(batch)
}

func (r *memTrending) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// memLedger enforces the ledger's unique key under a mutex, as the database
// constraint does
type memLedger struct {
	mu   sync.Mutex
	rows map[string]*integration.WebhookEvent
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]*integration.WebhookEvent)}
}

func ledgerKey(platform integration.PlatformCode, storeID, key string) string {
	return fmt.Sprintf("%s/%s/%s", platform, storeID, key)
}

func (r *memLedger) Insert(_ context.Context, e *integration.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := ledgerKey(e.Platform, e.StoreID, e.IdempotencyKey)
	if _, ok := r.rows[k]; ok {
		return integration.ErrDuplicateEvent
	}
	c := *e
	r.rows[k] = &c
	return nil
}

func (r *memLedger) find(id uuid.UUID) *integration.WebhookEvent {
	for _, e := range r.rows {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *memLedger) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	now := time.Now()
	e.Status = integration.WebhookStatusProcessed
	e.ProcessedAt = &now
	return nil
}

func (r *memLedger) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	e.Status = integration.WebhookStatusFailed
	e.ErrorMessage = message
	return nil
}

func (r *memLedger) FindByKey(_ context.Context, platform integration.PlatformCode, storeID, key string) (*integration.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.rows[ledgerKey(platform, storeID, key)]; ok {
		c := *e
		return &c, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memLedger) all() []integration.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integration.WebhookEvent, 0, len(r.rows))
	for _, e := range r.rows {
		out = append(out, *e)
	}
	return out
}

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// fakeSession serves fixed listing pages
type fakeSession struct {
	mu            sync.Mutex
	categories    []integration.ExternalCategory
	categoriesErr error
	productPages  []integration.ProductPage
	orderPages    []integration.OrderPage
	details       map[string]*integration.ExternalOrder
	detailErr     map[string]error
	listErr       error
	inFlight      int
	maxInFlight   int
	detailDelay   time.Duration
	creds         integration.CredentialSource
}

func (s *fakeSession) ListCategories(context.Context) ([]integration.ExternalCategory, error) {
	return s.categories, s.categoriesErr
}

func (s *fakeSession) ListProducts(_ context.Context, cursor integration.PageCursor) (*integration.ProductPage, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	idx := pageIndex(cursor)
	if idx >= len(s.productPages) {
		return &integration.ProductPage{Pagination: integration.ByCount{Current: idx + 1, Total: len(s.productPages)}}, nil
	}
	page := s.productPages[idx]
	return &page, nil
}

func (s *fakeSession) ListOrders(_ context.Context, cursor integration.PageCursor) (*integration.OrderPage, error) {
	idx := pageIndex(cursor)
	if idx >= len(s.orderPages) {
		return &integration.OrderPage{Pagination: integration.ByCount{Current: idx + 1, Total: len(s.orderPages)}}, nil
	}
	page := s.orderPages[idx]
	return &page, nil
}

func (s *fakeSession) GetOrder(_ context.Context, externalID string) (*integration.ExternalOrder, error) {
	s.mu.Lock()
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	if s.detailDelay > 0 {
		time.Sleep(s.detailDelay)
	}

	if err, ok := s.detailErr[externalID]; ok {
		return nil, err
	}
	if d, ok := s.details[externalID]; ok {
		if d == nil {
			return nil, nil
		}
		c := *d
		return &c, nil
	}
	return &integration.ExternalOrder{ExternalID: externalID, Currency: "SAR"}, nil
}

func (s *fakeSession) Credentials() integration.CredentialSource {
	return s.creds
}

// pageIndex maps a cursor to a zero based page: ByCount pages are 1-based,
// cursor links are "page-N"
func pageIndex(cursor integration.PageCursor) int {
	if cursor.Next != "" {
		var n int
		_, _ = fmt.Sscanf(cursor.Next, "page-%d", &n)
		return n
	}
	if cursor.Page > 0 {
		return cursor.Page - 1
	}
	return 0
}

type fakePlatform struct {
	code    integration.PlatformCode
	session *fakeSession
	tokens  []string
}

func (p *fakePlatform) Code() integration.PlatformCode { return p.code }

func (p *fakePlatform) NewSession(_ integration.StoreConnection, creds integration.CredentialSource) integration.Session {
	p.tokens = append(p.tokens, creds.CurrentToken())
	p.session.creds = creds
	return p.session
}

type fakeRegistry map[integration.PlatformCode]integration.Platform

func (r fakeRegistry) Get(code integration.PlatformCode) (integration.Platform, error) {
	if p, ok := r[code]; ok {
		return p, nil
	}
	return nil, integration.ErrPlatformNotConfigured
}

// MockTokenRefresher is a mock implementation of integration.TokenRefresher
type MockTokenRefresher struct {
	mock.Mock
}

func (m *MockTokenRefresher) Refresh(ctx context.Context, platform integration.PlatformCode, refreshToken string) (*integration.TokenSet, error) {
	args := m.Called(ctx, platform, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenSet), args.Error(1)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func extProduct(id, title string, qty *int) integration.ExternalProduct {
	return integration.ExternalProduct{
		ExternalID:    id,
		Title:         title,
		Price:         decimal.RequireFromString("120.00"),
		Currency:      "SAR",
		Images:        []string{"https://cdn.example.com/" + id + ".jpg"},
		Thumbnail:     "https://cdn.example.com/" + id + ".jpg",
		StockQuantity: qty,
		IsActive:      integration.DeriveActive(true, qty),
	}
}

func connectedMerchant(platform integration.PlatformCode, storeID string) *merchant.Merchant {
	m := &merchant.Merchant{BaseEntity: shared.NewBaseEntity(), Name: "Oud House", AutoSyncEnabled: true}
	m.Connections = []merchant.PlatformConnection{{
		MerchantID:   m.ID,
		Platform:     platform,
		StoreID:      storeID,
		StoreURL:     "https://oud-house.example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}}
	return m
}
