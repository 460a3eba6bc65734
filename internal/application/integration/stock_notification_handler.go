package integration

import (
	"context"
	"fmt"

	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockNotifier delivers an out-of-stock notice to the merchant
type StockNotifier interface {
	NotifyOutOfStock(ctx context.Context, notice StockNotice) error
}

// StockNotice describes a product that sold out upstream
type StockNotice struct {
	MerchantID string `json:"merchant_id"`
	ProductID  string `json:"product_id"`
	ExternalID string `json:"external_id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
}

// StockNotificationHandler turns out-of-stock events into merchant notices.
// Notifier failures are logged and never fail the event.
type StockNotificationHandler struct {
	notifier StockNotifier
	logger   *zap.Logger
}

// NewStockNotificationHandler creates a new handler. A nil notifier logs the notice.
func NewStockNotificationHandler(notifier StockNotifier, logger *zap.Logger) *StockNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLoggingStockNotifier(logger)
	}
	return &StockNotificationHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *StockNotificationHandler) EventTypes() []string {
	return []string{catalog.EventTypeProductOutOfStock}
}

// Handle processes a ProductOutOfStockEvent
func (h *StockNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	outOfStock, ok := event.(*catalog.ProductOutOfStockEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			catalog.EventTypeProductOutOfStock, event.EventType())
	}

	notice := StockNotice{
		MerchantID: event.MerchantID().String(),
		ProductID:  outOfStock.ProductID.String(),
		ExternalID: outOfStock.ExternalID,
		Slug:       outOfStock.Slug,
		Title:      outOfStock.Title,
	}
	if err := h.notifier.NotifyOutOfStock(ctx, notice); err != nil {
		h.logger.Error("Failed to send out-of-stock notice",
			zap.String("product_id", notice.ProductID),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*StockNotificationHandler)(nil)

// LoggingStockNotifier writes notices to the log
type LoggingStockNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockNotifier creates a new logging notifier
func NewLoggingStockNotifier(logger *zap.Logger) *LoggingStockNotifier {
	return &LoggingStockNotifier{logger: logger}
}

// NotifyOutOfStock logs the notice
func (n *LoggingStockNotifier) NotifyOutOfStock(_ context.Context, notice StockNotice) error {
	n.logger.Warn("Product out of stock",
		zap.String("merchant_id", notice.MerchantID),
		zap.String("product_id", notice.ProductID),
		zap.String("external_id", notice.ExternalID),
		zap.String("slug", notice.Slug),
	)
	return nil
}

var _ StockNotifier = (*LoggingStockNotifier)(nil)
