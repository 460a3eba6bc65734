package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// DefaultOrderWorkers bounds concurrent order detail fetches per page
const DefaultOrderWorkers = 4

// OrderSummary counts the work done by one order reconcile run
type OrderSummary struct {
	PagesFetched           int
	OrdersSeen             int
	OrdersSkipped          int
	OrdersUpserted         int
	OrdersCreated          int
	OrdersWithProductMatch int
}

// OrderReconciler converges a store's orders into the order table
type OrderReconciler struct {
	recorder *OrderRecorder
	workers  int
	maxPages int
	logger   *zap.Logger
}

// NewOrderReconciler creates a new OrderReconciler
func NewOrderReconciler(recorder *OrderRecorder, workers, maxPages int, logger *zap.Logger) *OrderReconciler {
	if workers <= 0 {
		workers = DefaultOrderWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderReconciler{
		recorder: recorder,
		workers:  workers,
		maxPages: maxPages,
		logger:   logger,
	}
}

// Reconcile pages through order summaries, fetches each detail through a
// fixed worker pool and upserts the results. Orders that vanished between
// listing and detail fetch are skipped.
func (r *OrderReconciler) Reconcile(ctx context.Context, merchantID uuid.UUID, session integration.Session, platform integration.PlatformCode) (*OrderSummary, error) {
	summary := &OrderSummary{}

	cursor := integration.PageCursor{}
	for page := 1; ; page++ {
		if r.maxPages > 0 && page > r.maxPages {
			r.logger.Warn("Order listing exceeds page limit, stopping",
				zap.String("merchant_id", merchantID.String()),
				zap.Int("max_pages", r.maxPages),
			)
			break
		}

		result, err := session.ListOrders(ctx, cursor)
		if err != nil {
			return summary, fmt.Errorf("failed to list orders page %d: %w", page, err)
		}
		summary.PagesFetched++
		summary.OrdersSeen += len(result.Orders)

		details, err := r.fetchDetails(ctx, session, result.Orders)
		if err != nil {
			return summary, err
		}

		for i, detail := range details {
			if detail == nil {
				summary.OrdersSkipped++
				r.logger.Info("Order no longer available, skipping",
					zap.String("merchant_id", merchantID.String()),
					zap.String("external_order_id", result.Orders[i].ExternalID),
				)
				continue
			}
			recorded, err := r.recorder.Record(ctx, merchantID, platform, detail)
			if err != nil {
				return summary, err
			}
			summary.OrdersUpserted++
			if recorded.Created {
				summary.OrdersCreated++
			}
			if recorded.Matched() {
				summary.OrdersWithProductMatch++
			}
		}

		next, ok := integration.NextCursor(result.Pagination)
		if !ok {
			break
		}
		cursor = next
	}

	r.logger.Info("Orders reconciled",
		zap.String("merchant_id", merchantID.String()),
		zap.String("platform", platform.String()),
		zap.Int("pages", summary.PagesFetched),
		zap.Int("seen", summary.OrdersSeen),
		zap.Int("upserted", summary.OrdersUpserted),
		zap.Int("skipped", summary.OrdersSkipped),
		zap.Int("matched", summary.OrdersWithProductMatch),
	)
	return summary, nil
}

// fetchDetails loads the detail of every summary with at most r.workers calls
// in flight. The result is index-aligned with summaries; a nil entry marks an
// order the platform no longer has. The first other error cancels the rest.
func (r *OrderReconciler) fetchDetails(ctx context.Context, session integration.Session, summaries []integration.ExternalOrder) ([]*integration.ExternalOrder, error) {
	details := make([]*integration.ExternalOrder, len(summaries))
	if len(summaries) == 0 {
		return details, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	jobs := make(chan int)

	workers := min(r.workers, len(summaries))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				id := summaries[i].ExternalID
				detail, err := session.GetOrder(ctx, id)
				switch {
				case err == nil && detail == nil:
					// an empty detail is treated like a vanished order
				case err == nil:
					if detail.ExternalID == "" {
						detail.ExternalID = id
					}
					details[i] = detail
				case errors.Is(err, integration.ErrUpstreamNotFound):
					// leave nil
				default:
					errOnce.Do(func() {
						firstErr = fmt.Errorf("failed to fetch order %s: %w", id, err)
						cancel()
					})
				}
			}
		}()
	}

feed:
	for i := range summaries {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
