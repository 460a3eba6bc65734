package order

import (
	"strings"

	"github.com/souq/backend/internal/domain/integration"
)

// Status is the internal order status
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid returns true for the five internal statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// StatusTables maps each platform's status vocabulary to the internal enum.
// Keys are normalized (trimmed, lowercased).
var StatusTables = map[integration.PlatformCode]map[string]Status{
	integration.PlatformSalla: {
		"payment_pending": StatusPending,
		"under_review":    StatusPending,
		"pending":         StatusPending,
		"in_progress":     StatusProcessing,
		"processing":      StatusProcessing,
		"delivering":      StatusShipped,
		"shipped":         StatusShipped,
		"delivered":       StatusDelivered,
		"completed":       StatusDelivered,
		"canceled":        StatusCancelled,
		"cancelled":       StatusCancelled,
		"restoring":       StatusCancelled,
		"restored":        StatusCancelled,
	},
	integration.PlatformZid: {
		"new":        StatusPending,
		"pending":    StatusPending,
		"preparing":  StatusProcessing,
		"ready":      StatusProcessing,
		"indelivery": StatusShipped,
		"shipping":   StatusShipped,
		"delivered":  StatusDelivered,
		"cancelled":  StatusCancelled,
		"reversed":   StatusCancelled,
	},
}

// NormalizeStatus trims and lowercases a raw status string
func NormalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// MapStatus looks up the platform table. Unknown or empty values map to PENDING.
func MapStatus(platform integration.PlatformCode, raw string) Status {
	if table, ok := StatusTables[platform]; ok {
		if s, ok := table[NormalizeStatus(raw)]; ok {
			return s
		}
	}
	return StatusPending
}

var (
	paidPaymentStatuses = map[string]struct{}{
		"paid": {}, "captured": {}, "completed": {}, "success": {}, "succeeded": {},
	}
	deliveredOrderStatuses = map[string]struct{}{
		"delivered": {}, "completed": {},
	}
	cancelledStatuses = map[string]struct{}{
		"cancelled": {}, "canceled": {}, "refunded": {}, "void": {}, "voided": {}, "reversed": {}, "restored": {},
	}
)

func inSet(set map[string]struct{}, raw string) bool {
	_, ok := set[NormalizeStatus(raw)]
	return ok
}

// IsPaymentConfirmed is true when the payment status is in the paid set or
// the order status is in the delivered set.
func IsPaymentConfirmed(paymentStatus, orderStatus string) bool {
	return inSet(paidPaymentStatuses, paymentStatus) || inSet(deliveredOrderStatuses, orderStatus)
}

// IsOrderCancelled is true when either status is in the cancelled set
func IsOrderCancelled(paymentStatus, orderStatus string) bool {
	return inSet(cancelledStatuses, paymentStatus) || inSet(cancelledStatuses, orderStatus)
}
