package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/shared"
)

func TestEventSerializer_Envelope(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	merchantID := uuid.New()
	o := &order.Order{
		BaseEntity:      shared.NewBaseEntity(),
		MerchantID:      merchantID,
		ExternalOrderID: "98765",
		TotalAmount:     decimal.RequireFromString("499.50"),
		Currency:        "SAR",
		ReferrerCode:    "trk-abc",
	}
	event := order.NewOrderStatusEvent(order.EventTypeOrderPaid, o)

	data, err := serializer.Serialize(event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, event.EventID(), env.ID)
	assert.Equal(t, order.EventTypeOrderPaid, env.Type)
	assert.Equal(t, order.AggregateTypeOrder, env.AggregateType)
	assert.Equal(t, o.ID, env.AggregateID)
	assert.Equal(t, merchantID, env.MerchantID)

	decoded, err := serializer.Deserialize(data)
	require.NoError(t, err)
	paid, ok := decoded.(*order.OrderStatusEvent)
	require.True(t, ok)
	assert.Equal(t, "98765", paid.ExternalOrderID)
	assert.True(t, paid.TotalAmount.Equal(o.TotalAmount))
	assert.Equal(t, merchantID, paid.MerchantID())
}

func TestEventSerializer_UnknownType(t *testing.T) {
	serializer := NewEventSerializer()
	data, err := serializer.Serialize(newOutOfStockEvent(uuid.New()))
	require.NoError(t, err)

	_, err = serializer.Deserialize(data)
	assert.ErrorContains(t, err, "unknown event type")

	_, err = serializer.Deserialize([]byte("not json"))
	assert.Error(t, err)
}

func TestRegisterAllEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	for _, eventType := range PublishedEventTypes() {
		assert.True(t, serializer.IsRegistered(eventType), eventType)
	}
	assert.Equal(t, []string{
		catalog.EventTypeProductOutOfStock,
		order.EventTypeOrderCancelled,
		order.EventTypeOrderPaid,
	}, serializer.RegisteredTypes())
}
