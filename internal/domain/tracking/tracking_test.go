package tracking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWeights_For(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 1.0, w.For(EventView))
	assert.Equal(t, 3.0, w.For(EventSave))
	assert.Equal(t, 5.0, w.For(EventClick))
	assert.Equal(t, 20.0, w.For(EventOrder))
	assert.Zero(t, w.For(EventType("SHARE")))
}

func TestEventType_IsEngagement(t *testing.T) {
	assert.True(t, EventView.IsEngagement())
	assert.True(t, EventSave.IsEngagement())
	assert.False(t, EventClick.IsEngagement())
	assert.False(t, EventOrder.IsEngagement())
}

func TestDecayedWeight(t *testing.T) {
	day := 24 * time.Hour
	assert.InDelta(t, 20.0, DecayedWeight(20, 0, day), 1e-9)
	assert.InDelta(t, 10.0, DecayedWeight(20, day, day), 1e-9)
	assert.InDelta(t, 5.0, DecayedWeight(20, 2*day, day), 1e-9)
	assert.InDelta(t, 20.0, DecayedWeight(20, day, 0), 1e-9)
	assert.InDelta(t, 20.0, DecayedWeight(20, -time.Hour, day), 1e-9)
}

func TestNewTrendingLog(t *testing.T) {
	w := Weights{View: 2, Save: 4, Click: 6, Order: 8}
	entry := NewTrendingLog(uuid.New(), EventSave, w)
	assert.Equal(t, 4.0, entry.Weight)
	assert.Equal(t, EventSave, entry.EventType)
}

func TestClickTracking_IsExpired(t *testing.T) {
	now := time.Now()
	c := &ClickTracking{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, c.IsExpired(now))
	assert.True(t, c.IsExpired(now.Add(time.Hour)))
}
