package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false, ServiceName: "souq-test"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))

	tp.EnableSpanProfiles()
	assert.False(t, tp.IsSpanProfilesEnabled())
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestNewResource(t *testing.T) {
	res, err := newResource("souq-backend", "staging")
	require.NoError(t, err)

	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "souq-backend", found["service.name"])
	assert.Equal(t, "staging", found["deployment.environment.name"])
	assert.Equal(t, ServiceVersion, found["service.version"])
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
