package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "clipengine", "test", true)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestCutMetricsAreUsable(t *testing.T) {
	m := NewCutMetrics()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.Duration.Record(ctx, 12.5)
		m.CacheHits.Add(ctx, 1)
		m.CacheMisses.Add(ctx, 1)
		m.Failures.Add(ctx, 1)
	})

	_, span := Tracer("clipengine/test").Start(ctx, "noop")
	span.End()
}
