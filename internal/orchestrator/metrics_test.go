package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestManagerRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	m := newTestManager(t, ManagerConfig{Metrics: metrics})
	g, _ := choiceGraph(t, false)
	ctx := context.Background()
	_, err = m.Launch(ctx, "room-1", g, "")
	require.NoError(t, err)
	require.NoError(t, m.Command(ctx, "room-1", "choice", nil, func(rt *Runtime) error {
		return rt.SelectChoice(0)
	}))

	assert.Equal(t, int64(1), counterTotal(t, reader, "storyengine.runs.started"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "storyengine.runs.ended"))
	assert.Equal(t, int64(0), counterTotal(t, reader, "storyengine.runs.active"))
	assert.Equal(t, int64(3), counterTotal(t, reader, "storyengine.nodes.entered"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "storyengine.commands"))
}

func TestMetricsSinkCountsEffects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	sink := MetricsSink{Metrics: metrics}
	require.NoError(t, sink.Dispatch(story.Effect{Kind: story.KindAudio}))
	require.NoError(t, sink.Dispatch(story.Effect{Kind: story.KindCamera}))
	assert.Equal(t, int64(2), counterTotal(t, reader, "storyengine.effects.dispatched"))
}
