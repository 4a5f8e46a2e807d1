package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressAggregatorMBPerSecRequiresTwoSamples(t *testing.T) {
	agg := NewProgressAggregator()
	assert.Equal(t, float64(0), agg.MBPerSec())

	agg.Observe(time.Unix(0, 0), 0)
	assert.Equal(t, float64(0), agg.MBPerSec())
}

func TestProgressAggregatorMBPerSecComputesThroughput(t *testing.T) {
	agg := NewProgressAggregator()

	start := time.Unix(0, 0)
	agg.Observe(start, 0)
	agg.Observe(start.Add(1*time.Second), bytesPerMB*2)

	assert.InDelta(t, 2.0, agg.MBPerSec(), 0.01)
}

func TestProgressAggregatorMBPerSecGuardsNearZeroElapsed(t *testing.T) {
	agg := NewProgressAggregator()

	start := time.Unix(0, 0)
	agg.Observe(start, 0)
	agg.Observe(start.Add(10*time.Millisecond), bytesPerMB)

	assert.Equal(t, float64(0), agg.MBPerSec())
}

func TestProgressAggregatorEvictsOldestBeyondWindow(t *testing.T) {
	agg := NewProgressAggregator()

	start := time.Unix(0, 0)
	for i := 0; i <= aggregatorWindow; i++ {
		agg.Observe(start.Add(time.Duration(i)*time.Second), int64(i)*bytesPerMB)
	}

	require.Len(t, agg.samples, aggregatorWindow)
	assert.Equal(t, int64(1)*bytesPerMB, agg.samples[0].bytes)
}

func TestProgressAggregatorETASecondsNilBelowFloor(t *testing.T) {
	agg := NewProgressAggregator()
	assert.Nil(t, agg.ETASeconds(1000))
}

func TestProgressAggregatorETASecondsComputesCeiling(t *testing.T) {
	agg := NewProgressAggregator()

	start := time.Unix(0, 0)
	agg.Observe(start, 0)
	agg.Observe(start.Add(1*time.Second), bytesPerMB)

	eta := agg.ETASeconds(bytesPerMB / 2)
	require.NotNil(t, eta)
	assert.Equal(t, int64(1), *eta)
}
