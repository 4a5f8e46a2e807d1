package sync

import (
	"math"
	"time"
)

// aggregatorWindow is the maximum number of samples the rolling window
// keeps (spec.md §4.9).
const aggregatorWindow = 10

// minElapsedForRate guards against a divide-by-near-zero when two samples
// land in the same instant.
const minElapsedForRate = 100 * time.Millisecond

// minMBPerSecForETA is the floor below which an ETA is considered
// meaningless noise and is omitted rather than published.
const minMBPerSecForETA = 0.01

const bytesPerMB = 1 << 20

// sample is one (timestamp, bytesCompleted) observation.
type sample struct {
	at    time.Time
	bytes int64
}

// ProgressAggregator computes throughput (MB/s) and ETA from a rolling
// window of byte-completion samples (spec.md §4.9). It is not safe for
// concurrent use: the TransferExecutor observes samples, and runs its
// OnProgress callback, under its own mutex. Samples are not coalesced;
// every progress report is observed.
type ProgressAggregator struct {
	samples []sample
}

// NewProgressAggregator creates an empty ProgressAggregator.
func NewProgressAggregator() *ProgressAggregator {
	return &ProgressAggregator{}
}

// Observe records a new (now, bytesCompleted) sample, evicting the oldest
// sample once the window is full.
func (a *ProgressAggregator) Observe(now time.Time, bytesCompleted int64) {
	a.samples = append(a.samples, sample{at: now, bytes: bytesCompleted})
	if len(a.samples) > aggregatorWindow {
		a.samples = a.samples[len(a.samples)-aggregatorWindow:]
	}
}

// MBPerSec returns the throughput implied by the head and tail of the
// current window, or 0 if fewer than two samples exist or the elapsed
// time is below the minimum guard.
func (a *ProgressAggregator) MBPerSec() float64 {
	if len(a.samples) < 2 {
		return 0
	}

	head := a.samples[len(a.samples)-1]
	tail := a.samples[0]

	elapsed := head.at.Sub(tail.at)
	if elapsed < minElapsedForRate {
		return 0
	}

	deltaBytes := head.bytes - tail.bytes
	if deltaBytes <= 0 {
		return 0
	}

	return (float64(deltaBytes) / bytesPerMB) / elapsed.Seconds()
}

// ETASeconds returns the estimated seconds remaining to transfer
// remainingBytes at the current throughput, or nil when throughput is too
// low to produce a meaningful estimate.
func (a *ProgressAggregator) ETASeconds(remainingBytes int64) *int64 {
	mbps := a.MBPerSec()
	if mbps <= minMBPerSecForETA {
		return nil
	}

	remainingMB := float64(remainingBytes) / bytesPerMB
	etaSecs := int64(math.Ceil(remainingMB / mbps))

	return &etaSecs
}
