package telemetry

import (
	"sync"
	"time"
)

// RetentionBuffer holds the samples of the last retention period in timestamp order.
// It is written by a single sampler and read concurrently by the API and the profile selector.
type RetentionBuffer struct {
	mu        sync.RWMutex
	samples   []Sample
	retention time.Duration
}

func NewRetentionBuffer(retention time.Duration) *RetentionBuffer {
	return &RetentionBuffer{
		samples:   []Sample{},
		retention: retention,
	}
}

// Insert appends a copy of sample and drops every sample older than the retention period,
// relative to the new sample. A sample older than the newest one is stamped with the newest timestamp.
func (b *RetentionBuffer) Insert(sample Sample) {
	s := sample.copy()

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.samples); n > 0 {
		newest := b.samples[n-1].Timestamp
		if s.Timestamp.Before(newest) {
			s.Timestamp = newest
		}
	}
	b.samples = append(b.samples, s)
	b.trim(s.Timestamp)
}

func (b *RetentionBuffer) trim(newest time.Time) {
	cutoff := newest.Add(-b.retention)
	idx := 0
	for idx < len(b.samples) && b.samples[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		// copy to release the backing array of trimmed samples
		b.samples = append([]Sample{}, b.samples[idx:]...)
	}
}

// SetRetention changes the retention period, it is applied on the next insertion.
func (b *RetentionBuffer) SetRetention(retention time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retention = retention
}

func (b *RetentionBuffer) Retention() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.retention
}

// Since returns copies of all samples with a timestamp at or after since
func (b *RetentionBuffer) Since(since time.Time) []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Sample{}
	for _, sample := range b.samples {
		if !sample.Timestamp.Before(since) {
			result = append(result, sample.copy())
		}
	}
	return result
}

func (b *RetentionBuffer) Snapshot() []Sample {
	return b.Since(time.Time{})
}

func (b *RetentionBuffer) Latest() (Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.samples) <= 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1].copy(), true
}

func (b *RetentionBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}
