package runner

import (
	"sync"
	"time"

	"github.com/asynkron/goapply/pkg/patch"
)

// Metrics collects counters about a batch run.
type Metrics interface {
	// RecordFile records the outcome of one file and how long it took.
	RecordFile(status Status, duration time.Duration)
	// RecordHunk records a single hunk result.
	RecordHunk(result patch.HunkResult)
	// GetSnapshot returns the current metrics snapshot.
	GetSnapshot() MetricsSnapshot
	// Reset clears all metrics (useful for testing).
	Reset()
}

// MetricsSnapshot contains a point-in-time view of collected metrics.
type MetricsSnapshot struct {
	Files        map[Status]int64
	FileTime     DurationMetrics
	Hunks        HunkMetrics
	LastFileTime time.Time
}

// DurationMetrics summarizes a set of timings.
type DurationMetrics struct {
	Total     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// HunkMetrics tracks hunk outcomes across all files.
type HunkMetrics struct {
	Total   int64
	Matched int64
	Fuzzy   int64
	Failed  int64
	// MaxOffset is the largest absolute drift a matched hunk was found at.
	MaxOffset int
	MaxFuzz   int
}

// NoOpMetrics is a metrics collector that discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordFile(_ Status, _ time.Duration) {}
func (n *NoOpMetrics) RecordHunk(_ patch.HunkResult)        {}
func (n *NoOpMetrics) GetSnapshot() MetricsSnapshot         { return MetricsSnapshot{} }
func (n *NoOpMetrics) Reset()                               {}

// InMemoryMetrics is a thread-safe in-memory metrics collector.
type InMemoryMetrics struct {
	mu           sync.Mutex
	files        map[Status]int64
	fileTime     DurationMetrics
	hunks        HunkMetrics
	lastFileTime time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{files: make(map[Status]int64)}
}

func (m *InMemoryMetrics) RecordFile(status Status, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[status]++
	m.fileTime.Total++
	m.fileTime.TotalTime += duration
	if m.fileTime.Total == 1 || duration < m.fileTime.MinTime {
		m.fileTime.MinTime = duration
	}
	if duration > m.fileTime.MaxTime {
		m.fileTime.MaxTime = duration
	}
	m.lastFileTime = time.Now()
}

func (m *InMemoryMetrics) RecordHunk(result patch.HunkResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hunks.Total++
	if !result.OK() {
		m.hunks.Failed++
		return
	}
	m.hunks.Matched++
	if result.Fuzz > 0 {
		m.hunks.Fuzzy++
	}
	m.hunks.MaxFuzz = max(m.hunks.MaxFuzz, result.Fuzz)
	offset := result.Offset
	if offset < 0 {
		offset = -offset
	}
	m.hunks.MaxOffset = max(m.hunks.MaxOffset, offset)
}

func (m *InMemoryMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		Files:        make(map[Status]int64, len(m.files)),
		FileTime:     m.fileTime,
		Hunks:        m.hunks,
		LastFileTime: m.lastFileTime,
	}
	for k, v := range m.files {
		snapshot.Files[k] = v
	}
	return snapshot
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[Status]int64)
	m.fileTime = DurationMetrics{}
	m.hunks = HunkMetrics{}
	m.lastFileTime = time.Time{}
}
