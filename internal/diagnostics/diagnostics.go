// Package diagnostics reports process memory and logs periodic heap statistics.
package diagnostics

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yegors/overhead/pkg/logger"
)

// DefaultInterval is how often heap statistics are logged
const DefaultInterval = 60 * time.Second

// MemorySnapshot is a reduced view of runtime.MemStats
type MemorySnapshot struct {
	HeapAlloc   uint64 `json:"heap_alloc"`
	HeapSys     uint64 `json:"heap_sys"`
	Sys         uint64 `json:"sys"`
	NumGC       uint32 `json:"num_gc"`
	Goroutines  int    `json:"goroutines"`
	Limit       uint64 `json:"limit"`
	Headroom    uint64 `json:"headroom"`
	MinHeadroom uint64 `json:"min_headroom"`
}

// MemoryMonitor measures headroom against a memory budget. The budget is the
// configured limit, else the runtime soft memory limit.
type MemoryMonitor struct {
	limit  uint64
	read   func(*runtime.MemStats)
	logger *logger.Logger

	mu          sync.Mutex
	minHeadroom uint64
}

// NewMemoryMonitor creates a monitor. limitBytes of 0 uses the runtime soft limit.
func NewMemoryMonitor(limitBytes uint64, log *logger.Logger) *MemoryMonitor {
	return &MemoryMonitor{
		limit:       limitBytes,
		read:        runtime.ReadMemStats,
		logger:      log.Named("diagnostics"),
		minHeadroom: math.MaxUint64,
	}
}

// Limit returns the effective memory budget in bytes
func (m *MemoryMonitor) Limit() uint64 {
	if m.limit > 0 {
		return m.limit
	}
	// A negative input only reads the current setting
	soft := debug.SetMemoryLimit(-1)
	if soft <= 0 {
		return math.MaxUint64
	}
	return uint64(soft)
}

// Headroom returns the bytes still available under the budget
func (m *MemoryMonitor) Headroom() uint64 {
	return m.Snapshot().Headroom
}

// Snapshot reads the current memory statistics and tracks the lowest headroom seen
func (m *MemoryMonitor) Snapshot() MemorySnapshot {
	var ms runtime.MemStats
	m.read(&ms)

	limit := m.Limit()
	var headroom uint64
	if ms.HeapAlloc < limit {
		headroom = limit - ms.HeapAlloc
	}

	m.mu.Lock()
	if headroom < m.minHeadroom {
		m.minHeadroom = headroom
	}
	minHeadroom := m.minHeadroom
	m.mu.Unlock()

	return MemorySnapshot{
		HeapAlloc:   ms.HeapAlloc,
		HeapSys:     ms.HeapSys,
		Sys:         ms.Sys,
		NumGC:       ms.NumGC,
		Goroutines:  runtime.NumGoroutine(),
		Limit:       limit,
		Headroom:    headroom,
		MinHeadroom: minHeadroom,
	}
}

// Run logs a snapshot every interval until ctx is done
func (m *MemoryMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.LogSnapshot()
		case <-ctx.Done():
			return
		}
	}
}

// LogSnapshot writes the current statistics to the log
func (m *MemoryMonitor) LogSnapshot() {
	s := m.Snapshot()
	m.logger.Info("Heap stats",
		logger.Uint64("heap_alloc", s.HeapAlloc),
		logger.Uint64("heap_sys", s.HeapSys),
		logger.Uint64("headroom", s.Headroom),
		logger.Uint64("min_headroom", s.MinHeadroom),
		logger.Int("goroutines", s.Goroutines),
		logger.Int("num_gc", int(s.NumGC)))
}
