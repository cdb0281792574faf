/*
 * MIT License
 *
 * Copyright (c) 2026 Nguyen Thanh Phuong
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package monitor

import (
	"log/slog"
	"sync"

	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// MemoryStats is the snapshot returned by the memory monitor.
// Byte counts are unsigned 64-bit; the rolling fields average RSS.
type MemoryStats struct {
	RSS        uint64  `json:"rss"`
	HeapTotal  uint64  `json:"heap_total"`
	HeapUsed   uint64  `json:"heap_used"`
	External   uint64  `json:"external"`
	RSSAvg30s  float64 `json:"rss_avg_30s"`
	RSSAvg1m   float64 `json:"rss_avg_1m"`
	RSSAvg3m   float64 `json:"rss_avg_3m"`
	RSSAvg5m   float64 `json:"rss_avg_5m"`
	RSSAvg10m  float64 `json:"rss_avg_10m"`
	Timestamp  int64   `json:"timestamp"`
}

// MemoryMonitor samples resident-set and heap counters on each Update.
// RSS of 0 (no procfs) is reported as-is rather than treated as an error.
type MemoryMonitor struct {
	mu      sync.Mutex
	running bool

	last    platform.MemorySnapshot
	windows map[metrics.Period]*metrics.Window

	// memory is replaced in tests.
	memory func() platform.MemorySnapshot
	logger *slog.Logger
}

// NewMemoryMonitor creates a stopped memory monitor.
func NewMemoryMonitor(logger *slog.Logger) *MemoryMonitor {
	windows := make(map[metrics.Period]*metrics.Window, 5)
	for _, p := range metrics.LongPeriods() {
		windows[p] = metrics.NewPeriodWindow(p)
	}
	return &MemoryMonitor{
		windows: windows,
		memory:  platform.ProcessMemory,
		logger:  logger,
	}
}

// Start marks the monitor running. Idempotent.
func (m *MemoryMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.running = true
		m.logger.Info("Memory monitor started")
	}
	return nil
}

// Stop marks the monitor stopped. Idempotent.
func (m *MemoryMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.logger.Info("Memory monitor stopped")
	}
	return nil
}

// Update queries the platform counters and pushes RSS into the windows.
func (m *MemoryMonitor) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.last = m.memory()
	for _, w := range m.windows {
		w.Push(float64(m.last.RSS))
	}
	return nil
}

// Reset clears the last snapshot and all windows.
func (m *MemoryMonitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = platform.MemorySnapshot{}
	for _, w := range m.windows {
		w.Reset()
	}
	return nil
}

// IsRunning reports the lifecycle state.
func (m *MemoryMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ModuleName returns "memory".
func (m *MemoryMonitor) ModuleName() string {
	return ModuleMemory
}

// Stats returns the last-read snapshot plus the RSS rolling averages.
func (m *MemoryMonitor) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MemoryStats{
		RSS:       m.last.RSS,
		HeapTotal: m.last.HeapTotal,
		HeapUsed:  m.last.HeapUsed,
		External:  m.last.External,
		RSSAvg30s: m.windows[metrics.Period30s].Mean(),
		RSSAvg1m:  m.windows[metrics.Period1m].Mean(),
		RSSAvg3m:  m.windows[metrics.Period3m].Mean(),
		RSSAvg5m:  m.windows[metrics.Period5m].Mean(),
		RSSAvg10m: m.windows[metrics.Period10m].Mean(),
		Timestamp: metrics.EpochMillis(platform.NowWall()),
	}
}
