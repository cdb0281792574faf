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

// CPUStats is the snapshot returned by the CPU monitor.
// Percentages are clamped to [0, 100]; Timestamp is milliseconds since epoch.
type CPUStats struct {
	Current   float64 `json:"current"`
	Avg15s    float64 `json:"avg_15s"`
	Avg30s    float64 `json:"avg_30s"`
	Avg1m     float64 `json:"avg_1m"`
	Avg3m     float64 `json:"avg_3m"`
	Avg5m     float64 `json:"avg_5m"`
	Avg10m    float64 `json:"avg_10m"`
	Timestamp int64   `json:"timestamp"`
}

// CPUMonitor samples process CPU utilization on each Update and keeps six
// rolling averages. There is no background thread; the host drives Update
// at one-second cadence.
type CPUMonitor struct {
	mu      sync.Mutex
	running bool

	prevCPU     uint64 // user+system ns at the previous sample
	prevWall    int64  // wall ns at the previous sample
	hasBaseline bool
	current     float64

	windows map[metrics.Period]*metrics.Window

	// cpuTime is replaced in tests.
	cpuTime func() (platform.CPUTime, error)
	logger  *slog.Logger
}

// NewCPUMonitor creates a stopped CPU monitor.
func NewCPUMonitor(logger *slog.Logger) *CPUMonitor {
	windows := make(map[metrics.Period]*metrics.Window, 6)
	for _, p := range metrics.AllPeriods() {
		windows[p] = metrics.NewPeriodWindow(p)
	}
	return &CPUMonitor{
		windows: windows,
		cpuTime: platform.ProcessCPUTime,
		logger:  logger,
	}
}

// Start records the initial CPU/wall baseline. Idempotent.
func (m *CPUMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.captureBaseline()
	m.running = true
	m.logger.Info("CPU monitor started", "baseline", m.hasBaseline)
	return nil
}

// Stop clears the running flag. The baseline is retained so a later Start
// resumes without a cold first sample. Idempotent.
func (m *CPUMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.running = false
		m.logger.Info("CPU monitor stopped")
	}
	return nil
}

// Update reads the current CPU time, derives the percentage over the
// elapsed wall interval, and pushes one sample into every window.
// A platform failure is swallowed and recorded as a zero sample.
func (m *CPUMonitor) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	ct, err := m.cpuTime()
	if err != nil {
		m.logger.Debug("CPU time query failed, recording zero sample", "error", err)
		m.pushSample(0)
		return nil
	}

	if !m.hasBaseline {
		m.prevCPU = ct.Total()
		m.prevWall = ct.WallNs
		m.hasBaseline = true
		m.pushSample(0)
		return nil
	}

	pct := metrics.CalculateCPUPercent(m.prevCPU, ct.Total(), ct.WallNs-m.prevWall)
	m.prevCPU = ct.Total()
	m.prevWall = ct.WallNs
	m.pushSample(pct)
	return nil
}

// Reset clears all windows and the baseline without changing lifecycle.
func (m *CPUMonitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.windows {
		w.Reset()
	}
	m.current = 0
	m.hasBaseline = false
	m.prevCPU = 0
	m.prevWall = 0
	return nil
}

// IsRunning reports the lifecycle state.
func (m *CPUMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ModuleName returns "cpu".
func (m *CPUMonitor) ModuleName() string {
	return ModuleCPU
}

// Stats returns the instantaneous percentage and the six rolling averages.
func (m *CPUMonitor) Stats() CPUStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return CPUStats{
		Current:   m.current,
		Avg15s:    m.windows[metrics.Period15s].Mean(),
		Avg30s:    m.windows[metrics.Period30s].Mean(),
		Avg1m:     m.windows[metrics.Period1m].Mean(),
		Avg3m:     m.windows[metrics.Period3m].Mean(),
		Avg5m:     m.windows[metrics.Period5m].Mean(),
		Avg10m:    m.windows[metrics.Period10m].Mean(),
		Timestamp: metrics.EpochMillis(platform.NowWall()),
	}
}

// WindowLen returns the sample count of one rolling window.
func (m *CPUMonitor) WindowLen(p metrics.Period) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[p]; ok {
		return w.Len()
	}
	return 0
}

// captureBaseline reads the current CPU time as the delta origin.
// A query failure leaves the baseline unset; the next Update retries.
func (m *CPUMonitor) captureBaseline() {
	ct, err := m.cpuTime()
	if err != nil {
		m.hasBaseline = false
		return
	}
	m.prevCPU = ct.Total()
	m.prevWall = ct.WallNs
	m.hasBaseline = true
}

// pushSample records one percentage across every window. Caller holds mu.
func (m *CPUMonitor) pushSample(pct float64) {
	m.current = pct
	for _, w := range m.windows {
		w.Push(pct)
	}
}
