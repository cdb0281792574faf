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
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// testLogger builds a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCPUClock feeds the CPU monitor scripted (cpu, wall) pairs.
type fakeCPUClock struct {
	cpu  uint64
	wall int64
}

func (f *fakeCPUClock) advance(cpu time.Duration, wall time.Duration) {
	f.cpu += uint64(cpu)
	f.wall += int64(wall)
}

func (f *fakeCPUClock) read() (platform.CPUTime, error) {
	return platform.CPUTime{UserNs: f.cpu, WallNs: f.wall}, nil
}

func TestCPUMonitorLifecycle(t *testing.T) {
	m := NewCPUMonitor(testLogger())

	if m.IsRunning() {
		t.Fatal("new monitor reports running")
	}
	if m.ModuleName() != ModuleCPU {
		t.Errorf("ModuleName() = %q, want %q", m.ModuleName(), ModuleCPU)
	}

	// start; start → running. stop; stop → stopped. All nil errors.
	for i := 0; i < 2; i++ {
		if err := m.Start(); err != nil {
			t.Fatalf("Start() #%d error = %v", i+1, err)
		}
	}
	if !m.IsRunning() {
		t.Error("monitor not running after Start")
	}
	for i := 0; i < 2; i++ {
		if err := m.Stop(); err != nil {
			t.Fatalf("Stop() #%d error = %v", i+1, err)
		}
	}
	if m.IsRunning() {
		t.Error("monitor still running after Stop")
	}
}

func TestCPUMonitorResetPreservesRunning(t *testing.T) {
	m := NewCPUMonitor(testLogger())
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !m.IsRunning() {
		t.Error("Reset changed lifecycle state")
	}
}

func TestCPUMonitorSampling(t *testing.T) {
	clock := &fakeCPUClock{wall: int64(time.Hour)}
	m := NewCPUMonitor(testLogger())
	m.cpuTime = clock.read

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 500ms CPU over a 1s interval → 50%.
	clock.advance(500*time.Millisecond, time.Second)
	if err := m.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stats := m.Stats()
	if math.Abs(stats.Current-50.0) > 1e-9 {
		t.Errorf("Current = %v, want 50", stats.Current)
	}

	// CPU busier than wall (multi-core burst) clamps to 100.
	clock.advance(4*time.Second, time.Second)
	_ = m.Update()
	if got := m.Stats().Current; got != 100.0 {
		t.Errorf("Current = %v, want 100 (clamped)", got)
	}

	// Zero wall delta → zero sample.
	_ = m.Update()
	if got := m.Stats().Current; got != 0.0 {
		t.Errorf("Current = %v, want 0 on zero wall delta", got)
	}

	for _, avg := range []float64{
		stats.Avg15s, stats.Avg30s, stats.Avg1m, stats.Avg3m, stats.Avg5m, stats.Avg10m,
	} {
		if avg < 0 || avg > 100 {
			t.Errorf("rolling average = %v, want [0, 100]", avg)
		}
	}
}

func TestCPUMonitorWindowBounds(t *testing.T) {
	clock := &fakeCPUClock{wall: int64(time.Hour)}
	m := NewCPUMonitor(testLogger())
	m.cpuTime = clock.read
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Push samples 0, 10, 20, ..., 290 at one-per-second: sample i is
	// i*10 percent of the interval.
	for i := 0; i < 30; i++ {
		clock.advance(time.Duration(i)*100*time.Millisecond, time.Second)
		if err := m.Update(); err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
	}

	if got := m.WindowLen(metrics.Period15s); got != 15 {
		t.Errorf("15s window length = %d, want 15", got)
	}

	// The last 15 samples are 150%..290% clamped to 100: 15..29 → *10,
	// clamp(>100)=100 for all of them.
	if got := m.Stats().Avg15s; got != 100.0 {
		t.Errorf("Avg15s = %v, want 100 (all clamped samples)", got)
	}
}

func TestCPUMonitorPlatformFailure(t *testing.T) {
	m := NewCPUMonitor(testLogger())
	m.cpuTime = func() (platform.CPUTime, error) {
		return platform.CPUTime{}, errors.New("no cpu accounting")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Update swallows the failure and records a zero sample.
	if err := m.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	stats := m.Stats()
	if stats.Current != 0 {
		t.Errorf("Current = %v, want 0 on platform failure", stats.Current)
	}
	if got := m.WindowLen(metrics.Period15s); got != 1 {
		t.Errorf("window length = %d, want 1 zero sample", got)
	}
}

func TestCPUMonitorResetClearsWindows(t *testing.T) {
	clock := &fakeCPUClock{wall: int64(time.Hour)}
	m := NewCPUMonitor(testLogger())
	m.cpuTime = clock.read
	_ = m.Start()

	clock.advance(time.Second, time.Second)
	_ = m.Update()
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	stats := m.Stats()
	if stats.Current != 0 || stats.Avg15s != 0 || stats.Avg10m != 0 {
		t.Errorf("stats after Reset = %+v, want all zero", stats)
	}
	if got := m.WindowLen(metrics.Period15s); got != 0 {
		t.Errorf("window length after Reset = %d, want 0", got)
	}
}
