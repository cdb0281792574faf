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
	"math"
	"testing"
	"time"
)

func TestGCMonitorTypeAccounting(t *testing.T) {
	m := NewGCMonitor(testLogger())
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	events := []struct {
		typ GCEventType
		dur time.Duration
	}{
		{GCScavenge, time.Millisecond},
		{GCScavenge, 2 * time.Millisecond},
		{GCMarkSweepCompact, 5 * time.Millisecond},
		{GCMarkSweepCompact, 10 * time.Millisecond},
	}
	for _, ev := range events {
		m.RecordEvent(GCEvent{Type: ev.typ, Duration: ev.dur, HeapBefore: 100, HeapAfter: 50})
	}

	stats := m.Stats()
	if stats.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", stats.TotalCount)
	}
	if math.Abs(stats.TotalTimeMs-18.0) > 1e-9 {
		t.Errorf("TotalTimeMs = %v, want 18", stats.TotalTimeMs)
	}

	sc := stats.ByType[string(GCScavenge)]
	if sc.Count != 2 || math.Abs(sc.TotalTimeMs-3.0) > 1e-9 {
		t.Errorf("Scavenge = %+v, want count 2 total 3ms", sc)
	}
	if math.Abs(sc.AvgTimeMs-1.5) > 1e-9 {
		t.Errorf("Scavenge AvgTimeMs = %v, want 1.5", sc.AvgTimeMs)
	}

	msc := stats.ByType[string(GCMarkSweepCompact)]
	if msc.Count != 2 || math.Abs(msc.TotalTimeMs-15.0) > 1e-9 {
		t.Errorf("MarkSweepCompact = %+v, want count 2 total 15ms", msc)
	}

	// total_gc_time must equal the sum over the ledger.
	var sum float64
	for _, ev := range stats.RecentEvents {
		sum += ev.DurationMs
	}
	if math.Abs(sum-stats.TotalTimeMs) > 1e-9 {
		t.Errorf("ledger sum = %v, want %v", sum, stats.TotalTimeMs)
	}
}

func TestGCMonitorRollingWindows(t *testing.T) {
	m := NewGCMonitor(testLogger())
	_ = m.Start()

	// Fake clock: all events land in the first second.
	now := m.epoch
	m.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		m.RecordEvent(GCEvent{Type: GCScavenge, Duration: 2 * time.Millisecond})
	}

	// Read 10 seconds later: 5 events over a 15s window.
	now = m.epoch.Add(10 * time.Second)
	stats := m.Stats()

	wantFreq := 5.0 / 15.0
	if got := stats.FrequencyPerSec["15s"]; math.Abs(got-wantFreq) > 1e-9 {
		t.Errorf("FrequencyPerSec[15s] = %v, want %v", got, wantFreq)
	}
	// One non-empty bucket holding 10ms of pause → mean-per-bucket 10ms.
	if got := stats.PauseMs["15s"]; math.Abs(got-10.0) > 1e-9 {
		t.Errorf("PauseMs[15s] = %v, want 10", got)
	}

	// Read past the window: the bucket has expired.
	now = m.epoch.Add(20 * time.Second)
	stats = m.Stats()
	if got := stats.FrequencyPerSec["15s"]; got != 0 {
		t.Errorf("FrequencyPerSec[15s] after expiry = %v, want 0", got)
	}
	if got := stats.PauseMs["15s"]; got != 0 {
		t.Errorf("PauseMs[15s] after expiry = %v, want 0", got)
	}
	// The 1m window still sees the events.
	if got := stats.FrequencyPerSec["1m"]; math.Abs(got-5.0/60.0) > 1e-9 {
		t.Errorf("FrequencyPerSec[1m] = %v, want %v", got, 5.0/60.0)
	}
}

func TestGCMonitorNegativeDuration(t *testing.T) {
	m := NewGCMonitor(testLogger())
	_ = m.Start()
	m.RecordEvent(GCEvent{Type: GCScavenge, Duration: -time.Second})

	stats := m.Stats()
	if stats.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", stats.TotalCount)
	}
	if stats.TotalTimeMs != 0 {
		t.Errorf("TotalTimeMs = %v, want 0 (negative coerced)", stats.TotalTimeMs)
	}
}

func TestGCMonitorLedgerBound(t *testing.T) {
	m := NewGCMonitor(testLogger())
	_ = m.Start()
	for i := 0; i < maxRecentGCEvents+50; i++ {
		m.RecordEvent(GCEvent{Type: GCScavenge, Duration: time.Microsecond})
	}
	stats := m.Stats()
	if len(stats.RecentEvents) != maxRecentGCEvents {
		t.Errorf("ledger length = %d, want %d", len(stats.RecentEvents), maxRecentGCEvents)
	}
	// Running counters keep counting past the ledger cap.
	if stats.TotalCount != uint64(maxRecentGCEvents+50) {
		t.Errorf("TotalCount = %d, want %d", stats.TotalCount, maxRecentGCEvents+50)
	}
}

func TestGCMonitorReset(t *testing.T) {
	m := NewGCMonitor(testLogger())
	_ = m.Start()
	m.RecordEvent(GCEvent{Type: GCScavenge, Duration: time.Millisecond})
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	stats := m.Stats()
	if stats.TotalCount != 0 || stats.TotalTimeMs != 0 || len(stats.RecentEvents) != 0 || len(stats.ByType) != 0 {
		t.Errorf("stats after Reset = %+v, want empty", stats)
	}
	for _, v := range stats.FrequencyPerSec {
		if v != 0 {
			t.Errorf("frequency after Reset = %v, want 0", v)
		}
	}
	if !m.IsRunning() {
		t.Error("Reset changed lifecycle state")
	}
}
