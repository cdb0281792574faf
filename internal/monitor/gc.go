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
	"time"

	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// GCEventType identifies the kind of collection the runtime performed.
type GCEventType string

// The garbage-collection event types delivered by the host bridge.
const (
	GCScavenge             GCEventType = "scavenge"
	GCMarkSweepCompact     GCEventType = "mark_sweep_compact"
	GCIncrementalMarking   GCEventType = "incremental_marking"
	GCProcessWeakCallbacks GCEventType = "process_weak_callbacks"
)

// GCEvent is one collection as reported by the host bridge.
type GCEvent struct {
	Type       GCEventType   `json:"type"`
	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`
	Timestamp  int64         `json:"timestamp"` // ms since epoch
	HeapBefore uint64        `json:"heap_before"`
	HeapAfter  uint64        `json:"heap_after"`
}

// GCTypeStats aggregates one event type.
type GCTypeStats struct {
	Count       uint64  `json:"count"`
	TotalTimeMs float64 `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
}

// GCStats is the snapshot returned by the GC monitor.
type GCStats struct {
	TotalCount      uint64                     `json:"total_count"`
	TotalTimeMs     float64                    `json:"total_time_ms"`
	ByType          map[string]GCTypeStats     `json:"by_type"`
	RecentEvents    []GCEvent                  `json:"recent_events"`
	FrequencyPerSec map[string]float64         `json:"frequency_per_sec"` // keyed by period label
	PauseMs         map[string]float64         `json:"pause_ms"`          // keyed by period label
	Timestamp       int64                      `json:"timestamp"`
}

// maxRecentGCEvents bounds the event ledger.
const maxRecentGCEvents = 1000

// gcBucket accumulates the events of one wall second.
type gcBucket struct {
	sec   int64 // seconds since the monitor's epoch
	count uint64
	pause time.Duration
}

// GCMonitor is strictly event-sourced: the host bridge delivers collection
// events, stats reads aggregate lazily. Ingest and reads serialize on one
// lock; a reader during an ingest burst sees a coherent snapshot.
type GCMonitor struct {
	mu      sync.Mutex
	running bool

	events    []GCEvent
	count     uint64
	totalTime time.Duration
	byType    map[GCEventType]*gcTypeAccum

	// buckets covers the longest window (10m); shorter periods slice it.
	buckets []gcBucket
	epoch   time.Time // monotonic origin for bucket keys

	now    func() time.Time
	logger *slog.Logger
}

type gcTypeAccum struct {
	count uint64
	total time.Duration
}

// NewGCMonitor creates a stopped GC monitor.
func NewGCMonitor(logger *slog.Logger) *GCMonitor {
	return &GCMonitor{
		byType: make(map[GCEventType]*gcTypeAccum),
		epoch:  platform.NowMono(),
		now:    platform.NowMono,
		logger: logger,
	}
}

// Start marks the monitor running. Idempotent.
func (m *GCMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.running = true
		m.logger.Info("GC monitor started")
	}
	return nil
}

// Stop marks the monitor stopped. Idempotent.
func (m *GCMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.logger.Info("GC monitor stopped")
	}
	return nil
}

// Update prunes expired window buckets. The monitor has no polling work.
func (m *GCMonitor) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneBuckets(m.nowSec())
	return nil
}

// Reset clears the ledger, counters, and window buckets.
func (m *GCMonitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
	m.count = 0
	m.totalTime = 0
	m.byType = make(map[GCEventType]*gcTypeAccum)
	m.buckets = nil
	return nil
}

// IsRunning reports the lifecycle state.
func (m *GCMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ModuleName returns "gc".
func (m *GCMonitor) ModuleName() string {
	return ModuleGC
}

// RecordEvent ingests one collection event. Negative durations are coerced
// to zero. The call never fails from the bridge's perspective.
func (m *GCMonitor) RecordEvent(ev GCEvent) {
	if ev.Duration < 0 {
		ev.Duration = 0
	}
	ev.DurationMs = metrics.ToMillis(ev.Duration)
	if ev.Timestamp == 0 {
		ev.Timestamp = metrics.EpochMillis(platform.NowWall())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	if len(m.events) > maxRecentGCEvents {
		m.events = m.events[len(m.events)-maxRecentGCEvents:]
	}

	m.count++
	m.totalTime += ev.Duration

	acc := m.byType[ev.Type]
	if acc == nil {
		acc = &gcTypeAccum{}
		m.byType[ev.Type] = acc
	}
	acc.count++
	acc.total += ev.Duration

	sec := m.nowSec()
	if n := len(m.buckets); n > 0 && m.buckets[n-1].sec == sec {
		m.buckets[n-1].count++
		m.buckets[n-1].pause += ev.Duration
	} else {
		m.buckets = append(m.buckets, gcBucket{sec: sec, count: 1, pause: ev.Duration})
	}
	m.pruneBuckets(sec)
}

// Stats aggregates the ledger and rolling windows. O(window length).
func (m *GCMonitor) Stats() GCStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowSec := m.nowSec()
	m.pruneBuckets(nowSec)

	byType := make(map[string]GCTypeStats, len(m.byType))
	for t, acc := range m.byType {
		ts := GCTypeStats{
			Count:       acc.count,
			TotalTimeMs: metrics.ToMillis(acc.total),
		}
		if acc.count > 0 {
			ts.AvgTimeMs = ts.TotalTimeMs / float64(acc.count)
		}
		byType[string(t)] = ts
	}

	recent := make([]GCEvent, len(m.events))
	copy(recent, m.events)

	freq := make(map[string]float64, 6)
	pause := make(map[string]float64, 6)
	for _, p := range metrics.AllPeriods() {
		cutoff := nowSec - int64(p.Seconds())
		var (
			events  uint64
			pauseMs float64
			filled  int
		)
		for _, b := range m.buckets {
			if b.sec <= cutoff {
				continue
			}
			events += b.count
			pauseMs += metrics.ToMillis(b.pause)
			filled++
		}
		freq[p.String()] = float64(events) / float64(p.Seconds())
		// Mean pause per one-second bucket, averaged over non-empty buckets.
		if filled > 0 {
			pause[p.String()] = pauseMs / float64(filled)
		} else {
			pause[p.String()] = 0
		}
	}

	return GCStats{
		TotalCount:      m.count,
		TotalTimeMs:     metrics.ToMillis(m.totalTime),
		ByType:          byType,
		RecentEvents:    recent,
		FrequencyPerSec: freq,
		PauseMs:         pause,
		Timestamp:       metrics.EpochMillis(platform.NowWall()),
	}
}

// nowSec returns whole seconds since the monitor's monotonic epoch.
// Caller holds mu.
func (m *GCMonitor) nowSec() int64 {
	return int64(m.now().Sub(m.epoch) / time.Second)
}

// pruneBuckets drops buckets older than the longest window. Caller holds mu.
func (m *GCMonitor) pruneBuckets(nowSec int64) {
	cutoff := nowSec - int64(metrics.Period10m.Seconds())
	i := 0
	for i < len(m.buckets) && m.buckets[i].sec <= cutoff {
		i++
	}
	if i > 0 {
		m.buckets = append([]gcBucket(nil), m.buckets[i:]...)
	}
}
