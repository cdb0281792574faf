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

package profiler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// GCPhase labels where in a collection cycle an event sits.
type GCPhase string

// Collection cycle phases.
const (
	GCPhaseStart   GCPhase = "start"
	GCPhaseMark    GCPhase = "mark"
	GCPhaseSweep   GCPhase = "sweep"
	GCPhaseCompact GCPhase = "compact"
	GCPhaseEnd     GCPhase = "end"
)

// maxRecentCycles bounds the recent-cycle ring kept for inspection.
const maxRecentCycles = 100

// idleWatchInterval is how often the idle watcher checks for a quiet
// collector.
const idleWatchInterval = 5 * time.Second

// Pause-time histogram bucket labels, ascending.
var pauseClassLabels = []string{"0-1ms", "1-10ms", "10-100ms", "100ms-1s", ">1s"}

// GCCycleEvent is one collection cycle as reported by the runtime bridge.
// Generation, reason and metadata are carried through verbatim; the thread
// id is captured at record time.
type GCCycleEvent struct {
	Generation string
	Phase      GCPhase
	Duration   time.Duration
	HeapBefore uint64
	HeapAfter  uint64
	HeapSize   uint64
	Reason     string
	Metadata   map[string]string
}

// GCCycle is one recorded collection cycle.
type GCCycle struct {
	ID             uint64            `json:"id"`
	Generation     string            `json:"generation"`
	Phase          GCPhase           `json:"phase"`
	DurationMs     float64           `json:"duration_ms"`
	HeapBefore     uint64            `json:"heap_before"`
	HeapAfter      uint64            `json:"heap_after"`
	HeapSize       uint64            `json:"heap_size"`
	ReclaimedBytes uint64            `json:"reclaimed_bytes"`
	ThreadID       uint64            `json:"thread_id"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      int64             `json:"timestamp"` // ms since epoch
}

// GenerationStats aggregates cycles of one generation label.
type GenerationStats struct {
	Count          uint64  `json:"count"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	MinTimeMs      float64 `json:"min_time_ms"`
	MaxTimeMs      float64 `json:"max_time_ms"`
	AvgTimeMs      float64 `json:"avg_time_ms"`
	ReclaimedBytes uint64  `json:"reclaimed_bytes"`
	AvgReclaimed   float64 `json:"avg_reclaimed"`
}

// GCProfileResult is the aggregated payload returned by Results.
type GCProfileResult struct {
	SessionID          string                     `json:"session_id"`
	TotalCycles        uint64                     `json:"total_cycles"`
	SessionDurationMs  float64                    `json:"session_duration_ms"`
	FrequencyPerSec    float64                    `json:"frequency_per_sec"`
	OverheadPct        float64                    `json:"overhead_pct"`
	ReclamationPct     float64                    `json:"reclamation_pct"`
	ThroughputMBPerSec float64                    `json:"throughput_mb_per_sec"`
	LongestPauseMs     float64                    `json:"longest_pause_ms"`
	ShortestPauseMs    float64                    `json:"shortest_pause_ms"`
	AvgPauseMs         float64                    `json:"avg_pause_ms"`
	TotalPauseMs       float64                    `json:"total_pause_ms"`
	ByGeneration       map[string]GenerationStats `json:"by_generation"`
	PauseHistogram     map[string]uint64          `json:"pause_histogram"`
	RecentCycles       []GCCycle                  `json:"recent_cycles"`
}

// generationAcc is the mutable per-generation accumulator.
type generationAcc struct {
	count     uint64
	totalMs   float64
	minMs     float64
	maxMs     float64
	reclaimed uint64
	hasMin    bool
}

// GCProfiler records externally reported garbage-collection cycles. Cycle
// ids are assigned monotonically; a bounded ring of recent cycles is kept
// alongside running aggregates. An optional background watcher logs when
// the collector has been idle for a stretch.
type GCProfiler struct {
	mu      sync.Mutex
	running bool

	sessionID string
	startedAt time.Time
	stoppedAt time.Time

	nextID      uint64
	totalCycles uint64
	totalPause  time.Duration
	longest     time.Duration
	shortest    time.Duration
	hasShortest bool
	heapSeen    uint64
	reclaimed   uint64

	generations map[string]*generationAcc
	histogram   map[string]uint64
	recent      []GCCycle

	lastCycleAt time.Time

	watchIdle bool
	exit      chan struct{}
	wg        sync.WaitGroup

	// now is replaced in tests.
	now    func() time.Time
	logger *slog.Logger
}

// NewGCProfiler creates a stopped GC profiler. With watchIdle set, Start
// also spawns the idle watcher.
func NewGCProfiler(watchIdle bool, logger *slog.Logger) *GCProfiler {
	return &GCProfiler{
		generations: make(map[string]*generationAcc),
		histogram:   make(map[string]uint64),
		watchIdle:   watchIdle,
		now:         platform.NowWall,
		logger:      logger,
	}
}

// Start begins accepting cycle events. A second Start fails with
// ErrAlreadyRunning.
func (p *GCProfiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.sessionID = uuid.NewString()
	p.startedAt = platform.NowMono()
	p.stoppedAt = time.Time{}
	p.lastCycleAt = time.Time{}

	if p.watchIdle {
		p.exit = make(chan struct{})
		p.wg.Add(1)
		go p.watch(p.exit)
	}

	p.logger.Info("GC profiler started", "session", p.sessionID, "idle_watch", p.watchIdle)
	return nil
}

// Stop stops accepting events and joins the idle watcher if one was
// started. Fails with ErrNotRunning when not started.
func (p *GCProfiler) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	p.stoppedAt = platform.NowMono()
	exit := p.exit
	p.exit = nil
	p.mu.Unlock()

	if exit != nil {
		close(exit)
		p.wg.Wait()
	}
	p.logger.Info("GC profiler stopped", "cycles", p.TotalCycles())
	return nil
}

// Reset stops the profiler if running and clears all recorded cycles.
// Cycle ids keep counting from where they were.
func (p *GCProfiler) Reset() error {
	if err := p.Stop(); err != nil && err != ErrNotRunning {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = ""
	p.startedAt = time.Time{}
	p.stoppedAt = time.Time{}
	p.totalCycles = 0
	p.totalPause = 0
	p.longest = 0
	p.shortest = 0
	p.hasShortest = false
	p.heapSeen = 0
	p.reclaimed = 0
	p.generations = make(map[string]*generationAcc)
	p.histogram = make(map[string]uint64)
	p.recent = nil
	p.lastCycleAt = time.Time{}
	return nil
}

// IsRunning reports whether events are being accepted.
func (p *GCProfiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Name returns "gc".
func (p *GCProfiler) Name() string {
	return NameGC
}

// TotalCycles returns the number of cycles recorded this session.
func (p *GCProfiler) TotalCycles() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalCycles
}

// RecordCycle records one completed collection cycle and returns its
// assigned id. While stopped, the event is ignored and 0 is returned.
// Negative durations are clamped to zero; HeapAfter above HeapBefore
// reclaims nothing.
func (p *GCProfiler) RecordCycle(ev GCCycleEvent) uint64 {
	duration := ev.Duration
	if duration < 0 {
		duration = 0
	}
	var reclaimed uint64
	if ev.HeapBefore > ev.HeapAfter {
		reclaimed = ev.HeapBefore - ev.HeapAfter
	}
	tid := platform.GoroutineID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0
	}

	p.nextID++
	now := p.now()
	cycle := GCCycle{
		ID:             p.nextID,
		Generation:     ev.Generation,
		Phase:          ev.Phase,
		DurationMs:     metrics.ToMillis(duration),
		HeapBefore:     ev.HeapBefore,
		HeapAfter:      ev.HeapAfter,
		HeapSize:       ev.HeapSize,
		ReclaimedBytes: reclaimed,
		ThreadID:       tid,
		Reason:         ev.Reason,
		Metadata:       ev.Metadata,
		Timestamp:      metrics.EpochMillis(now),
	}

	p.totalCycles++
	p.totalPause += duration
	if duration > p.longest {
		p.longest = duration
	}
	if !p.hasShortest || duration < p.shortest {
		p.shortest = duration
		p.hasShortest = true
	}
	p.heapSeen += ev.HeapBefore
	p.reclaimed += reclaimed
	p.lastCycleAt = now
	p.histogram[pauseClass(duration)]++

	acc, ok := p.generations[ev.Generation]
	if !ok {
		acc = &generationAcc{}
		p.generations[ev.Generation] = acc
	}
	acc.count++
	ms := metrics.ToMillis(duration)
	acc.totalMs += ms
	if !acc.hasMin || ms < acc.minMs {
		acc.minMs = ms
		acc.hasMin = true
	}
	if ms > acc.maxMs {
		acc.maxMs = ms
	}
	acc.reclaimed += reclaimed

	p.recent = append(p.recent, cycle)
	if len(p.recent) > maxRecentCycles {
		p.recent = p.recent[len(p.recent)-maxRecentCycles:]
	}
	return cycle.ID
}

// Results aggregates the recorded cycles over the session.
func (p *GCProfiler) Results() any {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := GCProfileResult{
		SessionID:       p.sessionID,
		TotalCycles:     p.totalCycles,
		LongestPauseMs:  metrics.ToMillis(p.longest),
		ShortestPauseMs: metrics.ToMillis(p.shortest),
		TotalPauseMs:    metrics.ToMillis(p.totalPause),
		ByGeneration:    make(map[string]GenerationStats, len(p.generations)),
		PauseHistogram:  make(map[string]uint64, len(pauseClassLabels)),
		RecentCycles:    append([]GCCycle{}, p.recent...),
	}
	if p.totalCycles > 0 {
		res.AvgPauseMs = metrics.ToMillis(p.totalPause) / float64(p.totalCycles)
	}

	var session time.Duration
	switch {
	case p.startedAt.IsZero():
	case p.stoppedAt.IsZero():
		session = platform.NowMono().Sub(p.startedAt)
	default:
		session = p.stoppedAt.Sub(p.startedAt)
	}
	res.SessionDurationMs = metrics.ToMillis(session)

	if session > 0 {
		res.FrequencyPerSec = float64(p.totalCycles) / session.Seconds()
		res.OverheadPct = metrics.ClampPercent(float64(p.totalPause) / float64(session) * 100.0)
	}
	if p.heapSeen > 0 {
		res.ReclamationPct = metrics.ClampPercent(float64(p.reclaimed) / float64(p.heapSeen) * 100.0)
	}
	if p.totalPause > 0 {
		res.ThroughputMBPerSec = float64(p.reclaimed) / (1 << 20) / p.totalPause.Seconds()
	}

	for gen, acc := range p.generations {
		gs := GenerationStats{
			Count:          acc.count,
			TotalTimeMs:    acc.totalMs,
			MinTimeMs:      acc.minMs,
			MaxTimeMs:      acc.maxMs,
			ReclaimedBytes: acc.reclaimed,
		}
		if acc.count > 0 {
			gs.AvgTimeMs = acc.totalMs / float64(acc.count)
			gs.AvgReclaimed = float64(acc.reclaimed) / float64(acc.count)
		}
		res.ByGeneration[gen] = gs
	}
	for _, label := range pauseClassLabels {
		if c := p.histogram[label]; c > 0 {
			res.PauseHistogram[label] = c
		}
	}
	return res
}

// watch logs once per quiet stretch when no cycle has arrived for a full
// watch interval.
func (p *GCProfiler) watch(exit chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(idleWatchInterval)
	defer ticker.Stop()

	var reported bool
	for {
		select {
		case <-exit:
			return
		case <-ticker.C:
			p.mu.Lock()
			last := p.lastCycleAt
			p.mu.Unlock()

			idle := last.IsZero() || p.now().Sub(last) >= idleWatchInterval
			if idle && !reported {
				p.logger.Debug("no GC activity observed", "interval", idleWatchInterval)
				reported = true
			} else if !idle {
				reported = false
			}
		}
	}
}

// pauseClass maps a pause duration to its histogram bucket label.
func pauseClass(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return pauseClassLabels[0]
	case d < 10*time.Millisecond:
		return pauseClassLabels[1]
	case d < 100*time.Millisecond:
		return pauseClassLabels[2]
	case d < time.Second:
		return pauseClassLabels[3]
	default:
		return pauseClassLabels[4]
	}
}
