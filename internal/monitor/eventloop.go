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

// HandleType identifies an event-loop resource kind.
type HandleType string

// The event-loop handle types the host registers.
const (
	HandleTimer   HandleType = "timer"
	HandleTCP     HandleType = "tcp"
	HandleUDP     HandleType = "udp"
	HandlePipe    HandleType = "pipe"
	HandleTTY     HandleType = "tty"
	HandlePoll    HandleType = "poll"
	HandlePrepare HandleType = "prepare"
	HandleCheck   HandleType = "check"
	HandleIdle    HandleType = "idle"
	HandleAsync   HandleType = "async"
	HandleFsEvent HandleType = "fs_event"
	HandleFsPoll  HandleType = "fs_poll"
	HandleSignal  HandleType = "signal"
	HandleProcess HandleType = "process"
)

// Handle is one registered event-loop resource.
type Handle struct {
	ID         uint64     `json:"id"`
	Type       HandleType `json:"type"`
	Active     bool       `json:"active"`
	Referenced bool       `json:"referenced"`
	CreatedAt  int64      `json:"created_at"` // ms since epoch
}

// LoopActivity is one entry of the bounded recent-activity log.
type LoopActivity struct {
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
}

// EventLoopStats is the snapshot returned by the event-loop monitor.
type EventLoopStats struct {
	TotalHandles   uint64            `json:"total_handles"`
	HandleCounts   map[string]uint64 `json:"handle_counts"`
	ActiveHandles  uint64            `json:"active_handles"`
	ActiveCounts   map[string]uint64 `json:"active_counts"`
	LoopCount      uint64            `json:"loop_count"`
	TotalLoopMs    float64           `json:"total_loop_ms"`
	TotalIdleMs    float64           `json:"total_idle_ms"`
	TotalPrepareMs float64           `json:"total_prepare_ms"`
	TotalCheckMs   float64           `json:"total_check_ms"`
	TotalPollMs    float64           `json:"total_poll_ms"`
	AvgLoopMs      float64           `json:"avg_loop_ms"`
	MinLoopMs      float64           `json:"min_loop_ms"`
	MaxLoopMs      float64           `json:"max_loop_ms"`
	Activity       []LoopActivity    `json:"activity"`
	Timestamp      int64             `json:"timestamp"`
}

// maxLoopActivity bounds the recent-activity ring.
const maxLoopActivity = 100

// minLoopSentinel marks "no iteration seen yet"; projected to 0 on read.
const minLoopSentinel = time.Duration(-1)

// EventLoopMonitor tracks the host's event-loop handles and iteration
// timings. Strictly event-sourced; Update has nothing to poll.
type EventLoopMonitor struct {
	mu      sync.Mutex
	running bool

	nextID  uint64 // ids are never reused
	handles map[uint64]*Handle

	loopCount    uint64
	totalLoop    time.Duration
	totalIdle    time.Duration
	totalPrepare time.Duration
	totalCheck   time.Duration
	totalPoll    time.Duration
	minLoop      time.Duration
	maxLoop      time.Duration

	activity []LoopActivity
	logger   *slog.Logger
}

// NewEventLoopMonitor creates a stopped event-loop monitor.
func NewEventLoopMonitor(logger *slog.Logger) *EventLoopMonitor {
	return &EventLoopMonitor{
		handles: make(map[uint64]*Handle),
		minLoop: minLoopSentinel,
		logger:  logger,
	}
}

// Start marks the monitor running. Idempotent.
func (m *EventLoopMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.running = true
		m.logger.Info("Event-loop monitor started")
	}
	return nil
}

// Stop marks the monitor stopped. Idempotent.
func (m *EventLoopMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.logger.Info("Event-loop monitor stopped")
	}
	return nil
}

// Update is a no-op; the monitor is event-sourced.
func (m *EventLoopMonitor) Update() error {
	return nil
}

// Reset clears the handle registry, counters, and activity log.
func (m *EventLoopMonitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handles = make(map[uint64]*Handle)
	m.loopCount = 0
	m.totalLoop = 0
	m.totalIdle = 0
	m.totalPrepare = 0
	m.totalCheck = 0
	m.totalPoll = 0
	m.minLoop = minLoopSentinel
	m.maxLoop = 0
	m.activity = nil
	// nextID is deliberately not reset: ids are never reused.
	return nil
}

// IsRunning reports the lifecycle state.
func (m *EventLoopMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ModuleName returns "eventloop".
func (m *EventLoopMonitor) ModuleName() string {
	return ModuleEventLoop
}

// RegisterHandle records a new handle and returns its assigned id.
func (m *EventLoopMonitor) RegisterHandle(t HandleType, active, referenced bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.handles[id] = &Handle{
		ID:         id,
		Type:       t,
		Active:     active,
		Referenced: referenced,
		CreatedAt:  metrics.EpochMillis(platform.NowWall()),
	}
	m.logActivity("register", string(t))
	return id
}

// UpdateHandleStatus mutates a handle's flags. Unknown ids are dropped and
// noted in the activity log.
func (m *EventLoopMonitor) UpdateHandleStatus(id uint64, active, referenced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[id]
	if !ok {
		m.logActivity("drop", "status update for unknown handle")
		return
	}
	h.Active = active
	h.Referenced = referenced
}

// UnregisterHandle removes a handle. No-op on unknown id.
func (m *EventLoopMonitor) UnregisterHandle(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[id]
	if !ok {
		return
	}
	delete(m.handles, id)
	m.logActivity("unregister", string(h.Type))
}

// RecordLoopIteration accumulates one iteration's five timings.
func (m *EventLoopMonitor) RecordLoopIteration(total, idle, prepare, check, poll time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loopCount++
	m.totalLoop += total
	m.totalIdle += idle
	m.totalPrepare += prepare
	m.totalCheck += check
	m.totalPoll += poll

	if m.minLoop == minLoopSentinel || total < m.minLoop {
		m.minLoop = total
	}
	if total > m.maxLoop {
		m.maxLoop = total
	}
}

// Stats returns handle counts, running totals, and loop metrics.
func (m *EventLoopMonitor) Stats() EventLoopStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]uint64)
	activeCounts := make(map[string]uint64)
	var active uint64
	for _, h := range m.handles {
		counts[string(h.Type)]++
		if h.Active {
			activeCounts[string(h.Type)]++
			active++
		}
	}

	var avg float64
	if m.loopCount > 0 {
		avg = metrics.ToMillis(m.totalLoop) / float64(m.loopCount)
	}

	minLoop := m.minLoop
	if minLoop == minLoopSentinel {
		minLoop = 0
	}

	activity := make([]LoopActivity, len(m.activity))
	copy(activity, m.activity)

	return EventLoopStats{
		TotalHandles:   uint64(len(m.handles)),
		HandleCounts:   counts,
		ActiveHandles:  active,
		ActiveCounts:   activeCounts,
		LoopCount:      m.loopCount,
		TotalLoopMs:    metrics.ToMillis(m.totalLoop),
		TotalIdleMs:    metrics.ToMillis(m.totalIdle),
		TotalPrepareMs: metrics.ToMillis(m.totalPrepare),
		TotalCheckMs:   metrics.ToMillis(m.totalCheck),
		TotalPollMs:    metrics.ToMillis(m.totalPoll),
		AvgLoopMs:      avg,
		MinLoopMs:      metrics.ToMillis(minLoop),
		MaxLoopMs:      metrics.ToMillis(m.maxLoop),
		Activity:       activity,
		Timestamp:      metrics.EpochMillis(platform.NowWall()),
	}
}

// logActivity appends one entry to the bounded activity ring. Caller holds mu.
func (m *EventLoopMonitor) logActivity(action, detail string) {
	m.activity = append(m.activity, LoopActivity{
		Timestamp: metrics.EpochMillis(platform.NowWall()),
		Action:    action,
		Detail:    detail,
	})
	if len(m.activity) > maxLoopActivity {
		m.activity = m.activity[len(m.activity)-maxLoopActivity:]
	}
}
