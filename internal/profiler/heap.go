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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// AllocationType labels how a block entered the heap.
type AllocationType string

// Recognized allocation types. Anything else is recorded as AllocOther.
const (
	AllocMalloc   AllocationType = "malloc"
	AllocCalloc   AllocationType = "calloc"
	AllocRealloc  AllocationType = "realloc"
	AllocNew      AllocationType = "new"
	AllocNewArray AllocationType = "new_array"
	AllocOther    AllocationType = "other"
)

// DefaultLeakThreshold is the minimum age before an active allocation is
// reported as a suspected leak.
const DefaultLeakThreshold = 60 * time.Second

// maxAllocationRecords bounds the allocation ledger.
const maxAllocationRecords = 10000

// Size-class bucket labels, ascending.
var sizeClassLabels = []string{"0-1KB", "1KB-10KB", "10KB-100KB", "100KB-1MB", ">1MB"}

// allocation is one tracked block.
type allocation struct {
	Address   uint64         `json:"address"`
	Size      uint64         `json:"size"`
	Type      AllocationType `json:"type"`
	Stack     []Frame        `json:"stack,omitempty"`
	Timestamp int64          `json:"timestamp"` // ms since epoch
	at        time.Time
}

// LeakCandidate is one long-lived allocation flagged by leak detection.
type LeakCandidate struct {
	Address    uint64         `json:"address"`
	Size       uint64         `json:"size"`
	Type       AllocationType `json:"type"`
	Stack      []Frame        `json:"stack,omitempty"`
	AgeMs      float64        `json:"age_ms"`
	Confidence float64        `json:"confidence"`
}

// HeapProfileResult is the aggregated payload returned by Results.
type HeapProfileResult struct {
	SessionID          string            `json:"session_id"`
	TotalAllocations   uint64            `json:"total_allocations"`
	TotalFrees         uint64            `json:"total_frees"`
	DroppedAllocations uint64            `json:"dropped_allocations"`
	ActiveCount        int               `json:"active_count"`
	CurrentBytes       uint64            `json:"current_bytes"`
	PeakBytes          uint64            `json:"peak_bytes"`
	ByType             map[string]uint64 `json:"by_type"`
	SizeClasses        map[string]uint64 `json:"size_classes"`
	TopSites           []AllocationSite  `json:"top_sites"`
	Leaks              []LeakCandidate   `json:"leaks"`
}

// AllocationSite aggregates allocations sharing a call stack.
type AllocationSite struct {
	Key        string  `json:"key"`
	Count      uint64  `json:"count"`
	TotalBytes uint64  `json:"total_bytes"`
	Stack      []Frame `json:"stack,omitempty"`
}

// topSiteLimit bounds the allocation-site top list.
const topSiteLimit = 10

// siteStats is the mutable per-site accumulator.
type siteStats struct {
	count      uint64
	totalBytes uint64
	stack      []Frame
}

// HeapProfiler tracks externally reported allocation and deallocation
// events. It keeps a bounded ledger of active blocks keyed by address and
// flags blocks older than the leak threshold as suspected leaks.
//
// A deallocation for an unknown address is ignored without touching any
// counter, so active count always equals allocations minus frees and the
// active sizes always sum to the current byte total.
type HeapProfiler struct {
	mu      sync.Mutex
	running bool

	cfg           Config
	leakThreshold time.Duration
	sessionID     string

	active  map[uint64]*allocation
	sites   map[string]*siteStats
	byType  map[AllocationType]uint64
	classes map[string]uint64

	totalAllocs  uint64
	totalFrees   uint64
	currentBytes uint64
	peakBytes    uint64
	dropped      uint64

	// now is replaced in tests.
	now    func() time.Time
	logger *slog.Logger
}

// NewHeapProfiler creates a stopped heap profiler. A non-positive
// leakThreshold falls back to DefaultLeakThreshold.
func NewHeapProfiler(cfg Config, leakThreshold time.Duration, logger *slog.Logger) *HeapProfiler {
	if leakThreshold <= 0 {
		leakThreshold = DefaultLeakThreshold
	}
	return &HeapProfiler{
		cfg:           cfg.normalize(),
		leakThreshold: leakThreshold,
		active:        make(map[uint64]*allocation),
		sites:         make(map[string]*siteStats),
		byType:        make(map[AllocationType]uint64),
		classes:       make(map[string]uint64),
		now:           platform.NowWall,
		logger:        logger,
	}
}

// Start begins accepting allocation events. A second Start fails with
// ErrAlreadyRunning.
func (p *HeapProfiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.sessionID = uuid.NewString()
	p.logger.Info("heap profiler started",
		"session", p.sessionID,
		"leak_threshold", p.leakThreshold,
	)
	return nil
}

// Stop stops accepting events. The ledger is kept for inspection until
// Reset. Fails with ErrNotRunning when not started.
func (p *HeapProfiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}
	p.running = false
	p.logger.Info("heap profiler stopped",
		"active", len(p.active),
		"current_bytes", p.currentBytes,
	)
	return nil
}

// Reset stops the profiler if running and clears the ledger.
func (p *HeapProfiler) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	p.sessionID = ""
	p.active = make(map[uint64]*allocation)
	p.sites = make(map[string]*siteStats)
	p.byType = make(map[AllocationType]uint64)
	p.classes = make(map[string]uint64)
	p.totalAllocs = 0
	p.totalFrees = 0
	p.currentBytes = 0
	p.peakBytes = 0
	p.dropped = 0
	return nil
}

// IsRunning reports whether events are being accepted.
func (p *HeapProfiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Name returns "heap".
func (p *HeapProfiler) Name() string {
	return NameHeap
}

// RecordAllocation tracks a new block at address. While the profiler is
// stopped the event is ignored. When the ledger is full the event is
// counted as dropped. An allocation at an address already tracked
// replaces the previous record, freeing its bytes first.
func (p *HeapProfiler) RecordAllocation(address, size uint64, typ AllocationType) {
	switch typ {
	case AllocMalloc, AllocCalloc, AllocRealloc, AllocNew, AllocNewArray:
	default:
		typ = AllocOther
	}

	var stack []Frame
	if p.cfg.CollectStacks {
		stack = captureStack(1, p.cfg.MaxStackDepth)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	if prev, ok := p.active[address]; ok {
		p.releaseLocked(prev)
	} else if len(p.active) >= maxAllocationRecords {
		p.dropped++
		return
	}

	at := p.now()
	rec := &allocation{
		Address:   address,
		Size:      size,
		Type:      typ,
		Stack:     stack,
		Timestamp: metrics.EpochMillis(at),
		at:        at,
	}
	p.active[address] = rec
	p.totalAllocs++
	p.currentBytes += size
	if p.currentBytes > p.peakBytes {
		p.peakBytes = p.currentBytes
	}
	p.byType[typ]++
	p.classes[sizeClass(size)]++

	key := stackKey(stack)
	st, ok := p.sites[key]
	if !ok {
		st = &siteStats{stack: stack}
		p.sites[key] = st
	}
	st.count++
	st.totalBytes += size
}

// RecordDeallocation releases the block at address. Unknown addresses are
// ignored silently; counters only move when a tracked block is released.
func (p *HeapProfiler) RecordDeallocation(address uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	rec, ok := p.active[address]
	if !ok {
		return
	}
	p.releaseLocked(rec)
}

// releaseLocked removes rec from the ledger and credits its bytes back.
func (p *HeapProfiler) releaseLocked(rec *allocation) {
	delete(p.active, rec.Address)
	p.totalFrees++
	if rec.Size > p.currentBytes {
		p.currentBytes = 0
	} else {
		p.currentBytes -= rec.Size
	}
}

// DetectMemoryLeaks flags active allocations older than the leak
// threshold, oldest first. Confidence grows linearly with age and
// saturates at ten times the threshold.
func (p *HeapProfiler) DetectMemoryLeaks() []LeakCandidate {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	leaks := []LeakCandidate{}
	for _, rec := range p.active {
		age := now.Sub(rec.at)
		if age <= p.leakThreshold {
			continue
		}
		conf := float64(age) / float64(p.leakThreshold*10)
		if conf > 1.0 {
			conf = 1.0
		}
		leaks = append(leaks, LeakCandidate{
			Address:    rec.Address,
			Size:       rec.Size,
			Type:       rec.Type,
			Stack:      rec.Stack,
			AgeMs:      metrics.ToMillis(age),
			Confidence: conf,
		})
	}
	sort.Slice(leaks, func(i, j int) bool {
		if leaks[i].AgeMs != leaks[j].AgeMs {
			return leaks[i].AgeMs > leaks[j].AgeMs
		}
		return leaks[i].Address < leaks[j].Address
	})
	return leaks
}

// ActiveCount returns the number of tracked blocks.
func (p *HeapProfiler) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// CurrentBytes returns the byte total of tracked blocks.
func (p *HeapProfiler) CurrentBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentBytes
}

// Results aggregates the ledger, including the current leak candidates.
func (p *HeapProfiler) Results() any {
	leaks := p.DetectMemoryLeaks()

	p.mu.Lock()
	defer p.mu.Unlock()

	res := HeapProfileResult{
		SessionID:          p.sessionID,
		TotalAllocations:   p.totalAllocs,
		TotalFrees:         p.totalFrees,
		DroppedAllocations: p.dropped,
		ActiveCount:        len(p.active),
		CurrentBytes:       p.currentBytes,
		PeakBytes:          p.peakBytes,
		ByType:             make(map[string]uint64, len(p.byType)),
		SizeClasses:        make(map[string]uint64, len(sizeClassLabels)),
		TopSites:           []AllocationSite{},
		Leaks:              leaks,
	}
	for t, c := range p.byType {
		res.ByType[string(t)] = c
	}
	for _, label := range sizeClassLabels {
		if c := p.classes[label]; c > 0 {
			res.SizeClasses[label] = c
		}
	}

	sites := make([]AllocationSite, 0, len(p.sites))
	for key, st := range p.sites {
		sites = append(sites, AllocationSite{
			Key:        key,
			Count:      st.count,
			TotalBytes: st.totalBytes,
			Stack:      st.stack,
		})
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].TotalBytes != sites[j].TotalBytes {
			return sites[i].TotalBytes > sites[j].TotalBytes
		}
		return sites[i].Key < sites[j].Key
	})
	if len(sites) > topSiteLimit {
		sites = sites[:topSiteLimit]
	}
	res.TopSites = sites
	return res
}

// sizeClass maps a block size to its histogram bucket label.
func sizeClass(size uint64) string {
	switch {
	case size < 1<<10:
		return sizeClassLabels[0]
	case size < 10<<10:
		return sizeClassLabels[1]
	case size < 100<<10:
		return sizeClassLabels[2]
	case size < 1<<20:
		return sizeClassLabels[3]
	default:
		return sizeClassLabels[4]
	}
}
