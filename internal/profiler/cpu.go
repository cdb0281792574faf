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

// Default sampling tunables.
const (
	DefaultSamplingInterval = 10 * time.Millisecond
	DefaultMaxSamples       = 1000
	DefaultMaxStackDepth    = 32
)

// Config carries the tunables shared by the sampling profilers. Runtime
// changes require stop-reset-reconfigure-start.
type Config struct {
	SamplingInterval time.Duration
	MaxSamples       int
	MaxStackDepth    int
	CollectStacks    bool
}

// DefaultConfig returns the default tunables with stack capture enabled.
func DefaultConfig() Config {
	return Config{
		SamplingInterval: DefaultSamplingInterval,
		MaxSamples:       DefaultMaxSamples,
		MaxStackDepth:    DefaultMaxStackDepth,
		CollectStacks:    true,
	}
}

// normalize coerces out-of-range fields to their defaults.
func (c Config) normalize() Config {
	if c.SamplingInterval <= 0 {
		c.SamplingInterval = DefaultSamplingInterval
	}
	if c.MaxSamples <= 0 {
		c.MaxSamples = DefaultMaxSamples
	}
	if c.MaxStackDepth <= 0 {
		c.MaxStackDepth = DefaultMaxStackDepth
	}
	return c
}

// CPUSample is one capture of the sampling worker.
type CPUSample struct {
	Stack       []Frame `json:"stack,omitempty"`
	CPUPercent  float64 `json:"cpu_percent"`
	RSS         uint64  `json:"rss"`
	HeapUsed    uint64  `json:"heap_used"`
	GoroutineID uint64  `json:"goroutine_id"`
	Timestamp   int64   `json:"timestamp"` // ms since epoch
}

// HotFunction is one entry of the hot-function top list.
type HotFunction struct {
	Function string  `json:"function"`
	Count    uint64  `json:"count"`
	Percent  float64 `json:"percent"`
}

// CPUProfileResult is the aggregated payload returned by Results.
type CPUProfileResult struct {
	SessionID         string            `json:"session_id"`
	TotalSamples      int               `json:"total_samples"`
	DroppedSamples    uint64            `json:"dropped_samples"`
	DurationMs        float64           `json:"duration_ms"`
	AvgCPUUsage       float64           `json:"avg_cpu_usage"`
	PeakCPUUsage      float64           `json:"peak_cpu_usage"`
	FunctionFrequency map[string]uint64 `json:"function_frequency"`
	HotFunctions      []HotFunction     `json:"hot_functions"`
}

// hotFunctionLimit bounds the top list in the result payload.
const hotFunctionLimit = 10

// CPUProfiler runs a background worker that wakes at the sampling
// interval, captures the current call stack with CPU and memory context,
// and pushes into a bounded sample buffer. When the buffer is full, new
// samples are dropped rather than replacing older ones.
type CPUProfiler struct {
	mu      sync.Mutex
	running bool

	cfg       Config
	sessionID string
	samples   []CPUSample
	dropped   uint64

	startedAt time.Time
	stoppedAt time.Time

	prevCPU platform.CPUTime
	hasPrev bool

	exit chan struct{}
	wg   sync.WaitGroup

	// cpuTime is replaced in tests.
	cpuTime func() (platform.CPUTime, error)
	logger  *slog.Logger
}

// NewCPUProfiler creates a stopped CPU profiler.
func NewCPUProfiler(cfg Config, logger *slog.Logger) *CPUProfiler {
	return &CPUProfiler{
		cfg:     cfg.normalize(),
		cpuTime: platform.ProcessCPUTime,
		logger:  logger,
	}
}

// Start spawns the sampling worker. A second Start fails with
// ErrAlreadyRunning.
func (p *CPUProfiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.sessionID = uuid.NewString()
	p.startedAt = platform.NowMono()
	p.stoppedAt = time.Time{}
	p.hasPrev = false
	p.exit = make(chan struct{})

	p.wg.Add(1)
	go p.run(p.exit)

	p.logger.Info("CPU profiler started",
		"session", p.sessionID,
		"interval", p.cfg.SamplingInterval,
		"max_samples", p.cfg.MaxSamples,
	)
	return nil
}

// Stop signals the worker to exit and joins it. Fails with ErrNotRunning
// when the profiler was not started. The join is bounded by one sampling
// interval.
func (p *CPUProfiler) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	p.stoppedAt = platform.NowMono()
	close(p.exit)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("CPU profiler stopped", "samples", p.SampleCount())
	return nil
}

// Reset stops the worker if running, then clears all captured samples.
func (p *CPUProfiler) Reset() error {
	if err := p.Stop(); err != nil && err != ErrNotRunning {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = nil
	p.dropped = 0
	p.sessionID = ""
	p.startedAt = time.Time{}
	p.stoppedAt = time.Time{}
	p.hasPrev = false
	return nil
}

// IsRunning reports whether the worker is active.
func (p *CPUProfiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Name returns "cpu".
func (p *CPUProfiler) Name() string {
	return NameCPU
}

// SampleCount returns the number of buffered samples.
func (p *CPUProfiler) SampleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

// Results aggregates the sample buffer into the hot-function payload.
func (p *CPUProfiler) Results() any {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := CPUProfileResult{
		SessionID:         p.sessionID,
		TotalSamples:      len(p.samples),
		DroppedSamples:    p.dropped,
		FunctionFrequency: make(map[string]uint64),
		HotFunctions:      []HotFunction{},
	}

	switch {
	case p.startedAt.IsZero():
		// Never started; everything stays zero.
	case p.stoppedAt.IsZero():
		res.DurationMs = metrics.ToMillis(platform.NowMono().Sub(p.startedAt))
	default:
		res.DurationMs = metrics.ToMillis(p.stoppedAt.Sub(p.startedAt))
	}

	var sum float64
	for _, s := range p.samples {
		sum += s.CPUPercent
		if s.CPUPercent > res.PeakCPUUsage {
			res.PeakCPUUsage = s.CPUPercent
		}
		for _, f := range s.Stack {
			res.FunctionFrequency[f.Function]++
		}
	}
	if len(p.samples) > 0 {
		res.AvgCPUUsage = sum / float64(len(p.samples))
	}

	res.HotFunctions = topFunctions(res.FunctionFrequency, hotFunctionLimit)
	return res
}

// run is the sampling worker. It polls the exit channel every wake-up, so
// the worst-case stop latency is one sampling interval.
func (p *CPUProfiler) run(exit chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-exit:
			return
		case <-ticker.C:
			p.collectSample()
		}
	}
}

// collectSample captures one sample and pushes it into the buffer.
func (p *CPUProfiler) collectSample() {
	var stack []Frame
	if p.cfg.CollectStacks {
		stack = captureStack(1, p.cfg.MaxStackDepth)
	}
	mem := platform.ProcessMemory()
	gid := platform.GoroutineID()

	ct, err := p.cpuTime()

	p.mu.Lock()
	defer p.mu.Unlock()

	var pct float64
	if err == nil {
		if p.hasPrev {
			pct = metrics.CalculateCPUPercent(p.prevCPU.Total(), ct.Total(), ct.WallNs-p.prevCPU.WallNs)
		}
		p.prevCPU = ct
		p.hasPrev = true
	}

	if len(p.samples) >= p.cfg.MaxSamples {
		p.dropped++
		return
	}
	p.samples = append(p.samples, CPUSample{
		Stack:       stack,
		CPUPercent:  pct,
		RSS:         mem.RSS,
		HeapUsed:    mem.HeapUsed,
		GoroutineID: gid,
		Timestamp:   metrics.EpochMillis(platform.NowWall()),
	})
}

// topFunctions returns the limit most frequent functions, ties broken by
// name for a stable payload.
func topFunctions(freq map[string]uint64, limit int) []HotFunction {
	var total uint64
	for _, c := range freq {
		total += c
	}

	out := make([]HotFunction, 0, len(freq))
	for fn, c := range freq {
		hf := HotFunction{Function: fn, Count: c}
		if total > 0 {
			hf.Percent = float64(c) / float64(total) * 100.0
		}
		out = append(out, hf)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Function < out[j].Function
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
