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

// Package registry holds the process-wide set of monitors and profilers
// behind named, initialize-once slots. Each slot is created at most once
// per initialization; a second initialization of an occupied slot returns
// the existing component unchanged.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/phuonguno98/procpulse/internal/config"
	"github.com/phuonguno98/procpulse/internal/monitor"
	"github.com/phuonguno98/procpulse/internal/profiler"
)

// Errors returned by slot accessors.
var (
	ErrNotInitialized = errors.New("registry: component not initialized")
	ErrUnknownModule  = errors.New("registry: unknown module")
)

// Registry owns the monitor and profiler slots. All access goes through
// its lock; the components themselves carry their own finer locks.
type Registry struct {
	mu sync.RWMutex

	monitors  map[string]monitor.Any
	profilers map[string]profiler.Profiler

	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		monitors:  make(map[string]monitor.Any),
		profilers: make(map[string]profiler.Profiler),
		logger:    logger,
	}
}

// InitializeAll fills every empty monitor and profiler slot from cfg.
// Occupied slots are left untouched, so calling it twice is safe and the
// first writer wins.
func (r *Registry) InitializeAll(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.monitors[monitor.ModuleCPU]; !ok {
		r.monitors[monitor.ModuleCPU] = monitor.Any{CPU: monitor.NewCPUMonitor(r.logger)}
	}
	if _, ok := r.monitors[monitor.ModuleMemory]; !ok {
		r.monitors[monitor.ModuleMemory] = monitor.Any{Memory: monitor.NewMemoryMonitor(r.logger)}
	}
	if _, ok := r.monitors[monitor.ModuleGC]; !ok {
		r.monitors[monitor.ModuleGC] = monitor.Any{GC: monitor.NewGCMonitor(r.logger)}
	}
	if _, ok := r.monitors[monitor.ModuleEventLoop]; !ok {
		r.monitors[monitor.ModuleEventLoop] = monitor.Any{EventLoop: monitor.NewEventLoopMonitor(r.logger)}
	}
	if _, ok := r.monitors[monitor.ModuleHTTP]; !ok {
		httpCfg := monitor.HTTPConfig{
			SlowThreshold:     cfg.SlowThreshold,
			VerySlowThreshold: cfg.VerySlowThreshold,
			MaxTransactions:   cfg.MaxTransactions,
			URLRules:          monitor.DefaultURLRules(),
		}
		r.monitors[monitor.ModuleHTTP] = monitor.Any{HTTP: monitor.NewHTTPMonitor(httpCfg, r.logger)}
	}

	profCfg := profiler.Config{
		SamplingInterval: cfg.SamplingInterval,
		MaxSamples:       cfg.MaxSamples,
		MaxStackDepth:    cfg.MaxStackDepth,
		CollectStacks:    cfg.CollectStacks,
	}
	if _, ok := r.profilers[profiler.NameCPU]; !ok {
		r.profilers[profiler.NameCPU] = profiler.NewCPUProfiler(profCfg, r.logger)
	}
	if _, ok := r.profilers[profiler.NameHeap]; !ok {
		r.profilers[profiler.NameHeap] = profiler.NewHeapProfiler(profCfg, cfg.HeapLeakThreshold, r.logger)
	}
	if _, ok := r.profilers[profiler.NameGC]; !ok {
		r.profilers[profiler.NameGC] = profiler.NewGCProfiler(cfg.GCIdleWatch, r.logger)
	}

	r.logger.Info("registry initialized",
		"monitors", len(r.monitors),
		"profilers", len(r.profilers),
	)
}

// Monitor returns the named monitor slot.
func (r *Registry) Monitor(name string) (monitor.Any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.monitors[name]
	if !ok {
		return monitor.Any{}, ErrNotInitialized
	}
	return m, nil
}

// Profiler returns the named profiler slot.
func (r *Registry) Profiler(name string) (profiler.Profiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profilers[name]
	if !ok {
		return nil, ErrNotInitialized
	}
	return p, nil
}

// WithMonitor runs fn with the named monitor while holding the registry
// read lock, so a concurrent Teardown cannot race the access.
func (r *Registry) WithMonitor(name string, fn func(monitor.Any) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.monitors[name]
	if !ok {
		return ErrNotInitialized
	}
	return fn(m)
}

// WithProfiler runs fn with the named profiler under the registry read
// lock.
func (r *Registry) WithProfiler(name string, fn func(profiler.Profiler) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profilers[name]
	if !ok {
		return ErrNotInitialized
	}
	return fn(p)
}

// StartMonitors starts every initialized monitor. The first error stops
// the walk.
func (r *Registry) StartMonitors() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, m := range r.monitors {
		if err := m.Monitor().Start(); err != nil {
			return &monitor.Error{Module: name, Resource: "start", Err: err}
		}
	}
	return nil
}

// StopMonitors stops every initialized monitor, continuing past errors
// and returning the first one seen.
func (r *Registry) StopMonitors() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var first error
	for name, m := range r.monitors {
		if err := m.Monitor().Stop(); err != nil && first == nil {
			first = &monitor.Error{Module: name, Resource: "stop", Err: err}
		}
	}
	return first
}

// UpdateMonitors drives one update tick on every running monitor.
func (r *Registry) UpdateMonitors() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, m := range r.monitors {
		if err := m.Monitor().Update(); err != nil {
			r.logger.Warn("monitor update failed", "module", name, "error", err)
		}
	}
}

// StopProfilers stops every running profiler.
func (r *Registry) StopProfilers() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.profilers {
		if err := p.Stop(); err != nil && !errors.Is(err, profiler.ErrNotRunning) {
			r.logger.Warn("profiler stop failed", "profiler", name, "error", err)
		}
	}
}

// Monitors returns the initialized monitor names, sorted.
func (r *Registry) Monitors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profilers returns the initialized profiler names, sorted.
func (r *Registry) Profilers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profilers))
	for name := range r.profilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Teardown stops everything and empties all slots. The registry stays
// usable: a later InitializeAll builds fresh components.
func (r *Registry) Teardown() {
	r.StopProfilers()
	if err := r.StopMonitors(); err != nil {
		r.logger.Warn("monitor stop during teardown failed", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors = make(map[string]monitor.Any)
	r.profilers = make(map[string]profiler.Profiler)
	r.logger.Info("registry torn down")
}
