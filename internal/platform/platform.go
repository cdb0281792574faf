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

// Package platform wraps the host queries the monitors depend on: clocks,
// process CPU time, memory counters, and cached machine introspection.
//
// Every query degrades gracefully: when the underlying syscall or runtime
// facility is missing, callers receive ErrUnavailable or a conservative
// default instead of a panic. Monitors report zero metrics rather than
// crashing the host process.
package platform

import (
	"errors"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrUnavailable reports that a platform query is not supported here.
// Callers substitute zero values and continue.
var ErrUnavailable = errors.New("platform query unavailable")

// Conservative defaults for introspection queries that return nonsense.
const (
	DefaultPageSize = 4096
	DefaultCPUCount = 1
)

// CPUTime is a (user, system, wall) triple, all in nanoseconds.
type CPUTime struct {
	UserNs   uint64
	SystemNs uint64
	WallNs   int64
}

// Total returns user + system nanoseconds.
func (t CPUTime) Total() uint64 {
	return t.UserNs + t.SystemNs
}

// MemorySnapshot holds the process memory counters the memory monitor
// reports. Byte counts are unsigned; HeapTotal >= HeapUsed.
type MemorySnapshot struct {
	RSS       uint64 // resident set size
	HeapTotal uint64 // bytes obtained from the OS for the heap
	HeapUsed  uint64 // bytes of live heap objects
	External  uint64 // non-heap runtime memory (stacks, metadata)
}

var (
	selfOnce sync.Once
	selfProc *process.Process

	pageOnce sync.Once
	pageSize int

	cpusOnce sync.Once
	cpuCount int
)

// self returns a cached handle to the current process, or nil when the
// process table cannot be read (restricted sandboxes).
func self() *process.Process {
	selfOnce.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err == nil {
			selfProc = p
		}
	})
	return selfProc
}

// NowWall returns the current wall-clock time. Used for reporting
// timestamps only; duration math uses NowMono.
func NowWall() time.Time {
	return time.Now()
}

// NowMono returns an instant carrying the runtime's monotonic reading,
// suitable for duration and window bookkeeping.
func NowMono() time.Time {
	return time.Now()
}

// ProcessCPUTime returns the accumulated (user, system) CPU time of this
// process plus the current wall clock, all in nanoseconds.
// Returns ErrUnavailable when the per-process accounting syscall is absent.
func ProcessCPUTime() (CPUTime, error) {
	p := self()
	if p == nil {
		return CPUTime{}, ErrUnavailable
	}
	times, err := p.Times()
	if err != nil {
		return CPUTime{}, ErrUnavailable
	}
	return CPUTime{
		UserNs:   uint64(times.User * float64(time.Second)),
		SystemNs: uint64(times.System * float64(time.Second)),
		WallNs:   time.Now().UnixNano(),
	}, nil
}

// ProcessMemory returns the current process memory counters.
//
// RSS comes from the OS process table and is 0 where procfs is not
// mounted (containers, sandboxes); callers report 0 without error.
// Heap counters come from the runtime and are always available.
func ProcessMemory() MemorySnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := MemorySnapshot{
		HeapTotal: ms.HeapSys,
		HeapUsed:  ms.HeapAlloc,
		External:  ms.Sys - ms.HeapSys,
	}

	if p := self(); p != nil {
		if info, err := p.MemoryInfo(); err == nil && info != nil {
			snap.RSS = info.RSS
		}
	}
	return snap
}

// PageSize returns the system page size, cached after the first read.
func PageSize() int {
	pageOnce.Do(func() {
		pageSize = os.Getpagesize()
		if pageSize <= 0 {
			pageSize = DefaultPageSize
		}
	})
	return pageSize
}

// CPUCount returns the number of logical CPUs, cached after the first read.
func CPUCount() int {
	cpusOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			n = runtime.NumCPU()
		}
		if n <= 0 {
			n = DefaultCPUCount
		}
		cpuCount = n
	})
	return cpuCount
}
