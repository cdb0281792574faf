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

// Package monitor implements the five telemetry monitors: CPU, memory,
// garbage collection, event loop, and HTTP traffic.
//
// Monitors share one lifecycle discipline: Start and Stop are idempotent,
// Reset may be called in any state and clears accumulated samples without
// changing the lifecycle, Update ingests one sampling tick, and stats reads
// aggregate lazily under the monitor's lock. Ingest methods never propagate
// errors to callers; they absorb faults and record zero samples instead.
package monitor

import (
	"errors"
	"fmt"
)

// Module names, used as registry keys and in error messages.
const (
	ModuleCPU       = "cpu"
	ModuleMemory    = "memory"
	ModuleGC        = "gc"
	ModuleEventLoop = "eventloop"
	ModuleHTTP      = "http"
)

// Monitor is the contract every monitor honors.
//
// Calling Start while running and Stop while stopped both return nil;
// profilers are the components with strict start/stop pairing, not monitors.
type Monitor interface {
	Start() error
	Stop() error
	Update() error
	Reset() error
	IsRunning() bool
	ModuleName() string
}

// ErrLockFailed is the error kind for an unusable internal lock. It is
// unreachable under a panic-free build and exists so callers can treat the
// condition as a transient fault if it ever surfaces.
var ErrLockFailed = errors.New("monitor lock failed")

// Error names the module and resource a monitor operation failed on.
type Error struct {
	Module   string
	Resource string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("monitor %s: %s: %v", e.Module, e.Resource, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Any holds exactly one monitor of the statically known set. The registry
// stores Any values so callers can reach the concrete type for ingest
// methods while still getting the common interface from Monitor().
type Any struct {
	CPU       *CPUMonitor
	Memory    *MemoryMonitor
	GC        *GCMonitor
	EventLoop *EventLoopMonitor
	HTTP      *HTTPMonitor
}

// Monitor returns the held monitor as the common interface.
// Returns nil when the holder is empty.
func (a Any) Monitor() Monitor {
	switch {
	case a.CPU != nil:
		return a.CPU
	case a.Memory != nil:
		return a.Memory
	case a.GC != nil:
		return a.GC
	case a.EventLoop != nil:
		return a.EventLoop
	case a.HTTP != nil:
		return a.HTTP
	default:
		return nil
	}
}

// StatsPayload returns the held monitor's stats as a marshalable value.
func (a Any) StatsPayload() (any, error) {
	switch {
	case a.CPU != nil:
		return a.CPU.Stats(), nil
	case a.Memory != nil:
		return a.Memory.Stats(), nil
	case a.GC != nil:
		return a.GC.Stats(), nil
	case a.EventLoop != nil:
		return a.EventLoop.Stats(), nil
	case a.HTTP != nil:
		return a.HTTP.Stats(), nil
	default:
		return nil, errors.New("empty monitor holder")
	}
}
