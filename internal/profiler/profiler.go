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

// Package profiler implements the three on-demand profilers: CPU sampling,
// heap allocation tracking, and GC event profiling.
//
// Unlike monitors, profilers own worker goroutines, so start/stop pairing
// is strict: a second Start fails with ErrAlreadyRunning and Stop without a
// prior Start fails with ErrNotRunning. Workers exit through a shared
// exit-channel pattern; Stop joins the worker and is bounded by one
// sampling interval plus one lock acquisition.
package profiler

import "errors"

// Profiler names, used as registry keys.
const (
	NameCPU  = "cpu"
	NameHeap = "heap"
	NameGC   = "gc"
)

// Start/stop contract violations.
var (
	ErrAlreadyRunning = errors.New("profiler already running")
	ErrNotRunning     = errors.New("profiler not running")
)

// Profiler is the contract every profiler honors. Results returns a
// marshalable payload; its concrete shape is profiler-specific.
type Profiler interface {
	Start() error
	Stop() error
	Reset() error
	IsRunning() bool
	Name() string
	Results() any
}
