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

func TestEventLoopHandleRegistration(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()

	// Register 3 timers and 2 TCP handles, all active; unregister one timer.
	var timerIDs []uint64
	for i := 0; i < 3; i++ {
		timerIDs = append(timerIDs, m.RegisterHandle(HandleTimer, true, true))
	}
	for i := 0; i < 2; i++ {
		m.RegisterHandle(HandleTCP, true, true)
	}
	m.UnregisterHandle(timerIDs[0])

	stats := m.Stats()
	if stats.TotalHandles != 4 {
		t.Errorf("TotalHandles = %d, want 4", stats.TotalHandles)
	}
	if stats.HandleCounts[string(HandleTimer)] != 2 || stats.HandleCounts[string(HandleTCP)] != 2 {
		t.Errorf("HandleCounts = %v, want timer:2 tcp:2", stats.HandleCounts)
	}
	if stats.ActiveHandles != 4 {
		t.Errorf("ActiveHandles = %d, want 4", stats.ActiveHandles)
	}
	if stats.ActiveCounts[string(HandleTimer)] != 2 || stats.ActiveCounts[string(HandleTCP)] != 2 {
		t.Errorf("ActiveCounts = %v, want timer:2 tcp:2", stats.ActiveCounts)
	}
}

func TestEventLoopHandleIDsNeverReused(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()

	first := m.RegisterHandle(HandleTimer, true, true)
	m.UnregisterHandle(first)
	second := m.RegisterHandle(HandleTimer, true, true)
	if second == first {
		t.Errorf("handle id %d reused", first)
	}

	// Reset does not rewind the id counter either.
	_ = m.Reset()
	third := m.RegisterHandle(HandleTimer, true, true)
	if third <= second {
		t.Errorf("id after Reset = %d, want > %d", third, second)
	}
}

func TestEventLoopStatusUpdate(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()

	id := m.RegisterHandle(HandleUDP, true, true)
	m.UpdateHandleStatus(id, false, false)

	stats := m.Stats()
	if stats.ActiveHandles != 0 {
		t.Errorf("ActiveHandles = %d, want 0 after deactivation", stats.ActiveHandles)
	}

	// Unknown id: no-op, but noted in the activity log.
	before := len(stats.Activity)
	m.UpdateHandleStatus(9999, true, true)
	after := m.Stats().Activity
	if len(after) != before+1 {
		t.Errorf("activity length = %d, want %d", len(after), before+1)
	}
	if after[len(after)-1].Action != "drop" {
		t.Errorf("last activity action = %q, want drop", after[len(after)-1].Action)
	}
}

func TestEventLoopIterationRollup(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()

	// Before any iteration, min projects to 0 on read.
	if got := m.Stats().MinLoopMs; got != 0 {
		t.Errorf("MinLoopMs before first iteration = %v, want 0", got)
	}

	iterations := []time.Duration{10 * time.Millisecond, 2 * time.Millisecond, 30 * time.Millisecond}
	for _, d := range iterations {
		m.RecordLoopIteration(d, d/2, d/10, d/10, d/5)
	}

	stats := m.Stats()
	if stats.LoopCount != 3 {
		t.Errorf("LoopCount = %d, want 3", stats.LoopCount)
	}
	if math.Abs(stats.TotalLoopMs-42.0) > 1e-9 {
		t.Errorf("TotalLoopMs = %v, want 42", stats.TotalLoopMs)
	}
	if math.Abs(stats.AvgLoopMs-14.0) > 1e-9 {
		t.Errorf("AvgLoopMs = %v, want 14", stats.AvgLoopMs)
	}
	if math.Abs(stats.MinLoopMs-2.0) > 1e-9 {
		t.Errorf("MinLoopMs = %v, want 2", stats.MinLoopMs)
	}
	if math.Abs(stats.MaxLoopMs-30.0) > 1e-9 {
		t.Errorf("MaxLoopMs = %v, want 30", stats.MaxLoopMs)
	}
}

func TestEventLoopZeroIteration(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()

	m.RecordLoopIteration(0, 0, 0, 0, 0)
	stats := m.Stats()
	if stats.LoopCount != 1 {
		t.Errorf("LoopCount = %d, want 1", stats.LoopCount)
	}
	if stats.MinLoopMs != 0 || stats.MaxLoopMs != 0 || stats.AvgLoopMs != 0 {
		t.Errorf("loop metrics = (%v, %v, %v), want all 0",
			stats.MinLoopMs, stats.MaxLoopMs, stats.AvgLoopMs)
	}
}

func TestEventLoopActivityBound(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()
	for i := 0; i < maxLoopActivity+20; i++ {
		m.RegisterHandle(HandleAsync, false, false)
	}
	if got := len(m.Stats().Activity); got != maxLoopActivity {
		t.Errorf("activity length = %d, want %d", got, maxLoopActivity)
	}
}

func TestEventLoopReset(t *testing.T) {
	m := NewEventLoopMonitor(testLogger())
	_ = m.Start()
	m.RegisterHandle(HandleTimer, true, true)
	m.RecordLoopIteration(time.Millisecond, 0, 0, 0, 0)

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	stats := m.Stats()
	if stats.TotalHandles != 0 || stats.LoopCount != 0 || stats.TotalLoopMs != 0 ||
		stats.MinLoopMs != 0 || stats.MaxLoopMs != 0 || len(stats.Activity) != 0 {
		t.Errorf("stats after Reset = %+v, want zeroes", stats)
	}
}
