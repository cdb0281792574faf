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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// gcCycle builds a minimal end-phase cycle event.
func gcCycle(gen string, d time.Duration, before, after uint64) GCCycleEvent {
	return GCCycleEvent{
		Generation: gen,
		Phase:      GCPhaseEnd,
		Duration:   d,
		HeapBefore: before,
		HeapAfter:  after,
	}
}

func TestGCProfilerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewGCProfiler(false, testLogger())
	require.False(t, p.IsRunning())

	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Start(), ErrAlreadyRunning)
	require.NoError(t, p.Stop())
	assert.ErrorIs(t, p.Stop(), ErrNotRunning)
}

func TestGCProfilerIdleWatcherStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewGCProfiler(true, testLogger())
	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())
}

func TestGCProfilerRecordCycle(t *testing.T) {
	p := NewGCProfiler(false, testLogger())
	require.NoError(t, p.Start())

	id1 := p.RecordCycle(gcCycle("young", 2*time.Millisecond, 10<<20, 6<<20))
	id2 := p.RecordCycle(gcCycle("young", 4*time.Millisecond, 12<<20, 8<<20))
	id3 := p.RecordCycle(gcCycle("old", 15*time.Millisecond, 50<<20, 20<<20))

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, uint64(3), id3)

	res, ok := p.Results().(GCProfileResult)
	require.True(t, ok)
	assert.Equal(t, uint64(3), res.TotalCycles)
	assert.InDelta(t, 21.0, res.TotalPauseMs, 1e-9)
	assert.InDelta(t, 15.0, res.LongestPauseMs, 1e-9)
	assert.InDelta(t, 2.0, res.ShortestPauseMs, 1e-9)
	assert.InDelta(t, 7.0, res.AvgPauseMs, 1e-9)

	young := res.ByGeneration["young"]
	assert.Equal(t, uint64(2), young.Count)
	assert.InDelta(t, 6.0, young.TotalTimeMs, 1e-9)
	assert.InDelta(t, 2.0, young.MinTimeMs, 1e-9)
	assert.InDelta(t, 4.0, young.MaxTimeMs, 1e-9)
	assert.InDelta(t, 3.0, young.AvgTimeMs, 1e-9)
	assert.Equal(t, uint64(8<<20), young.ReclaimedBytes)

	old := res.ByGeneration["old"]
	assert.Equal(t, uint64(1), old.Count)
	assert.Equal(t, uint64(30<<20), old.ReclaimedBytes)

	assert.Equal(t, uint64(2), res.PauseHistogram["1-10ms"])
	assert.Equal(t, uint64(1), res.PauseHistogram["10-100ms"])
	assert.Len(t, res.RecentCycles, 3)
}

func TestGCProfilerIgnoredWhileStopped(t *testing.T) {
	p := NewGCProfiler(false, testLogger())

	id := p.RecordCycle(gcCycle("young", time.Millisecond, 2<<20, 1<<20))
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, uint64(0), p.TotalCycles())
}

func TestGCProfilerCycleDetail(t *testing.T) {
	p := NewGCProfiler(false, testLogger())
	require.NoError(t, p.Start())

	ev := gcCycle("old", 3*time.Millisecond, 40<<20, 25<<20)
	ev.Phase = GCPhaseSweep
	ev.HeapSize = 64 << 20
	ev.Reason = "allocation pressure"
	ev.Metadata = map[string]string{"trigger": "threshold"}
	p.RecordCycle(ev)

	res := p.Results().(GCProfileResult)
	require.Len(t, res.RecentCycles, 1)
	c := res.RecentCycles[0]
	assert.Equal(t, GCPhaseSweep, c.Phase)
	assert.Equal(t, uint64(64<<20), c.HeapSize)
	assert.Equal(t, "allocation pressure", c.Reason)
	assert.Equal(t, map[string]string{"trigger": "threshold"}, c.Metadata)
	assert.NotZero(t, c.ThreadID)
}

func TestGCProfilerNegativeDurationClamped(t *testing.T) {
	p := NewGCProfiler(false, testLogger())
	require.NoError(t, p.Start())

	p.RecordCycle(gcCycle("young", -5*time.Millisecond, 1<<20, 2<<20))

	res := p.Results().(GCProfileResult)
	assert.Zero(t, res.TotalPauseMs)
	// Heap growing across the cycle reclaims nothing.
	assert.Equal(t, uint64(0), res.ByGeneration["young"].ReclaimedBytes)
	assert.Equal(t, uint64(1), res.PauseHistogram["0-1ms"])
}

func TestGCProfilerRecentRingBound(t *testing.T) {
	p := NewGCProfiler(false, testLogger())
	require.NoError(t, p.Start())

	for i := 0; i < maxRecentCycles+20; i++ {
		p.RecordCycle(gcCycle("young", time.Millisecond, 2<<20, 1<<20))
	}

	res := p.Results().(GCProfileResult)
	assert.Equal(t, uint64(maxRecentCycles+20), res.TotalCycles)
	require.Len(t, res.RecentCycles, maxRecentCycles)
	// Oldest entries fall off; the newest id is the last one assigned.
	assert.Equal(t, uint64(maxRecentCycles+20), res.RecentCycles[len(res.RecentCycles)-1].ID)
	assert.Equal(t, uint64(21), res.RecentCycles[0].ID)
}

func TestGCProfilerIDsSurviveReset(t *testing.T) {
	p := NewGCProfiler(false, testLogger())
	require.NoError(t, p.Start())

	id := p.RecordCycle(gcCycle("young", time.Millisecond, 2<<20, 1<<20))
	assert.Equal(t, uint64(1), id)

	require.NoError(t, p.Reset())
	require.False(t, p.IsRunning())
	assert.Equal(t, uint64(0), p.TotalCycles())

	require.NoError(t, p.Start())
	id = p.RecordCycle(gcCycle("young", time.Millisecond, 2<<20, 1<<20))
	assert.Equal(t, uint64(2), id)
}

func TestPauseClass(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0-1ms"},
		{999 * time.Microsecond, "0-1ms"},
		{time.Millisecond, "1-10ms"},
		{10 * time.Millisecond, "10-100ms"},
		{100 * time.Millisecond, "100ms-1s"},
		{time.Second, ">1s"},
		{3 * time.Second, ">1s"},
	}
	for _, tt := range tests {
		if got := pauseClass(tt.d); got != tt.want {
			t.Errorf("pauseClass(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
