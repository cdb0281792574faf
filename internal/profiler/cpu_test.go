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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCPUProfilerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewCPUProfiler(DefaultConfig(), testLogger())
	require.False(t, p.IsRunning())

	require.NoError(t, p.Start())
	require.True(t, p.IsRunning())
	assert.ErrorIs(t, p.Start(), ErrAlreadyRunning)

	require.NoError(t, p.Stop())
	require.False(t, p.IsRunning())
	assert.ErrorIs(t, p.Stop(), ErrNotRunning)
}

func TestCPUProfilerCollectsSamples(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.SamplingInterval = time.Millisecond
	p := NewCPUProfiler(cfg, testLogger())

	require.NoError(t, p.Start())
	deadline := time.Now().Add(2 * time.Second)
	for p.SampleCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, p.Stop())

	require.GreaterOrEqual(t, p.SampleCount(), 5)

	res, ok := p.Results().(CPUProfileResult)
	require.True(t, ok)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, p.SampleCount(), res.TotalSamples)
	assert.Greater(t, res.DurationMs, 0.0)
	assert.NotEmpty(t, res.FunctionFrequency)
	assert.NotEmpty(t, res.HotFunctions)
	assert.LessOrEqual(t, len(res.HotFunctions), hotFunctionLimit)
}

func TestCPUProfilerDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.SamplingInterval = time.Millisecond
	cfg.MaxSamples = 3
	cfg.CollectStacks = false
	p := NewCPUProfiler(cfg, testLogger())

	require.NoError(t, p.Start())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		full := p.dropped > 0
		p.mu.Unlock()
		if full {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, p.Stop())

	assert.Equal(t, 3, p.SampleCount())
	res := p.Results().(CPUProfileResult)
	assert.Greater(t, res.DroppedSamples, uint64(0))
}

func TestCPUProfilerReset(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.SamplingInterval = time.Millisecond
	p := NewCPUProfiler(cfg, testLogger())

	require.NoError(t, p.Start())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Reset())

	require.False(t, p.IsRunning())
	assert.Equal(t, 0, p.SampleCount())

	res := p.Results().(CPUProfileResult)
	assert.Empty(t, res.SessionID)
	assert.Zero(t, res.TotalSamples)
	assert.Zero(t, res.DurationMs)

	// A fresh session after Reset is legal.
	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())
}

func TestTopFunctions(t *testing.T) {
	freq := map[string]uint64{"a": 5, "b": 3, "c": 3, "d": 1}

	top := topFunctions(freq, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "a", top[0].Function)
	assert.Equal(t, uint64(5), top[0].Count)
	// Ties break by name.
	assert.Equal(t, "b", top[1].Function)
	assert.Equal(t, "c", top[2].Function)
	assert.InDelta(t, 5.0/12.0*100.0, top[0].Percent, 1e-9)
}

func TestCaptureStackDepth(t *testing.T) {
	stack := captureStack(0, 2)
	require.NotEmpty(t, stack)
	assert.LessOrEqual(t, len(stack), 2)
	for _, f := range stack {
		assert.NotEmpty(t, f.Function)
	}
}
