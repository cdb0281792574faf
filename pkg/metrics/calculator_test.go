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

package metrics

import (
	"math"
	"testing"
	"time"
)

func TestCalculateCPUPercent(t *testing.T) {
	tests := []struct {
		name      string
		prevCPU   uint64
		curCPU    uint64
		deltaWall int64
		want      float64
	}{
		{
			name:      "half busy",
			prevCPU:   0,
			curCPU:    uint64(500 * time.Millisecond),
			deltaWall: int64(time.Second),
			want:      50.0,
		},
		{
			name:      "fully busy",
			prevCPU:   0,
			curCPU:    uint64(time.Second),
			deltaWall: int64(time.Second),
			want:      100.0,
		},
		{
			name:      "over 100 is clamped",
			prevCPU:   0,
			curCPU:    uint64(4 * time.Second),
			deltaWall: int64(time.Second),
			want:      100.0,
		},
		{
			name:      "zero wall delta",
			prevCPU:   0,
			curCPU:    uint64(time.Second),
			deltaWall: 0,
			want:      0.0,
		},
		{
			name:      "cpu counter went backwards",
			prevCPU:   uint64(2 * time.Second),
			curCPU:    uint64(time.Second),
			deltaWall: int64(time.Second),
			want:      0.0,
		},
		{
			name:      "idle interval",
			prevCPU:   uint64(time.Second),
			curCPU:    uint64(time.Second),
			deltaWall: int64(time.Second),
			want:      0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCPUPercent(tt.prevCPU, tt.curCPU, tt.deltaWall)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateCPUPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{150, 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampPercent(tt.in); got != tt.want {
			t.Errorf("ClampPercent(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPercentile(t *testing.T) {
	// 1..100 as floats: nearest-rank P95 = 95, P99 = 99.
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	tests := []struct {
		p    float64
		want float64
	}{
		{50, 50},
		{95, 95},
		{99, 99},
		{100, 100},
		{0, 1},
	}
	for _, tt := range tests {
		if got := Percentile(values, tt.p); got != tt.want {
			t.Errorf("Percentile(values, %v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := Percentile(nil, 95); got != 0 {
		t.Errorf("Percentile(nil, 95) = %v, want 0", got)
	}

	// The input must not be reordered.
	in := []float64{3, 1, 2}
	Percentile(in, 50)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("Percentile modified its input: %v", in)
	}
}

func TestMeanAndMinMax(t *testing.T) {
	values := []float64{4, 2, 8, 6}
	if got := Mean(values); got != 5 {
		t.Errorf("Mean() = %v, want 5", got)
	}
	min, max := MinMax(values)
	if min != 2 || max != 8 {
		t.Errorf("MinMax() = (%v, %v), want (2, 8)", min, max)
	}

	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	min, max = MinMax(nil)
	if min != 0 || max != 0 {
		t.Errorf("MinMax(nil) = (%v, %v), want (0, 0)", min, max)
	}
}

func TestPeriods(t *testing.T) {
	wantSeconds := map[Period]int{
		Period15s: 15,
		Period30s: 30,
		Period1m:  60,
		Period3m:  180,
		Period5m:  300,
		Period10m: 600,
	}
	for p, want := range wantSeconds {
		if got := p.Seconds(); got != want {
			t.Errorf("%v.Seconds() = %d, want %d", p, got, want)
		}
	}
	if len(AllPeriods()) != 6 {
		t.Errorf("AllPeriods() length = %d, want 6", len(AllPeriods()))
	}
	if len(LongPeriods()) != 5 {
		t.Errorf("LongPeriods() length = %d, want 5", len(LongPeriods()))
	}
	if Period15s.String() != "15s" || Period10m.String() != "10m" {
		t.Errorf("Period labels = %q, %q; want 15s, 10m", Period15s.String(), Period10m.String())
	}
}
