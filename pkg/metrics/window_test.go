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
)

func TestWindowBounds(t *testing.T) {
	w := NewPeriodWindow(Period15s)
	if w.Capacity() != 15 {
		t.Fatalf("Capacity() = %d, want 15", w.Capacity())
	}

	// Push 30 samples: 0, 10, 20, ..., 290.
	for i := 0; i < 30; i++ {
		w.Push(float64(i * 10))
	}

	if w.Len() != 15 {
		t.Errorf("Len() = %d, want 15", w.Len())
	}

	// Only the last 15 samples (150..290) survive.
	wantMean := 0.0
	for i := 15; i < 30; i++ {
		wantMean += float64(i * 10)
	}
	wantMean /= 15

	if got := w.Mean(); math.Abs(got-wantMean) > 1e-9 {
		t.Errorf("Mean() = %v, want %v", got, wantMean)
	}
	if got := w.Min(); got != 150 {
		t.Errorf("Min() = %v, want 150", got)
	}
	if got := w.Max(); got != 290 {
		t.Errorf("Max() = %v, want 290", got)
	}
}

func TestWindowChronologicalOrder(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}

	got := w.Values()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(10)
	if w.Mean() != 0 || w.Min() != 0 || w.Max() != 0 {
		t.Errorf("empty window stats = (%v, %v, %v), want all 0", w.Mean(), w.Min(), w.Max())
	}
	if w.Percentile(95) != 0 {
		t.Errorf("empty window Percentile(95) = %v, want 0", w.Percentile(95))
	}
	if len(w.Values()) != 0 {
		t.Errorf("empty window Values() length = %d, want 0", len(w.Values()))
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(5)
	for i := 0; i < 5; i++ {
		w.Push(float64(i))
	}
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", w.Len())
	}
	w.Push(42)
	if got := w.Mean(); got != 42 {
		t.Errorf("Mean() after Reset+Push = %v, want 42", got)
	}
}

func TestWindowMinCapacity(t *testing.T) {
	w := NewWindow(0)
	w.Push(1)
	w.Push(2)
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (capacity coerced to 1)", w.Len())
	}
	if w.Mean() != 2 {
		t.Errorf("Mean() = %v, want 2", w.Mean())
	}
}
