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

// Window is a bounded, chronological sequence of per-second samples.
// When the window is full, pushing a new sample discards the oldest one.
// Window is not safe for concurrent use; callers hold their own lock.
type Window struct {
	samples  []float64
	capacity int
	head     int // index of the oldest sample
	size     int
}

// NewWindow creates a window holding at most capacity samples.
// A capacity below 1 is coerced to 1; an unbounded window is a
// configuration error.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		samples:  make([]float64, capacity),
		capacity: capacity,
	}
}

// NewPeriodWindow creates a window sized for one sample per second of p.
func NewPeriodWindow(p Period) *Window {
	return NewWindow(p.Seconds())
}

// Push appends a sample, evicting the oldest when the window is full.
func (w *Window) Push(v float64) {
	if w.size < w.capacity {
		w.samples[(w.head+w.size)%w.capacity] = v
		w.size++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	w.samples[w.head] = v
	w.head = (w.head + 1) % w.capacity
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.size
}

// Capacity returns the maximum number of samples the window holds.
func (w *Window) Capacity() int {
	return w.capacity
}

// Mean returns the arithmetic mean of the held samples, or 0 when empty.
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.size; i++ {
		sum += w.samples[(w.head+i)%w.capacity]
	}
	return sum / float64(w.size)
}

// Min returns the smallest held sample, or 0 when empty.
func (w *Window) Min() float64 {
	if w.size == 0 {
		return 0
	}
	min := w.samples[w.head]
	for i := 1; i < w.size; i++ {
		if v := w.samples[(w.head+i)%w.capacity]; v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest held sample, or 0 when empty.
func (w *Window) Max() float64 {
	if w.size == 0 {
		return 0
	}
	max := w.samples[w.head]
	for i := 1; i < w.size; i++ {
		if v := w.samples[(w.head+i)%w.capacity]; v > max {
			max = v
		}
	}
	return max
}

// Percentile returns the p-th percentile (0 < p <= 100) of the held
// samples. It sorts a copy on demand; callers must not assume O(1).
func (w *Window) Percentile(p float64) float64 {
	return Percentile(w.Values(), p)
}

// Values returns the held samples in chronological order (oldest first).
func (w *Window) Values() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.samples[(w.head+i)%w.capacity]
	}
	return out
}

// Reset discards all held samples.
func (w *Window) Reset() {
	w.head = 0
	w.size = 0
}
