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

// Package metrics provides the shared time-window vocabulary and the pure
// statistical helpers used by every monitor and profiler.
package metrics

import "time"

// Period identifies one of the fixed rolling-window lengths.
// Every rolling statistic in the engine is indexed by this closed set.
type Period int

// The supported rolling-window lengths.
const (
	Period15s Period = iota
	Period30s
	Period1m
	Period3m
	Period5m
	Period10m
)

// periodSeconds maps each period to its length in seconds.
var periodSeconds = [...]int{15, 30, 60, 180, 300, 600}

// periodNames maps each period to its canonical label.
var periodNames = [...]string{"15s", "30s", "1m", "3m", "5m", "10m"}

// Seconds returns the window length in whole seconds.
func (p Period) Seconds() int {
	if p < Period15s || p > Period10m {
		return 0
	}
	return periodSeconds[p]
}

// Duration returns the window length as a time.Duration.
func (p Period) Duration() time.Duration {
	return time.Duration(p.Seconds()) * time.Second
}

// String returns the canonical label (e.g., "15s", "10m").
func (p Period) String() string {
	if p < Period15s || p > Period10m {
		return "invalid"
	}
	return periodNames[p]
}

// AllPeriods returns every supported period, shortest first.
func AllPeriods() []Period {
	return []Period{Period15s, Period30s, Period1m, Period3m, Period5m, Period10m}
}

// LongPeriods returns the five longer periods (30s and up).
// Slow-moving gauges such as resident-set size use this subset.
func LongPeriods() []Period {
	return []Period{Period30s, Period1m, Period3m, Period5m, Period10m}
}

// ToMillis converts a duration to floating-point milliseconds for reporting.
func ToMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// EpochMillis converts a wall-clock time to milliseconds since epoch.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
