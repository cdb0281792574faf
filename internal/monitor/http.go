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
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// HTTPRequest is the request half of a transaction as delivered by the
// host bridge.
type HTTPRequest struct {
	Method   string `json:"method"`
	URL      string `json:"url"`
	BodySize uint64 `json:"body_size"`
}

// HTTPResponse completes a transaction. StatusCode must be in [100, 599];
// responses outside that range are dropped at ingest.
type HTTPResponse struct {
	StatusCode int    `json:"status_code"`
	BodySize   uint64 `json:"body_size"`
}

// SlowRequest is one entry of the bounded slow-request set.
type SlowRequest struct {
	Method         string  `json:"method"`
	URL            string  `json:"url"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	StatusCode     int     `json:"status_code"`
	Timestamp      int64   `json:"timestamp"` // ms since epoch

	at time.Time // monotonic, for window membership and retention
}

// HTTPWindowStats aggregates the transactions of one rolling period.
type HTTPWindowStats struct {
	TotalRequests  uint64            `json:"total_requests"`
	TotalResponses uint64            `json:"total_responses"`
	MeanMs         float64           `json:"mean_ms"`
	MinMs          float64           `json:"min_ms"`
	MaxMs          float64           `json:"max_ms"`
	P95Ms          float64           `json:"p95_ms"`
	P99Ms          float64           `json:"p99_ms"`
	RequestsPerSec float64           `json:"requests_per_sec"`
	ErrorRatePct   float64           `json:"error_rate_pct"`
	StatusCodes    map[string]uint64 `json:"status_codes"`
	Methods        map[string]uint64 `json:"methods"`
	URLPatterns    map[string]uint64 `json:"url_patterns"`
	BytesSent      uint64            `json:"bytes_sent"`
	BytesReceived  uint64            `json:"bytes_received"`
	SlowCount      uint64            `json:"slow_count"`
	VerySlowCount  uint64            `json:"very_slow_count"`
	TopSlow        []SlowRequest     `json:"top_slow"`
}

// HTTPStats is the full snapshot returned by the HTTP monitor.
type HTTPStats struct {
	Windows   map[string]HTTPWindowStats `json:"windows"`
	Pending   uint64                     `json:"pending"`
	Timestamp int64                      `json:"timestamp"`
}

// URLRule rewrites concrete URLs into a canonical pattern so requests that
// differ only in resource identifier share a histogram bucket.
type URLRule struct {
	Regex   string
	Replace string

	re *regexp.Regexp
}

// HTTPConfig carries the tunables the HTTP monitor is constructed with.
// Runtime changes require stop-reset-reconstruct-start.
type HTTPConfig struct {
	SlowThreshold     time.Duration
	VerySlowThreshold time.Duration
	MaxTransactions   int
	URLRules          []URLRule
}

// Defaults and retention policy for the HTTP monitor.
const (
	DefaultSlowThreshold     = time.Second
	DefaultVerySlowThreshold = 5 * time.Second
	DefaultMaxTransactions   = 10000

	maxSlowRequests    = 100
	pendingTimeout     = 5 * time.Minute
	completedRetention = time.Hour
	cleanupInterval    = 60 * time.Second
	statsCacheTTL      = time.Second
)

// DefaultURLRules is the built-in pattern table. Unmatched URLs are kept
// verbatim (minus the query string).
func DefaultURLRules() []URLRule {
	return []URLRule{
		{Regex: `^(/api/v)[0-9]+(/[a-z_-]+/)[^/]+$`, Replace: `${1}*${2}*`},
		{Regex: `^(/api/v)[0-9]+(/[a-z_-]+)$`, Replace: `${1}*${2}`},
		{Regex: `^(/[a-z_-]+/)[0-9]+$`, Replace: `${1}*`},
	}
}

// DefaultHTTPConfig returns the default tunables.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		SlowThreshold:     DefaultSlowThreshold,
		VerySlowThreshold: DefaultVerySlowThreshold,
		MaxTransactions:   DefaultMaxTransactions,
		URLRules:          DefaultURLRules(),
	}
}

// httpTransaction is one request/response pair. Pending until the response
// arrives, then promoted to the completed ring.
type httpTransaction struct {
	id        string
	req       HTTPRequest
	resp      HTTPResponse
	completed bool

	start      time.Time // monotonic
	startWall  int64     // ms since epoch, for reporting
	durationMs float64
	pattern    string
}

type httpStatsCache struct {
	at    time.Time
	stats HTTPWindowStats
}

// HTTPMonitor keeps a transaction ledger and serves per-window latency,
// status, method, and URL-pattern statistics.
//
// A completed response is counted fully or not at all: promotion from the
// pending map to the completed ring happens under the monitor lock.
type HTTPMonitor struct {
	mu      sync.Mutex
	running bool

	cfg   HTTPConfig
	rules []URLRule // compiled

	pending   map[string]*httpTransaction
	completed []*httpTransaction // chronological, capped at cfg.MaxTransactions
	slow      []SlowRequest      // descending by response time, capped at maxSlowRequests

	cache       map[metrics.Period]httpStatsCache
	lastCleanup time.Time

	now    func() time.Time
	logger *slog.Logger
}

// NewHTTPMonitor creates a stopped HTTP monitor. Invalid rules are skipped
// with a warning; a zero-valued config field falls back to its default.
func NewHTTPMonitor(cfg HTTPConfig, logger *slog.Logger) *HTTPMonitor {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.VerySlowThreshold <= 0 {
		cfg.VerySlowThreshold = DefaultVerySlowThreshold
	}
	if cfg.MaxTransactions <= 0 {
		cfg.MaxTransactions = DefaultMaxTransactions
	}
	if cfg.URLRules == nil {
		cfg.URLRules = DefaultURLRules()
	}

	rules := make([]URLRule, 0, len(cfg.URLRules))
	for _, r := range cfg.URLRules {
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			logger.Warn("Skipping invalid URL rule", "regex", r.Regex, "error", err)
			continue
		}
		r.re = re
		rules = append(rules, r)
	}

	return &HTTPMonitor{
		cfg:     cfg,
		rules:   rules,
		pending: make(map[string]*httpTransaction),
		cache:   make(map[metrics.Period]httpStatsCache),
		now:     platform.NowMono,
		logger:  logger,
	}
}

// Start marks the monitor running. Idempotent.
func (m *HTTPMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.running = true
		m.lastCleanup = m.now()
		m.logger.Info("HTTP monitor started")
	}
	return nil
}

// Stop marks the monitor stopped. Idempotent.
func (m *HTTPMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.logger.Info("HTTP monitor stopped")
	}
	return nil
}

// Update runs retention cleanup, at most once per cleanupInterval.
func (m *HTTPMonitor) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastCleanup) < cleanupInterval {
		return nil
	}
	m.lastCleanup = now

	for id, tx := range m.pending {
		if now.Sub(tx.start) > pendingTimeout {
			delete(m.pending, id)
		}
	}

	keep := m.completed[:0]
	for _, tx := range m.completed {
		if now.Sub(tx.start) <= completedRetention {
			keep = append(keep, tx)
		}
	}
	m.completed = keep

	slowKeep := m.slow[:0]
	for _, s := range m.slow {
		if now.Sub(s.at) <= completedRetention {
			slowKeep = append(slowKeep, s)
		}
	}
	m.slow = slowKeep
	return nil
}

// Reset clears the ledger, slow set, and stats cache.
func (m *HTTPMonitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = make(map[string]*httpTransaction)
	m.completed = nil
	m.slow = nil
	m.cache = make(map[metrics.Period]httpStatsCache)
	return nil
}

// IsRunning reports the lifecycle state.
func (m *HTTPMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ModuleName returns "http".
func (m *HTTPMonitor) ModuleName() string {
	return ModuleHTTP
}

// RecordRequest creates a Pending transaction indexed by id. A duplicate
// id overwrites the previous pending entry (last-writer-wins).
func (m *HTTPMonitor) RecordRequest(id string, req HTTPRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[id] = &httpTransaction{
		id:        id,
		req:       req,
		start:     m.now(),
		startWall: metrics.EpochMillis(platform.NowWall()),
		pattern:   m.canonicalURL(req.URL),
	}
}

// RecordResponse completes the pending transaction with the given id.
// Unknown ids and out-of-range status codes are silently dropped.
func (m *HTTPMonitor) RecordResponse(id string, resp HTTPResponse) {
	if resp.StatusCode < 100 || resp.StatusCode > 599 {
		m.logger.Debug("Dropping response with out-of-range status", "id", id, "status", resp.StatusCode)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.pending[id]
	if !ok {
		m.logger.Debug("Dropping response for unknown transaction", "id", id)
		return
	}
	delete(m.pending, id)

	now := m.now()
	duration := now.Sub(tx.start)
	if duration < 0 {
		duration = 0
	}
	tx.resp = resp
	tx.completed = true
	tx.durationMs = metrics.ToMillis(duration)

	m.completed = append(m.completed, tx)
	if len(m.completed) > m.cfg.MaxTransactions {
		// Count cap wins over age retention.
		m.completed = m.completed[len(m.completed)-m.cfg.MaxTransactions:]
	}

	if duration >= m.cfg.SlowThreshold {
		m.insertSlow(SlowRequest{
			Method:         tx.req.Method,
			URL:            tx.req.URL,
			ResponseTimeMs: tx.durationMs,
			StatusCode:     resp.StatusCode,
			Timestamp:      metrics.EpochMillis(platform.NowWall()),
			at:             now,
		})
	}

	// Write-invalidate: the next stats read recomputes every period.
	m.cache = make(map[metrics.Period]httpStatsCache)
}

// Stats returns the aggregates of every rolling period.
func (m *HTTPMonitor) Stats() HTTPStats {
	windows := make(map[string]HTTPWindowStats, 6)
	for _, p := range metrics.AllPeriods() {
		windows[p.String()] = m.StatsForPeriod(p)
	}

	m.mu.Lock()
	pending := uint64(len(m.pending))
	m.mu.Unlock()

	return HTTPStats{
		Windows:   windows,
		Pending:   pending,
		Timestamp: metrics.EpochMillis(platform.NowWall()),
	}
}

// StatsForPeriod returns one period's aggregate. The result is cached for
// one second to keep tight polling loops off the O(n) scan.
func (m *HTTPMonitor) StatsForPeriod(p metrics.Period) HTTPWindowStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if c, ok := m.cache[p]; ok && now.Sub(c.at) < statsCacheTTL {
		return c.stats
	}

	stats := m.computeWindow(p, now)
	m.cache[p] = httpStatsCache{at: now, stats: stats}
	return stats
}

// computeWindow scans the ledger for transactions inside the period.
// Caller holds mu.
func (m *HTTPMonitor) computeWindow(p metrics.Period, now time.Time) HTTPWindowStats {
	window := p.Duration()
	stats := HTTPWindowStats{
		StatusCodes: make(map[string]uint64),
		Methods:     make(map[string]uint64),
		URLPatterns: make(map[string]uint64),
		TopSlow:     []SlowRequest{},
	}

	var (
		durations  []float64
		errorCount uint64
	)

	count := func(tx *httpTransaction) {
		stats.TotalRequests++
		stats.Methods[tx.req.Method]++
		stats.URLPatterns[tx.pattern]++
		stats.BytesSent += tx.req.BodySize
	}

	for _, tx := range m.pending {
		if now.Sub(tx.start) <= window {
			count(tx)
		}
	}

	for _, tx := range m.completed {
		if now.Sub(tx.start) > window {
			continue
		}
		count(tx)

		stats.TotalResponses++
		stats.BytesReceived += tx.resp.BodySize
		stats.StatusCodes[strconv.Itoa(tx.resp.StatusCode)]++
		if tx.resp.StatusCode >= 400 {
			errorCount++
		}
		durations = append(durations, tx.durationMs)

		d := time.Duration(tx.durationMs * float64(time.Millisecond))
		if d >= m.cfg.SlowThreshold {
			stats.SlowCount++
		}
		if d >= m.cfg.VerySlowThreshold {
			stats.VerySlowCount++
		}
	}

	stats.MeanMs = metrics.Mean(durations)
	stats.MinMs, stats.MaxMs = metrics.MinMax(durations)
	stats.P95Ms = metrics.Percentile(durations, 95)
	stats.P99Ms = metrics.Percentile(durations, 99)
	stats.RequestsPerSec = float64(stats.TotalRequests) / float64(p.Seconds())
	if stats.TotalResponses > 0 {
		stats.ErrorRatePct = float64(errorCount) / float64(stats.TotalResponses) * 100.0
	}

	for _, s := range m.slow {
		if now.Sub(s.at) <= window {
			stats.TopSlow = append(stats.TopSlow, s)
		}
	}
	return stats
}

// insertSlow adds one entry keeping descending response-time order,
// evicting the minimum past capacity. Caller holds mu.
func (m *HTTPMonitor) insertSlow(s SlowRequest) {
	pos := len(m.slow)
	for i, cur := range m.slow {
		if s.ResponseTimeMs > cur.ResponseTimeMs {
			pos = i
			break
		}
	}
	m.slow = append(m.slow, SlowRequest{})
	copy(m.slow[pos+1:], m.slow[pos:])
	m.slow[pos] = s

	if len(m.slow) > maxSlowRequests {
		m.slow = m.slow[:maxSlowRequests]
	}
}

// canonicalURL rewrites a URL through the rule table. The query string is
// stripped first; unmatched paths are kept verbatim.
func (m *HTTPMonitor) canonicalURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	for _, r := range m.rules {
		if r.re.MatchString(url) {
			return r.re.ReplaceAllString(url, r.Replace)
		}
	}
	return url
}
