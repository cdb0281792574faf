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

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phuonguno98/procpulse/internal/monitor"
	"github.com/phuonguno98/procpulse/internal/profiler"
)

// Runtime events arrive over the ingest endpoints as small JSON bodies.
// Each event feeds the matching monitor; GC and allocation events also
// feed the corresponding profiler when one is active.

type gcEventBody struct {
	Type       string            `json:"type"`
	DurationMs float64           `json:"duration_ms"`
	HeapBefore uint64            `json:"heap_before"`
	HeapAfter  uint64            `json:"heap_after"`
	HeapSize   uint64            `json:"heap_size"`
	Generation string            `json:"generation"`
	Phase      string            `json:"phase"`
	Reason     string            `json:"reason"`
	Metadata   map[string]string `json:"metadata"`
}

// handleIngestGC records a completed collection on the GC monitor and,
// when the GC profiler is running, as a profiled cycle.
func (s *Server) handleIngestGC(w http.ResponseWriter, r *http.Request) {
	var body gcEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	duration := time.Duration(body.DurationMs * float64(time.Millisecond))

	m, err := s.registry.Monitor(monitor.ModuleGC)
	if err != nil {
		s.writeError(w, "gc monitor not initialized", http.StatusServiceUnavailable)
		return
	}
	m.GC.RecordEvent(monitor.GCEvent{
		Type:       monitor.GCEventType(body.Type),
		Duration:   duration,
		HeapBefore: body.HeapBefore,
		HeapAfter:  body.HeapAfter,
	})

	var cycleID uint64
	if p, err := s.registry.Profiler(profiler.NameGC); err == nil {
		if gp, ok := p.(*profiler.GCProfiler); ok {
			generation := body.Generation
			if generation == "" {
				generation = body.Type
			}
			phase := profiler.GCPhase(body.Phase)
			if phase == "" {
				phase = profiler.GCPhaseEnd
			}
			cycleID = gp.RecordCycle(profiler.GCCycleEvent{
				Generation: generation,
				Phase:      phase,
				Duration:   duration,
				HeapBefore: body.HeapBefore,
				HeapAfter:  body.HeapAfter,
				HeapSize:   body.HeapSize,
				Reason:     body.Reason,
				Metadata:   body.Metadata,
			})
		}
	}

	s.writeJSON(w, map[string]any{"status": "ok", "cycle_id": cycleID})
}

type loopEventBody struct {
	LoopMs    float64 `json:"loop_ms"`
	IdleMs    float64 `json:"idle_ms"`
	PrepareMs float64 `json:"prepare_ms"`
	CheckMs   float64 `json:"check_ms"`
	PollMs    float64 `json:"poll_ms"`
}

// handleIngestLoop records one event-loop iteration.
func (s *Server) handleIngestLoop(w http.ResponseWriter, r *http.Request) {
	var body loopEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	m, err := s.registry.Monitor(monitor.ModuleEventLoop)
	if err != nil {
		s.writeError(w, "eventloop monitor not initialized", http.StatusServiceUnavailable)
		return
	}

	ms := func(v float64) time.Duration { return time.Duration(v * float64(time.Millisecond)) }
	m.EventLoop.RecordLoopIteration(ms(body.LoopMs), ms(body.IdleMs), ms(body.PrepareMs), ms(body.CheckMs), ms(body.PollMs))

	s.writeJSON(w, map[string]string{"status": "ok"})
}

type handleEventBody struct {
	ID         *uint64 `json:"id"`
	Type       string  `json:"type"`
	Active     bool    `json:"active"`
	Referenced bool    `json:"referenced"`
	Remove     bool    `json:"remove"`
}

// handleIngestHandle registers, updates, or removes an event-loop handle.
// A body without an id registers a new handle and returns the assigned
// id; with an id it updates the status, or unregisters when remove is
// set.
func (s *Server) handleIngestHandle(w http.ResponseWriter, r *http.Request) {
	var body handleEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	m, err := s.registry.Monitor(monitor.ModuleEventLoop)
	if err != nil {
		s.writeError(w, "eventloop monitor not initialized", http.StatusServiceUnavailable)
		return
	}

	if body.ID == nil {
		if body.Type == "" {
			s.writeError(w, "handle type is required", http.StatusBadRequest)
			return
		}
		id := m.EventLoop.RegisterHandle(monitor.HandleType(body.Type), body.Active, body.Referenced)
		s.writeJSON(w, map[string]any{"status": "ok", "id": id})
		return
	}

	if body.Remove {
		m.EventLoop.UnregisterHandle(*body.ID)
	} else {
		m.EventLoop.UpdateHandleStatus(*body.ID, body.Active, body.Referenced)
	}
	s.writeJSON(w, map[string]any{"status": "ok", "id": *body.ID})
}

type requestEventBody struct {
	ID       string `json:"id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	BodySize uint64 `json:"body_size"`
}

// handleIngestRequest opens an HTTP transaction. When the client does not
// supply an id, the server assigns one and returns it; responses must
// carry the same id.
func (s *Server) handleIngestRequest(w http.ResponseWriter, r *http.Request) {
	var body requestEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Method == "" || body.URL == "" {
		s.writeError(w, "method and url are required", http.StatusBadRequest)
		return
	}

	m, err := s.registry.Monitor(monitor.ModuleHTTP)
	if err != nil {
		s.writeError(w, "http monitor not initialized", http.StatusServiceUnavailable)
		return
	}

	id := body.ID
	if id == "" {
		id = uuid.NewString()
	}
	m.HTTP.RecordRequest(id, monitor.HTTPRequest{
		Method:   body.Method,
		URL:      body.URL,
		BodySize: body.BodySize,
	})

	s.writeJSON(w, map[string]string{"status": "ok", "id": id})
}

type responseEventBody struct {
	ID         string `json:"id"`
	StatusCode int    `json:"status_code"`
	BodySize   uint64 `json:"body_size"`
}

// handleIngestResponse completes an HTTP transaction. Responses for
// unknown transaction ids are dropped by the monitor without error.
func (s *Server) handleIngestResponse(w http.ResponseWriter, r *http.Request) {
	var body responseEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.ID == "" {
		s.writeError(w, "transaction id is required", http.StatusBadRequest)
		return
	}

	m, err := s.registry.Monitor(monitor.ModuleHTTP)
	if err != nil {
		s.writeError(w, "http monitor not initialized", http.StatusServiceUnavailable)
		return
	}
	m.HTTP.RecordResponse(body.ID, monitor.HTTPResponse{
		StatusCode: body.StatusCode,
		BodySize:   body.BodySize,
	})

	s.writeJSON(w, map[string]string{"status": "ok", "id": body.ID})
}

type allocEventBody struct {
	Address uint64 `json:"address"`
	Size    uint64 `json:"size"`
	Type    string `json:"type"`
}

// handleIngestAlloc reports one heap allocation to the heap profiler.
func (s *Server) handleIngestAlloc(w http.ResponseWriter, r *http.Request) {
	var body allocEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	hp, ok := s.heapProfiler(w)
	if !ok {
		return
	}
	hp.RecordAllocation(body.Address, body.Size, profiler.AllocationType(body.Type))
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type freeEventBody struct {
	Address uint64 `json:"address"`
}

// handleIngestFree reports one heap deallocation to the heap profiler.
func (s *Server) handleIngestFree(w http.ResponseWriter, r *http.Request) {
	var body freeEventBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	hp, ok := s.heapProfiler(w)
	if !ok {
		return
	}
	hp.RecordDeallocation(body.Address)
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) heapProfiler(w http.ResponseWriter) (*profiler.HeapProfiler, bool) {
	p, err := s.registry.Profiler(profiler.NameHeap)
	if err != nil {
		s.writeError(w, "heap profiler not initialized", http.StatusServiceUnavailable)
		return nil, false
	}
	hp, ok := p.(*profiler.HeapProfiler)
	if !ok {
		s.writeError(w, "heap profiler unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return hp, true
}
