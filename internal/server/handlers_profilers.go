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
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/phuonguno98/procpulse/internal/profiler"
	"github.com/phuonguno98/procpulse/internal/registry"
)

// profilerOp runs one lifecycle operation against a named profiler.
// Profiler lifecycle is strict: starting a running profiler or stopping a
// stopped one is a client error.
func (s *Server) profilerOp(w http.ResponseWriter, r *http.Request, op func(profiler.Profiler) error, action string) {
	name := mux.Vars(r)["name"]

	err := s.registry.WithProfiler(name, op)
	switch {
	case errors.Is(err, registry.ErrNotInitialized):
		s.writeError(w, "unknown profiler: "+name, http.StatusNotFound)
		return
	case errors.Is(err, profiler.ErrAlreadyRunning), errors.Is(err, profiler.ErrNotRunning):
		s.writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("profiler "+action, "profiler", name)
	s.writeJSON(w, map[string]string{"status": "ok", "profiler": name})
}

func (s *Server) handleProfilerStart(w http.ResponseWriter, r *http.Request) {
	s.profilerOp(w, r, profiler.Profiler.Start, "started")
}

func (s *Server) handleProfilerStop(w http.ResponseWriter, r *http.Request) {
	s.profilerOp(w, r, profiler.Profiler.Stop, "stopped")
}

func (s *Server) handleProfilerReset(w http.ResponseWriter, r *http.Request) {
	s.profilerOp(w, r, profiler.Profiler.Reset, "reset")
}

// handleProfilerResults returns the aggregated results of one profiler.
func (s *Server) handleProfilerResults(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, err := s.registry.Profiler(name)
	if err != nil {
		s.writeError(w, "unknown profiler: "+name, http.StatusNotFound)
		return
	}
	s.writeJSON(w, p.Results())
}
