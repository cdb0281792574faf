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
	"time"

	"github.com/gorilla/mux"
	"github.com/phuonguno98/procpulse/internal/monitor"
	"github.com/phuonguno98/procpulse/internal/registry"
	"github.com/phuonguno98/procpulse/pkg/metrics"
)

// statsSnapshot collects the stats payload of every initialized monitor.
func (s *Server) statsSnapshot() map[string]any {
	snapshot := make(map[string]any)
	for _, name := range s.registry.Monitors() {
		m, err := s.registry.Monitor(name)
		if err != nil {
			continue
		}
		payload, err := m.StatsPayload()
		if err != nil {
			s.logger.Warn("stats payload failed", "module", name, "error", err)
			continue
		}
		snapshot[name] = payload
	}
	snapshot["timestamp"] = metrics.EpochMillis(time.Now())
	return snapshot
}

// handleGetAllStats returns the stats of every monitor in one payload.
func (s *Server) handleGetAllStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.statsSnapshot())
}

// handleGetModuleStats returns the stats of one monitor.
func (s *Server) handleGetModuleStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["module"]

	m, err := s.registry.Monitor(name)
	if err != nil {
		s.writeError(w, "unknown module: "+name, http.StatusNotFound)
		return
	}
	payload, err := m.StatsPayload()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, payload)
}

// monitorOp runs one lifecycle operation against a named monitor.
func (s *Server) monitorOp(w http.ResponseWriter, r *http.Request, op func(monitor.Monitor) error, action string) {
	name := mux.Vars(r)["module"]

	err := s.registry.WithMonitor(name, func(m monitor.Any) error {
		return op(m.Monitor())
	})
	switch {
	case errors.Is(err, registry.ErrNotInitialized):
		s.writeError(w, "unknown module: "+name, http.StatusNotFound)
		return
	case err != nil:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("monitor "+action, "module", name)
	s.writeJSON(w, map[string]string{"status": "ok", "module": name})
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	s.monitorOp(w, r, monitor.Monitor.Start, "started")
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.monitorOp(w, r, monitor.Monitor.Stop, "stopped")
}

func (s *Server) handleMonitorReset(w http.ResponseWriter, r *http.Request) {
	s.monitorOp(w, r, monitor.Monitor.Reset, "reset")
}
