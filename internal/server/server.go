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
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/phuonguno98/procpulse/internal/registry"
	"github.com/phuonguno98/procpulse/pkg/version"
	"github.com/phuonguno98/procpulse/web"
)

// MaxIngestBody limits the size of an ingest request body (1MB).
const MaxIngestBody = 1 << 20

// Server exposes the monitors and profilers over HTTP.
type Server struct {
	registry *registry.Registry
	logger   *slog.Logger
	router   *mux.Router

	liveInterval time.Duration
}

// NewServer creates a new API server on top of the given registry.
func NewServer(reg *registry.Registry, logger *slog.Logger) *Server {
	s := &Server{
		registry:     reg,
		logger:       logger,
		router:       mux.NewRouter(),
		liveInterval: time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Add CORS middleware
	s.router.Use(corsMiddleware)
	// Add logging middleware
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/version", s.handleGetVersion).Methods("GET")
	api.HandleFunc("/modules", s.handleGetModules).Methods("GET")

	api.HandleFunc("/stats", s.handleGetAllStats).Methods("GET")
	api.HandleFunc("/stats/{module}", s.handleGetModuleStats).Methods("GET")
	api.HandleFunc("/monitors/{module}/start", s.handleMonitorStart).Methods("POST")
	api.HandleFunc("/monitors/{module}/stop", s.handleMonitorStop).Methods("POST")
	api.HandleFunc("/monitors/{module}/reset", s.handleMonitorReset).Methods("POST")

	api.HandleFunc("/profilers/{name}/start", s.handleProfilerStart).Methods("POST")
	api.HandleFunc("/profilers/{name}/stop", s.handleProfilerStop).Methods("POST")
	api.HandleFunc("/profilers/{name}/reset", s.handleProfilerReset).Methods("POST")
	api.HandleFunc("/profilers/{name}/results", s.handleProfilerResults).Methods("GET")

	api.HandleFunc("/ingest/gc", s.handleIngestGC).Methods("POST")
	api.HandleFunc("/ingest/loop", s.handleIngestLoop).Methods("POST")
	api.HandleFunc("/ingest/handle", s.handleIngestHandle).Methods("POST")
	api.HandleFunc("/ingest/request", s.handleIngestRequest).Methods("POST")
	api.HandleFunc("/ingest/response", s.handleIngestResponse).Methods("POST")
	api.HandleFunc("/ingest/alloc", s.handleIngestAlloc).Methods("POST")
	api.HandleFunc("/ingest/free", s.handleIngestFree).Methods("POST")

	api.HandleFunc("/live", s.handleLive).Methods("GET")

	// Static files from embedded FS
	staticFS, err := fs.Sub(web.Assets, "static")
	if err != nil {
		s.logger.Error("Failed to get static assets", "error", err)
	}
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", s.staticFileHandler(staticFS)))
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// staticFileHandler serves static files with caching disabled.
func (s *Server) staticFileHandler(root fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		fileServer.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleIndex serves the dashboard HTML file.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	indexFile, err := web.Assets.Open("static/index.html")
	if err != nil {
		s.logger.Error("Failed to open index.html", "error", err)
		http.Error(w, "Internal Server Error: index.html not found", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := indexFile.Close(); err != nil {
			s.logger.Warn("Failed to close index.html", "error", err)
		}
	}()

	if _, err := io.Copy(w, indexFile); err != nil {
		s.logger.Error("Failed to serve index.html", "error", err)
	}
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// handleGetVersion returns version information from the version package.
func (s *Server) handleGetVersion(w http.ResponseWriter, _ *http.Request) {
	versionInfo := map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	}
	s.writeJSON(w, versionInfo)
}

// handleGetModules lists the initialized monitors and profilers with their
// running state.
func (s *Server) handleGetModules(w http.ResponseWriter, _ *http.Request) {
	type moduleState struct {
		Name    string `json:"name"`
		Kind    string `json:"kind"`
		Running bool   `json:"running"`
	}

	modules := []moduleState{}
	for _, name := range s.registry.Monitors() {
		m, err := s.registry.Monitor(name)
		if err != nil {
			continue
		}
		modules = append(modules, moduleState{Name: name, Kind: "monitor", Running: m.Monitor().IsRunning()})
	}
	for _, name := range s.registry.Profilers() {
		p, err := s.registry.Profiler(name)
		if err != nil {
			continue
		}
		modules = append(modules, moduleState{Name: name, Kind: "profiler", Running: p.IsRunning()})
	}

	s.writeJSON(w, map[string]any{"modules": modules})
}

// decodeBody decodes a bounded JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxIngestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	}); err != nil {
		s.logger.Error("Failed to write error response", "error", err)
	}
}
