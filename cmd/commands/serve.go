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

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/phuonguno98/procpulse/internal/config"
	"github.com/phuonguno98/procpulse/internal/platform"
	"github.com/phuonguno98/procpulse/internal/registry"
	"github.com/phuonguno98/procpulse/internal/server"
	"github.com/phuonguno98/procpulse/pkg/version"
	"github.com/spf13/cobra"
)

var (
	// Serve command specific flags
	samplingInterval  time.Duration
	maxSamples        int
	maxStackDepth     int
	collectStacks     bool
	gcIdleWatch       bool
	updateInterval    time.Duration
	slowThreshold     time.Duration
	verySlowThreshold time.Duration
	heapLeakThreshold time.Duration
	maxTransactions   int
	listenAddr        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telemetry engine and API server",
	Long: `Start all monitors and serve telemetry over the HTTP API.
Runtime events (GC cycles, event-loop iterations, HTTP transactions,
heap allocations) are reported through the ingest endpoints; aggregated
statistics and profiler results are read back through the stats and
profiler endpoints or streamed over the live websocket.

Examples:
  # Run with default settings on :9180
  procpulse serve

  # Custom listen address and faster monitor updates
  procpulse serve --listen 127.0.0.1:3000 --update-interval 500ms`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().DurationVar(&samplingInterval, "sampling-interval", config.DefaultSamplingInterval,
		"Profiler sampling interval (e.g., 10ms, 100ms)")
	serveCmd.Flags().IntVar(&maxSamples, "max-samples", config.DefaultMaxSamples,
		"Maximum buffered profiler samples")
	serveCmd.Flags().IntVar(&maxStackDepth, "max-stack-depth", config.DefaultMaxStackDepth,
		"Maximum captured stack frames per sample")
	serveCmd.Flags().BoolVar(&collectStacks, "collect-stacks", true,
		"Capture call stacks in profiler samples")
	serveCmd.Flags().BoolVar(&gcIdleWatch, "gc-idle-watch", false,
		"Log when no GC activity is observed")

	serveCmd.Flags().DurationVar(&updateInterval, "update-interval", config.DefaultUpdateInterval,
		"Monitor update interval (e.g., 1s, 5s)")
	serveCmd.Flags().DurationVar(&slowThreshold, "slow-threshold", config.DefaultSlowThreshold,
		"Request duration flagged as slow")
	serveCmd.Flags().DurationVar(&verySlowThreshold, "very-slow-threshold", config.DefaultVerySlowThreshold,
		"Request duration flagged as very slow")
	serveCmd.Flags().DurationVar(&heapLeakThreshold, "heap-leak-threshold", config.DefaultHeapLeakThreshold,
		"Allocation age flagged as a suspected leak")
	serveCmd.Flags().IntVar(&maxTransactions, "max-transactions", config.DefaultMaxTransactions,
		"Maximum tracked HTTP transactions")

	serveCmd.Flags().StringVar(&listenAddr, "listen", config.DefaultListenAddr,
		"HTTP listen address (host:port)")
}

// buildConfig creates a Config object from parsed flags.
func buildConfig() (*config.Config, error) {
	cfg := &config.Config{
		SamplingInterval:  samplingInterval,
		MaxSamples:        maxSamples,
		MaxStackDepth:     maxStackDepth,
		CollectStacks:     collectStacks,
		GCIdleWatch:       gcIdleWatch,
		UpdateInterval:    updateInterval,
		SlowThreshold:     slowThreshold,
		VerySlowThreshold: verySlowThreshold,
		HeapLeakThreshold: heapLeakThreshold,
		MaxTransactions:   maxTransactions,
		ListenAddr:        listenAddr,
		LogLevel:          logLevel, // Access global var from root.go
		LogFile:           logFile,  // Access global var from root.go
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// runServe is the main engine entry point.
func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logger := InitLogger(cfg.LogLevel, cfg.LogFile)

	logger.Info("Starting ProcPulse",
		"version", version.Info(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"cpus", platform.CPUCount(),
		"page_size", platform.PageSize(),
	)
	logger.Info("Configuration loaded", "config", cfg.String())

	reg := registry.New(logger)
	reg.InitializeAll(cfg)
	defer reg.Teardown()

	if err := reg.StartMonitors(); err != nil {
		logger.Error("Failed to start monitors", "error", err)
		return err
	}

	apiServer := server.NewServer(reg, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams have no bounded write window
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, initiating shutdown", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	// Drive monitor updates until shutdown.
	go func() {
		ticker := time.NewTicker(cfg.UpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reg.UpdateMonitors()
			}
		}
	}()

	logger.Info("ProcPulse is running", "listen", cfg.ListenAddr)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutdown complete")
	return nil
}
