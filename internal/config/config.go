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

package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Config represents application configuration.
type Config struct {
	// Profiling
	SamplingInterval time.Duration // Interval between profiler samples
	MaxSamples       int           // Maximum buffered profiler samples
	MaxStackDepth    int           // Maximum captured stack frames
	CollectStacks    bool          // Capture call stacks in profiler samples
	GCIdleWatch      bool          // Log when the collector goes quiet

	// Monitoring
	UpdateInterval    time.Duration // Interval between monitor updates
	SlowThreshold     time.Duration // Request duration flagged as slow
	VerySlowThreshold time.Duration // Request duration flagged as very slow
	HeapLeakThreshold time.Duration // Allocation age flagged as a leak
	MaxTransactions   int           // Maximum tracked HTTP transactions

	// Server
	ListenAddr string // HTTP listen address

	// Logging
	LogLevel string // Log level: debug, info, warn, error
	LogFile  string // Log file path (empty = stdout)
}

// Default configuration values.
const (
	DefaultSamplingInterval  = 10 * time.Millisecond
	DefaultMaxSamples        = 1000
	DefaultMaxStackDepth     = 32
	DefaultUpdateInterval    = 1 * time.Second
	DefaultSlowThreshold     = 1 * time.Second
	DefaultVerySlowThreshold = 5 * time.Second
	DefaultHeapLeakThreshold = 60 * time.Second
	DefaultMaxTransactions   = 10000
	DefaultListenAddr        = ":9180"
	DefaultLogLevel          = "info"
)

// Default returns a configuration populated with the default values.
func Default() *Config {
	return &Config{
		SamplingInterval:  DefaultSamplingInterval,
		MaxSamples:        DefaultMaxSamples,
		MaxStackDepth:     DefaultMaxStackDepth,
		CollectStacks:     true,
		UpdateInterval:    DefaultUpdateInterval,
		SlowThreshold:     DefaultSlowThreshold,
		VerySlowThreshold: DefaultVerySlowThreshold,
		HeapLeakThreshold: DefaultHeapLeakThreshold,
		MaxTransactions:   DefaultMaxTransactions,
		ListenAddr:        DefaultListenAddr,
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromArgs loads configuration from the provided arguments.
func LoadFromArgs(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("procpulse", flag.ContinueOnError)

	var (
		samplingInterval = fs.Duration("sampling-interval", DefaultSamplingInterval, "Profiler sampling interval (e.g., 10ms, 100ms)")
		maxSamples       = fs.Int("max-samples", DefaultMaxSamples, "Maximum buffered profiler samples")
		maxStackDepth    = fs.Int("max-stack-depth", DefaultMaxStackDepth, "Maximum captured stack frames per sample")
		collectStacks    = fs.Bool("collect-stacks", true, "Capture call stacks in profiler samples")
		gcIdleWatch      = fs.Bool("gc-idle-watch", false, "Log when no GC activity is observed")

		updateInterval    = fs.Duration("update-interval", DefaultUpdateInterval, "Monitor update interval (e.g., 1s, 5s)")
		slowThreshold     = fs.Duration("slow-threshold", DefaultSlowThreshold, "Request duration flagged as slow")
		verySlowThreshold = fs.Duration("very-slow-threshold", DefaultVerySlowThreshold, "Request duration flagged as very slow")
		heapLeakThreshold = fs.Duration("heap-leak-threshold", DefaultHeapLeakThreshold, "Allocation age flagged as a suspected leak")
		maxTransactions   = fs.Int("max-transactions", DefaultMaxTransactions, "Maximum tracked HTTP transactions")

		listenAddr = fs.String("listen", DefaultListenAddr, "HTTP listen address (host:port)")

		logLevel = fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
		logFile  = fs.String("log-file", "", "Log file path (empty = stdout)")
	)

	// Parse arguments
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.SamplingInterval = *samplingInterval
	cfg.MaxSamples = *maxSamples
	cfg.MaxStackDepth = *maxStackDepth
	cfg.CollectStacks = *collectStacks
	cfg.GCIdleWatch = *gcIdleWatch
	cfg.UpdateInterval = *updateInterval
	cfg.SlowThreshold = *slowThreshold
	cfg.VerySlowThreshold = *verySlowThreshold
	cfg.HeapLeakThreshold = *heapLeakThreshold
	cfg.MaxTransactions = *maxTransactions
	cfg.ListenAddr = *listenAddr
	cfg.LogLevel = *logLevel
	cfg.LogFile = *logFile

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SamplingInterval < time.Millisecond {
		return errors.New("sampling interval must be at least 1 millisecond")
	}

	if c.SamplingInterval > time.Minute {
		return errors.New("sampling interval must not exceed 1 minute")
	}

	if c.MaxSamples < 1 {
		return errors.New("max samples must be at least 1")
	}

	if c.MaxStackDepth < 1 {
		return errors.New("max stack depth must be at least 1")
	}

	if c.UpdateInterval < 100*time.Millisecond {
		return errors.New("update interval must be at least 100 milliseconds")
	}

	if c.UpdateInterval > time.Hour {
		return errors.New("update interval must not exceed 1 hour")
	}

	if c.SlowThreshold <= 0 {
		return errors.New("slow threshold must be positive")
	}

	if c.VerySlowThreshold < c.SlowThreshold {
		return errors.New("very slow threshold must not be below slow threshold")
	}

	if c.HeapLeakThreshold <= 0 {
		return errors.New("heap leak threshold must be positive")
	}

	if c.MaxTransactions < 1 {
		return errors.New("max transactions must be at least 1")
	}

	if c.ListenAddr == "" {
		return errors.New("listen address cannot be empty")
	}
	if !strings.Contains(c.ListenAddr, ":") {
		return fmt.Errorf("invalid listen address: %s (must be host:port)", c.ListenAddr)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// String returns a human-readable representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Sampling=%v, MaxSamples=%d, Update=%v, Listen=%s, LogLevel=%s}",
		c.SamplingInterval, c.MaxSamples, c.UpdateInterval, c.ListenAddr, c.LogLevel)
}
