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
	"fmt"
	"io"
	"log/slog"

	"github.com/phuonguno98/procpulse/internal/config"
	"github.com/phuonguno98/procpulse/internal/registry"
	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List available monitors and profilers",
	Long: `List the telemetry modules this build provides, grouped into
monitors (continuous rolling statistics) and profilers (explicit
start/stop sessions). The names match the HTTP API paths.

Examples:
  # List all modules
  procpulse modules

  # Start one of them over the API
  curl -X POST localhost:9180/api/v1/monitors/cpu/start`,
	RunE: runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func runModules(cmd *cobra.Command, _ []string) error {
	// A throwaway registry with defaults; nothing is started.
	reg := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.InitializeAll(config.Default())
	defer reg.Teardown()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n========================================")
	fmt.Fprintln(out, "   ProcPulse - Available Modules")
	fmt.Fprintln(out, "========================================")

	fmt.Fprintln(out, "\nMonitors:")
	for _, name := range reg.Monitors() {
		fmt.Fprintf(out, "  %-12s /api/v1/monitors/%s/{start|stop|reset}\n", name, name)
	}

	fmt.Fprintln(out, "\nProfilers:")
	for _, name := range reg.Profilers() {
		fmt.Fprintf(out, "  %-12s /api/v1/profilers/%s/{start|stop|reset|results}\n", name, name)
	}

	fmt.Fprintln(out, "\nNotes:")
	fmt.Fprintln(out, "  - Monitor start/stop/reset are idempotent")
	fmt.Fprintln(out, "  - Profiler start/stop are strict: starting twice is an error")
	fmt.Fprintln(out, "  - Stats are read from /api/v1/stats or streamed from /api/v1/live")
	fmt.Fprintln(out)

	return nil
}
