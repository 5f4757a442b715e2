/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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
 *
 *
 */

// Command veilproxy runs the gateway described by a YAML configuration
// file: it loads the config, starts every listener it names, reloads on
// SIGHUP or an on-disk edit, and drains in-flight requests on SIGINT/
// SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	"github/sabouaram/golib/config"
	"github/sabouaram/golib/gatewaysrv"
)

var (
	version = "dev"

	flagConfig      string
	flagMetricsAddr string
	flagDrain       time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "veilproxy",
		Short:   "Multi-protocol reverse proxy and application gateway",
		Version: version,
		RunE:    runGateway,
	}

	root.Flags().StringVar(&flagConfig, "config", "", "path to the gateway's YAML configuration file (required)")
	root.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address the /__metrics endpoint listens on, empty disables it")
	root.Flags().DurationVar(&flagDrain, "drain-timeout", 15*time.Second, "how long a shutdown waits for in-flight requests to finish")
	_ = root.MarkFlagRequired("config")

	return root
}

func runGateway(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.New(ctx)
	logFn := func() logger.Logger { return log }

	mgr, err := config.NewManager(ctx, flagConfig, logFn)
	if err != nil {
		return fmt.Errorf("loading %s: %w", flagConfig, err)
	}
	if err := mgr.Watch(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", flagConfig, err)
	}
	defer func() { _ = mgr.Close() }()

	srv, err := gatewaysrv.NewServer(mgr, flagMetricsAddr)
	if err != nil {
		return fmt.Errorf("building gateway server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting gateway server: %w", err)
	}

	log.Entry(loglvl.InfoLevel, "veilproxy %s started, config %s", version, flagConfig).Log()

	waitForShutdownSignal(cmd.Context())

	log.Entry(loglvl.InfoLevel, "shutting down, draining for up to %s", flagDrain).Log()
	if err := srv.Shutdown(flagDrain); err != nil {
		return fmt.Errorf("shutting down gateway server: %w", err)
	}
	return nil
}

func waitForShutdownSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
