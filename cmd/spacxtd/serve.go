// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tumluliu/spacxt/internal/config"
	"github.com/tumluliu/spacxt/internal/httpapi"
	"github.com/tumluliu/spacxt/internal/log"
	"github.com/tumluliu/spacxt/internal/runtime"
	"github.com/tumluliu/spacxt/internal/scene/sqlitelog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and cron-driven tick loop",
	Long: `Start spacxtd in server mode:
- Wraps the runtime.Engine in the HTTP surface (/bootstrap, /tick, /intent, /ask, /snapshot, /events, /metrics, /healthz)
- Drives the orchestrator tick loop on a cron schedule at tick_budget_ms cadence
- With storage.backend=sqlite, resumes from the last checkpoint and appends new ones
- Watches the config file and re-decodes it in place (cluster rules apply at once; thresholds and tick cadence keep their startup values), and logs a warning when the bootstrap file changes

Press Ctrl+C to gracefully shut down.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Logger()

	reg := prometheus.NewRegistry()
	engine := runtime.New(cfg, runtime.WithMetricsRegistry(reg))

	resumed := false
	var checkpointLog *sqlitelog.Log
	if cfg.Storage.Backend == "sqlite" {
		var err error
		checkpointLog, err = sqlitelog.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("spacxtd: opening sqlite event log: %w", err)
		}
		defer checkpointLog.Close()

		if nodes, relations, lastSeq, err := checkpointLog.Resume(); err == nil {
			if _, err := engine.Resume(nodes, relations, "sqlite-resume"); err != nil {
				return fmt.Errorf("spacxtd: resuming from checkpoint seq %d: %w", lastSeq, err)
			}
			resumed = true
			logger.Info("resumed scene from checkpoint",
				zap.Int("last_seq", lastSeq), zap.Int("nodes", len(nodes)), zap.Int("relations", len(relations)))
		} else {
			logger.Info("no checkpoint to resume from, will wait for a bootstrap", zap.Error(err))
		}
		engine.AttachEventSink(checkpointLog.Sink())
	}

	if !resumed && cfg.BootstrapPath != "" {
		raw, err := os.ReadFile(cfg.BootstrapPath)
		if err != nil {
			return fmt.Errorf("spacxtd: reading bootstrap file: %w", err)
		}
		if _, err := engine.LoadBootstrap(raw, "startup-bootstrap"); err != nil {
			return fmt.Errorf("spacxtd: loading bootstrap: %w", err)
		}
		logger.Info("loaded bootstrap scene", zap.String("path", cfg.BootstrapPath))
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %dms", cfg.TickBudgetMS), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Duration(cfg.TickBudgetMS)*time.Millisecond)
		defer cancel()
		if _, err := engine.Tick(ctx); err != nil {
			logger.Warn("tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("spacxtd: scheduling tick loop: %w", err)
	}
	c.Start()
	defer c.Stop()

	if watcher, err := watchForReload(logger); err != nil {
		logger.Warn("file watcher disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	srv := httpapi.NewServer(engine, cfg.Server.BindAddr, reg)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	logger.Info("spacxtd serving", zap.String("addr", cfg.Server.BindAddr), zap.Int("tick_budget_ms", cfg.TickBudgetMS))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchForReload watches the config file for writes and reloads
// cfg.Thresholds/TickBudgetMS/CascadeRotation/ClusterRules in place. The
// Engine holds the same *Config pointer, but only ClusterRules is read
// from it on each use: the thresholds were copied into the orchestrator
// when the Engine was built and the cron schedule was fixed at startup,
// so reloaded values for those do not take effect in this process. It
// also watches the bootstrap file and logs a warning instead of reloading
// it, since a store only bootstraps once per process lifetime.
func watchForReload(logger *zap.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfgFile != "" {
		if err := watcher.Add(cfgFile); err != nil {
			logger.Warn("could not watch config file", zap.String("path", cfgFile), zap.Error(err))
		}
	}
	if cfg.BootstrapPath != "" {
		if err := watcher.Add(cfg.BootstrapPath); err != nil {
			logger.Warn("could not watch bootstrap file", zap.String("path", cfg.BootstrapPath), zap.Error(err))
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				switch event.Name {
				case cfgFile:
					reloadThresholds(logger)
				case cfg.BootstrapPath:
					logger.Warn("bootstrap scene file changed on disk; ignoring — "+
						"bootstrap is one-shot per store lifetime, restart spacxtd to apply a new scene",
						zap.String("path", event.Name))
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", zap.Error(watchErr))
			}
		}
	}()
	return watcher, nil
}

func reloadThresholds(logger *zap.Logger) {
	fresh, err := config.LoadWith(v, cfgFile)
	if err != nil {
		logger.Warn("config reload failed, keeping previous values", zap.Error(err))
		return
	}
	cfg.Thresholds = fresh.Thresholds
	cfg.TickBudgetMS = fresh.TickBudgetMS
	cfg.CascadeRotation = fresh.CascadeRotation
	cfg.ClusterRules = fresh.ClusterRules
	logger.Info("config reloaded",
		zap.Float64("tau_near", cfg.Thresholds.TauNear),
		zap.Float64("tau_accept", cfg.Thresholds.TauAccept),
		zap.Int("tick_budget_ms", cfg.TickBudgetMS))
}
