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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tumluliu/spacxt/internal/config"
	"github.com/tumluliu/spacxt/internal/log"
	"github.com/tumluliu/spacxt/internal/version"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
)

// rootCmd is the spacxtd base command.
var rootCmd = &cobra.Command{
	Use:     "spacxtd",
	Short:   "spacxt spatial context graph engine",
	Long:    `spacxtd runs the spatial context graph engine: a scene-graph store, a per-object agent tick loop, and the bootstrap/intent/ask/snapshot surface described in spec.md.`,
	Version: version.Get(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.PersistentFlags().String("bind-addr", "127.0.0.1:8080", "HTTP server bind address (serve mode)")
	rootCmd.PersistentFlags().Int("tick-budget-ms", 100, "per-tick wall-clock budget in milliseconds")
	rootCmd.PersistentFlags().Bool("cascade-rotation", false, "propagate rotations in support cascades (not read: cascades translate only)")
	rootCmd.PersistentFlags().Float64("perception-radius", 1.5, "agent perception radius, meters (not read: agents use 1.5)")
	rootCmd.PersistentFlags().Float64("tau-near", 0.75, "near-relation distance threshold, meters")
	rootCmd.PersistentFlags().Float64("tau-contact", 0.05, "contact-relation distance threshold, meters")
	rootCmd.PersistentFlags().Float64("tau-propose", 0.5, "confidence threshold for proposing a relation")
	rootCmd.PersistentFlags().Float64("tau-accept", 0.6, "confidence threshold for accepting a relation")
	rootCmd.PersistentFlags().Float64("tau-supersede", 0.55, "minimum confidence for a new top relation to supersede the others")
	rootCmd.PersistentFlags().String("storage-backend", "memory", "event-log backend: memory or sqlite")
	rootCmd.PersistentFlags().String("sqlite-path", "spacxt.db", "sqlite database path (storage-backend=sqlite)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().String("bootstrap", "", "bootstrap scene JSON file")

	_ = v.BindPFlag("server.bind_addr", rootCmd.PersistentFlags().Lookup("bind-addr"))
	_ = v.BindPFlag("tick_budget_ms", rootCmd.PersistentFlags().Lookup("tick-budget-ms"))
	_ = v.BindPFlag("cascade_rotation", rootCmd.PersistentFlags().Lookup("cascade-rotation"))
	_ = v.BindPFlag("thresholds.perception_radius", rootCmd.PersistentFlags().Lookup("perception-radius"))
	_ = v.BindPFlag("thresholds.tau_near", rootCmd.PersistentFlags().Lookup("tau-near"))
	_ = v.BindPFlag("thresholds.tau_contact", rootCmd.PersistentFlags().Lookup("tau-contact"))
	_ = v.BindPFlag("thresholds.tau_propose", rootCmd.PersistentFlags().Lookup("tau-propose"))
	_ = v.BindPFlag("thresholds.tau_accept", rootCmd.PersistentFlags().Lookup("tau-accept"))
	_ = v.BindPFlag("thresholds.tau_supersede", rootCmd.PersistentFlags().Lookup("tau-supersede"))
	_ = v.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage-backend"))
	_ = v.BindPFlag("storage.sqlite_path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = v.BindPFlag("bootstrap_path", rootCmd.PersistentFlags().Lookup("bootstrap"))
}

// initConfig loads cfg from flags > config file > env > defaults, builds the
// zap logger from it, and registers a tracer provider so every
// tracer.Start call in internal/orchestrator and internal/runtime actually
// produces spans instead of a no-op default.
func initConfig() {
	var err error
	cfg, err = config.LoadWith(v, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spacxtd: loading config: %v\n", err)
		os.Exit(1)
	}

	zapCfg := zapConfigFor(cfg)
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spacxtd: building logger: %v\n", err)
		os.Exit(1)
	}
	log.SetLogger(logger)

	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}
