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
// Package config loads spacxt's runtime configuration from flags, a YAML
// file, environment variables, and defaults, in that priority order.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Thresholds holds every numeric knob from spec.md §6.5. runtime.New
// copies TauNear, TauContact, TauPropose, TauAccept and TauSupersede into
// the orchestrator's own config when the Engine is built, so a later
// change to these fields (a config hot reload included) does not reach
// the tick loop. PerceptionRadius is not read by the tick loop at all:
// agents use agentrt.DefaultPerceptionRadius.
type Thresholds struct {
	PerceptionRadius float64 `mapstructure:"perception_radius"`
	TauNear          float64 `mapstructure:"tau_near"`
	TauContact       float64 `mapstructure:"tau_contact"`
	TauPropose       float64 `mapstructure:"tau_propose"`
	TauAccept        float64 `mapstructure:"tau_accept"`
	TauSupersede     float64 `mapstructure:"tau_supersede"`
}

// ServerConfig controls the optional HTTP wrapping of the runtime surface.
type ServerConfig struct {
	BindAddr string `mapstructure:"bind_addr"`
}

// StorageConfig selects the event-log backend.
type StorageConfig struct {
	// Backend is "memory" (default) or "sqlite".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file used when Backend == "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SnapshotConfig controls snapshot export behavior.
type SnapshotConfig struct {
	// CompressAboveBytes is decoded from config but not read: the
	// snapshot exporter always uses bootstrap.CompressionThresholdBytes,
	// and zero does not disable compression.
	CompressAboveBytes int `mapstructure:"compress_above_bytes"`
}

// LoggingConfig controls the zap logger built from this configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ClusterRules overrides the spatial-clustering heuristics of §4.8. Each
// entry maps a class tag to the cluster-type label it forces membership
// towards (e.g. "table" -> "table_group").
type ClusterRules struct {
	ClassToClusterType map[string]string `mapstructure:"class_to_cluster_type"`
}

// Config is the full set of spacxt runtime options, matching spec.md §6.5
// plus the ambient concerns (server, storage, logging) the teacher's
// cmd/looms/config.go layers on top of its own domain knobs.
type Config struct {
	Thresholds Thresholds `mapstructure:"thresholds"`

	TickBudgetMS    int  `mapstructure:"tick_budget_ms"`
	CascadeRotation bool `mapstructure:"cascade_rotation"`

	ClusterRules ClusterRules `mapstructure:"cluster_rules"`

	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// BootstrapPath, when set, is watched for hot-reload attempts; a
	// changed bootstrap file after the store has already loaded is
	// rejected with a logged warning rather than silently re-applied.
	BootstrapPath string `mapstructure:"bootstrap_path"`
}

// Defaults returns the configuration defaults named in spec.md §6.5.
func Defaults() *Config {
	return &Config{
		Thresholds: Thresholds{
			PerceptionRadius: 1.5,
			TauNear:          0.75,
			TauContact:       0.05,
			TauPropose:       0.5,
			TauAccept:        0.6,
			TauSupersede:     0.55,
		},
		TickBudgetMS:    100,
		CascadeRotation: false,
		ClusterRules: ClusterRules{
			ClassToClusterType: map[string]string{
				"table":      "table_group",
				"stove":      "cooking_area",
				"oven":       "cooking_area",
				"chair":      "table_group",
				"countertop": "cooking_area",
			},
		},
		Server: ServerConfig{
			BindAddr: "127.0.0.1:8080",
		},
		Storage: StorageConfig{
			Backend:    "memory",
			SQLitePath: "spacxt.db",
		},
		Snapshot: SnapshotConfig{
			CompressAboveBytes: 65536,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// TauFar derives the far-relation threshold, defined in spec.md §4.1 as
// twice tau_near rather than stored independently.
func (t Thresholds) TauFar() float64 {
	return 2 * t.TauNear
}

// Load builds a fresh *viper.Viper bound to environment variables and the
// default values, then reads path (if non-empty) as a YAML config file, and
// decodes the merged result into a *Config. Use this when the caller has no
// cobra flags to bind (tests, one-shot CLI subcommands).
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith decodes a *Config from v, after pointing v at path (if non-empty)
// as a YAML config file. The caller is expected to have already bound its
// cobra persistent flags onto v via viper.BindPFlag (see cmd/spacxtd's
// root.go), which is what gives flags top priority: BindPFlag values always
// win over file/env/default, matching the teacher's cmd/looms priority
// order.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	v.SetEnvPrefix("SPACXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Defaults())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("thresholds.perception_radius", d.Thresholds.PerceptionRadius)
	v.SetDefault("thresholds.tau_near", d.Thresholds.TauNear)
	v.SetDefault("thresholds.tau_contact", d.Thresholds.TauContact)
	v.SetDefault("thresholds.tau_propose", d.Thresholds.TauPropose)
	v.SetDefault("thresholds.tau_accept", d.Thresholds.TauAccept)
	v.SetDefault("thresholds.tau_supersede", d.Thresholds.TauSupersede)
	v.SetDefault("tick_budget_ms", d.TickBudgetMS)
	v.SetDefault("cascade_rotation", d.CascadeRotation)
	v.SetDefault("cluster_rules.class_to_cluster_type", d.ClusterRules.ClassToClusterType)
	v.SetDefault("server.bind_addr", d.Server.BindAddr)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("snapshot.compress_above_bytes", d.Snapshot.CompressAboveBytes)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("bootstrap_path", d.BootstrapPath)
}
