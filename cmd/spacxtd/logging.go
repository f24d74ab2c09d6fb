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
	"go.uber.org/zap"

	"github.com/tumluliu/spacxt/internal/config"
)

// zapConfigFor builds a zap config from cfg.Logging, following the
// teacher's runServe: development encoding for readable console output,
// switched to the JSON production encoding when logging.json is set.
func zapConfigFor(cfg *config.Config) zap.Config {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Logging.JSON {
		zapCfg = zap.NewProductionConfig()
	}

	level := zap.InfoLevel
	if cfg.Logging.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg
}
