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

	"github.com/tumluliu/spacxt/internal/runtime"
)

// buildEngine constructs a runtime.Engine from cfg and, if bootstrapPath is
// non-empty, loads it immediately. The one-shot subcommands (load, tick,
// ask, snapshot) all need this same sequence since each invocation is a
// fresh process with no persisted state; only serve opens the sqlite
// checkpoint log.
func buildEngine(bootstrapPath string) (*runtime.Engine, error) {
	e := runtime.New(cfg)

	if bootstrapPath == "" {
		return e, nil
	}
	raw, err := os.ReadFile(bootstrapPath)
	if err != nil {
		return nil, fmt.Errorf("spacxtd: reading bootstrap file %s: %w", bootstrapPath, err)
	}
	if _, err := e.LoadBootstrap(raw, "cli-bootstrap"); err != nil {
		return nil, fmt.Errorf("spacxtd: loading bootstrap: %w", err)
	}
	return e, nil
}

// requireBootstrapFlag resolves the --bootstrap flag, falling back to
// cfg.BootstrapPath (set via config file or SPACXT_BOOTSTRAP_PATH), and
// errors if neither is set.
func requireBootstrapFlag(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.BootstrapPath != "" {
		return cfg.BootstrapPath, nil
	}
	return "", fmt.Errorf("spacxtd: a bootstrap scene file is required (--bootstrap or bootstrap_path in config)")
}
