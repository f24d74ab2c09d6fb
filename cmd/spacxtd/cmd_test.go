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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tumluliu/spacxt/internal/config"
)

const testBootstrapJSON = `{
  "scene": {
    "id": "kitchen-scene-1",
    "rooms": [
      {"id": "kitchen", "cls": "room", "pos": [2,2,1.2], "bbox": {"type":"OBB","xyz":[6,6,2.4]}}
    ],
    "objects": [
      {"id": "table_1", "cls": "table", "pos": [1.5,1.5,0.75], "bbox": {"type":"OBB","xyz":[1.2,0.8,0.75]}, "lom": "low"}
    ],
    "relations": []
  }
}`

func TestZapConfigForDefaultsToDevelopmentEncoding(t *testing.T) {
	c := config.Defaults()
	zapCfg := zapConfigFor(c)
	assert.Equal(t, "console", zapCfg.Encoding)
	assert.Equal(t, zapcore.InfoLevel, zapCfg.Level.Level())
}

func TestZapConfigForJSONSwitchesEncoding(t *testing.T) {
	c := config.Defaults()
	c.Logging.JSON = true
	c.Logging.Level = "debug"
	zapCfg := zapConfigFor(c)
	assert.Equal(t, "json", zapCfg.Encoding)
	assert.Equal(t, zapcore.DebugLevel, zapCfg.Level.Level())
}

func TestRequireBootstrapFlagPrefersExplicitFlag(t *testing.T) {
	cfg = config.Defaults()
	cfg.BootstrapPath = "/from/config.json"

	path, err := requireBootstrapFlag("/from/flag.json")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.json", path)
}

func TestRequireBootstrapFlagFallsBackToConfig(t *testing.T) {
	cfg = config.Defaults()
	cfg.BootstrapPath = "/from/config.json"

	path, err := requireBootstrapFlag("")
	require.NoError(t, err)
	assert.Equal(t, "/from/config.json", path)
}

func TestRequireBootstrapFlagErrorsWhenNeitherSet(t *testing.T) {
	cfg = config.Defaults()
	cfg.BootstrapPath = ""

	_, err := requireBootstrapFlag("")
	require.Error(t, err)
}

func TestBuildEngineLoadsBootstrapFile(t *testing.T) {
	cfg = config.Defaults()

	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	require.NoError(t, os.WriteFile(path, []byte(testBootstrapJSON), 0o644))

	e, err := buildEngine(path)
	require.NoError(t, err)

	snap := e.Snapshot()
	var found bool
	for _, n := range snap.Nodes {
		if n.ID == "table_1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildEngineWithoutBootstrapPathStaysEmpty(t *testing.T) {
	cfg = config.Defaults()

	e, err := buildEngine("")
	require.NoError(t, err)
	assert.Empty(t, e.Snapshot().Nodes)
}
