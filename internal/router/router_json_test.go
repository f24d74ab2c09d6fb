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
package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentJSONAddObject(t *testing.T) {
	intent, err := ParseIntentJSON([]byte(`{"type":"add_object","object_class":"cup","target":"table_1","relation":"on_top_of"}`))
	require.NoError(t, err)
	assert.Equal(t, AddObject, intent.Type)
	assert.Equal(t, "cup", intent.ObjectClass)
	assert.Equal(t, "table_1", intent.Target)
	assert.Equal(t, "on_top_of", intent.Relation)
}

func TestParseIntentJSONMoveObjectWithOffset(t *testing.T) {
	intent, err := ParseIntentJSON([]byte(`{"type":"move_object","id":"cup_1","offset":[0.1,0,0]}`))
	require.NoError(t, err)
	require.NotNil(t, intent.Offset)
	assert.InDelta(t, 0.1, intent.Offset.X, 1e-9)
}

func TestParseIntentJSONMissingType(t *testing.T) {
	_, err := ParseIntentJSON([]byte(`{"object_class":"cup"}`))
	require.Error(t, err)
}

func TestParseIntentJSONMalformed(t *testing.T) {
	_, err := ParseIntentJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestParseIntentJSONQuery(t *testing.T) {
	intent, err := ParseIntentJSON([]byte(`{"type":"query","question":"where is the cup"}`))
	require.NoError(t, err)
	assert.Equal(t, Query, intent.Type)
	assert.Equal(t, "where is the cup", intent.Question)
}
