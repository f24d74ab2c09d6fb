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
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tumluliu/spacxt/internal/config"
	"github.com/tumluliu/spacxt/internal/runtime"
)

const bootstrapJSON = `{
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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	e := runtime.New(config.Defaults())
	return NewServer(e, "127.0.0.1:0", prometheus.NewRegistry())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapThenSnapshot(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bootstrap", strings.NewReader(bootstrapJSON))
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, w2.Code)

	var snap struct {
		Nodes []struct{ ID string } `json:"Nodes"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &snap))
	var found bool
	for _, n := range snap.Nodes {
		if n.ID == "table_1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIntentRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	bootstrap(t, s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/intent", strings.NewReader(`not json`))
	s.http.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskRequiresQueryParam(t *testing.T) {
	s := newTestServer(t)
	bootstrap(t, s)

	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskLocation(t *testing.T) {
	s := newTestServer(t)
	bootstrap(t, s)

	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ask?q=where+is+table_1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "table_1")
}

func TestEventsStreamsBootstrapEvent(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		s.http.Handler.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the handler subscribe before the patch commits
	bootstrap(t, s)

	<-done
	assert.Contains(t, w.Body.String(), "data:")
}

func bootstrap(t *testing.T, s *Server) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bootstrap", strings.NewReader(bootstrapJSON))
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
