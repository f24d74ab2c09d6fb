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
// Package httpapi wraps internal/runtime.Engine in JSON/HTTP, including an
// SSE feed of committed events, following the teacher's pkg/server.HTTPServer
// shape (plain http.ServeMux, a hand-rolled CORS middleware, an SSE handler
// built on http.Flusher) without the gRPC-gateway layer that server has no
// analogue for here.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/pubsub"
	"github.com/tumluliu/spacxt/internal/router"
	"github.com/tumluliu/spacxt/internal/runtime"
)

// Server wraps a runtime.Engine in an HTTP surface.
type Server struct {
	engine *runtime.Engine
	logger *zap.Logger
	http   *http.Server
	reg    *prometheus.Registry
}

// NewServer builds a Server bound to addr. Call ListenAndServe to run it.
func NewServer(engine *runtime.Engine, addr string, reg *prometheus.Registry) *Server {
	s := &Server{engine: engine, logger: engine.Logger(), reg: reg}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/bootstrap", s.handleBootstrap)
	mux.HandleFunc("/tick", s.handleTick)
	mux.HandleFunc("/intent", s.handleIntent)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/events", s.handleEvents)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections are long-lived
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// ListenAndServe runs the HTTP server until it errors or is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info("httpapi: listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := readBody(w, r, 4<<20)
	if err != nil {
		writeErr(w, err)
		return
	}
	ev, err := s.engine.LoadBootstrap(raw, originOf(r, "http-bootstrap"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.engine.Tick(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := readBody(w, r, 1<<20)
	if err != nil {
		writeErr(w, err)
		return
	}
	intent, err := router.ParseIntentJSON(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	ev, err := s.engine.ApplyIntent(intent, originOf(r, "http-intent"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		writeErr(w, errkind.New(errkind.BadIntent, "missing required query parameter 'q'"))
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Ask(question))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleEvents streams every committed event as an SSE feed, one JSON
// object per "data:" line, matching the teacher's handleStreamWeaveSSE
// Content-Type/Flusher idiom.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan []byte, 16)
	unsubscribe := s.engine.Subscribe(func(ev pubsub.Event[runtime.EngineEvent]) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		select {
		case events <- data:
		default:
			// Slow consumer: drop rather than block the commit path.
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-events:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func originOf(r *http.Request, fallback string) string {
	if o := r.Header.Get("X-Spacxt-Origin"); o != "" {
		return o
	}
	return fallback
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, errkind.Wrap(errkind.BadIntent, "failed to read request body", err)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if k, ok := errkind.As(err); ok {
		switch k.Kind {
		case errkind.NotFound:
			status = http.StatusNotFound
		case errkind.Timeout:
			status = http.StatusGatewayTimeout
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
