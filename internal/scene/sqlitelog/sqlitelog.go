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
// Package sqlitelog is the optional durable event-log backend selected by
// config.StorageConfig.Backend == "sqlite" (spec.md's in-memory event slice
// is the default). It persists a checkpoint snapshot after every committed
// event so a crashed process can resume from the last commit instead of
// replaying from an empty store, the way the teacher's
// pkg/observability/storage.SQLiteStorage persists eval runs for durable
// lookup rather than keeping them only in memory.
package sqlitelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/scene"
)

// Log is a checkpointing durable event log backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite file at path and ensures its schema
// exists.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errkind.New(errkind.BadBootstrap, "sqlitelog: database path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadBootstrap, "sqlitelog: failed to open database", err)
	}
	db.SetMaxOpenConns(1) // single writer, matching the store's own single-writer-lock discipline

	l := &Log{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		seq          INTEGER PRIMARY KEY,
		timestamp    INTEGER NOT NULL,
		origin       TEXT NOT NULL,
		summary      TEXT NOT NULL,
		node_delta   INTEGER NOT NULL,
		rel_delta    INTEGER NOT NULL,
		warnings_json TEXT NOT NULL,
		snapshot_json TEXT NOT NULL,
		recorded_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_timestamp ON checkpoints(timestamp);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return errkind.Wrap(errkind.BadBootstrap, "sqlitelog: failed to init schema", err)
	}
	return nil
}

// snapshotDoc is the JSON shape persisted per checkpoint; it round-trips
// through scene.Node/scene.Relation directly, keeping it in lockstep with
// the in-memory Snapshot type rather than a hand-duplicated schema.
type snapshotDoc struct {
	Nodes     []*scene.Node     `json:"nodes"`
	Relations []*scene.Relation `json:"relations"`
}

// Sink returns a scene.EventSink that checkpoints every committed event.
// Wire it with store.Subscribe(log.Sink()).
func (l *Log) Sink() scene.EventSink {
	return func(ev scene.Event, snap scene.Snapshot) {
		if err := l.record(ev, snap); err != nil {
			// A checkpoint failure must never roll back an already-committed
			// in-memory patch; it only means durability lags the live store
			// until the next successful checkpoint.
			return
		}
	}
}

func (l *Log) record(ev scene.Event, snap scene.Snapshot) error {
	doc := snapshotDoc{Nodes: snap.Nodes, Relations: snap.Relations}
	snapJSON, err := json.Marshal(doc)
	if err != nil {
		return errkind.Wrap(errkind.BadBootstrap, "sqlitelog: failed to marshal snapshot", err)
	}
	warnJSON, err := json.Marshal(ev.Warnings)
	if err != nil {
		return errkind.Wrap(errkind.BadBootstrap, "sqlitelog: failed to marshal warnings", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO checkpoints (seq, timestamp, origin, summary, node_delta, rel_delta, warnings_json, snapshot_json, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO UPDATE SET
			timestamp = excluded.timestamp, origin = excluded.origin, summary = excluded.summary,
			node_delta = excluded.node_delta, rel_delta = excluded.rel_delta,
			warnings_json = excluded.warnings_json, snapshot_json = excluded.snapshot_json,
			recorded_at = excluded.recorded_at
	`, ev.Seq, ev.Stamp.Timestamp, ev.Stamp.Origin, ev.Summary, ev.NodeDelta, ev.RelDelta, string(warnJSON), string(snapJSON), time.Now().Unix())
	if err != nil {
		return errkind.Wrap(errkind.BadBootstrap, "sqlitelog: failed to insert checkpoint", err)
	}
	return nil
}

// LatestCheckpoint reports the highest seq value and whether the log has
// one at all.
func (l *Log) LatestCheckpoint() (seq int, ok bool, err error) {
	row := l.db.QueryRow(`SELECT seq FROM checkpoints ORDER BY seq DESC LIMIT 1`)
	if scanErr := row.Scan(&seq); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, errkind.Wrap(errkind.NotFound, "sqlitelog: failed to read latest checkpoint", scanErr)
	}
	return seq, true, nil
}

// Resume loads the most recent checkpoint's node/relation set, suitable for
// re-seeding a fresh *scene.Store via LoadBootstrap after a crash.
func (l *Log) Resume() (nodes []*scene.Node, relations []*scene.Relation, lastSeq int, err error) {
	seq, ok, err := l.LatestCheckpoint()
	if err != nil {
		return nil, nil, 0, err
	}
	if !ok {
		return nil, nil, 0, errkind.New(errkind.NotFound, "sqlitelog: no checkpoint recorded yet")
	}

	row := l.db.QueryRow(`SELECT snapshot_json FROM checkpoints WHERE seq = ?`, seq)
	var raw string
	if err := row.Scan(&raw); err != nil {
		return nil, nil, 0, errkind.Wrap(errkind.NotFound, "sqlitelog: failed to read checkpoint snapshot", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, nil, 0, errkind.Wrap(errkind.BadBootstrap, "sqlitelog: corrupt checkpoint snapshot", err)
	}
	return doc.Nodes, doc.Relations, seq, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
