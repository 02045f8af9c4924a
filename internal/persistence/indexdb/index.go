// Package indexdb keeps a queryable read model of games next to the JSONL
// logs. Writers are asynchronous and lossy under pressure: the logs stay the
// source of truth.
package indexdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/tuning"
)

// Index is implemented by every backend.
type Index interface {
	room.TurnLogger
	room.AuditLogger
	room.GameIndex
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Stats() QueueStats
	Close() error
}

type QueueStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DroppedTotal  uint64 `json:"dropped_total"`
	FailedTotal   uint64 `json:"failed_total"`
}

type counters struct {
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type catalogRow struct {
	Name   string
	Digest string
	JSON   []byte
}

// catalogRows returns the raw config files with their load digests plus the
// applied tuning as canonical JSON.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) []catalogRow {
	var rows []catalogRow
	if cats != nil && configDir != "" {
		files := []struct {
			name, file, digest string
		}{
			{"board", "board.json", cats.Board.Digest},
			{"events", "events.json", cats.Events.Digest},
			{"modifiers", "modifiers.json", cats.Modifiers.Digest},
			{"regions", "regions.json", cats.Regions.Digest},
		}
		for _, f := range files {
			b, err := os.ReadFile(filepath.Join(configDir, f.file))
			if err != nil || len(b) == 0 || f.digest == "" {
				continue
			}
			rows = append(rows, catalogRow{Name: f.name, Digest: f.digest, JSON: b})
		}
	}
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, catalogRow{Name: "tuning", Digest: tune.Digest(), JSON: b})
	}
	return rows
}

// Multi fans every call out to several backends.
type Multi []Index

func (m Multi) WriteTurn(e room.TurnLogEntry) error {
	var first error
	for _, idx := range m {
		if err := idx.WriteTurn(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) WriteAudit(e room.AuditEntry) error {
	var first error
	for _, idx := range m {
		if err := idx.WriteAudit(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) RecordGame(meta room.GameMeta) {
	for _, idx := range m {
		idx.RecordGame(meta)
	}
}

func (m Multi) RecordGameOver(gameID string, st model.GameOverState) {
	for _, idx := range m {
		idx.RecordGameOver(gameID, st)
	}
}

func (m Multi) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	for _, idx := range m {
		idx.RecordSnapshot(path, snap)
	}
}

func (m Multi) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	var first error
	for _, idx := range m {
		if err := idx.UpsertCatalogs(configDir, cats, tune); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Stats() QueueStats {
	var out QueueStats
	for _, idx := range m {
		st := idx.Stats()
		out.QueueDepth += st.QueueDepth
		out.QueueCapacity += st.QueueCapacity
		out.DroppedTotal += st.DroppedTotal
		out.FailedTotal += st.FailedTotal
	}
	return out
}

func (m Multi) Close() error {
	var first error
	for _, idx := range m {
		if err := idx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
