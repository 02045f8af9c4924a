package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"kienquoc.game/internal/persistence/snapshot"
)

type GameArchiveMeta struct {
	GameID      string   `json:"game_id"`
	Code        string   `json:"code"`
	Seed        int64    `json:"seed"`
	Reason      string   `json:"reason"`
	ZeroIndex   string   `json:"zero_index,omitempty"`
	TurnsPlayed int      `json:"turns_played"`
	Winner      string   `json:"winner,omitempty"`
	Digests     []string `json:"digests"`
	Snapshot    string   `json:"snapshot"`
	CreatedAt   string   `json:"created_at"`
}

// ArchiveGame copies the final snapshot of a finished game into
// `baseDir/archives/<game_id>/` next to a meta.json summary. Snapshots of
// unfinished games are not archived.
func ArchiveGame(baseDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	over := snap.Game.Over
	if over == nil || snap.Header.Phase != "finished" {
		return "", false, nil
	}
	if snap.Header.GameID == "" {
		return "", false, fmt.Errorf("archive: snapshot has no game id")
	}

	archiveDir := filepath.Join(baseDir, "archives", snap.Header.GameID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := GameArchiveMeta{
		GameID:      snap.Header.GameID,
		Code:        snap.Game.Code,
		Seed:        snap.Game.Seed,
		Reason:      string(over.Reason),
		ZeroIndex:   over.ZeroIndex,
		TurnsPlayed: over.TurnsPlayed,
		Snapshot:    filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(over.Ranking) > 0 {
		meta.Winner = over.Ranking[0].TeamID
	}
	for _, h := range snap.Game.History {
		meta.Digests = append(meta.Digests, h.Digest)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the meta.json of an archived game.
func ReadMeta(baseDir, gameID string) (GameArchiveMeta, error) {
	var m GameArchiveMeta
	b, err := os.ReadFile(filepath.Join(baseDir, "archives", gameID, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
