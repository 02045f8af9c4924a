package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"kienquoc.game/internal/sim/room"
)

// ScanFile calls fn for every line of one .jsonl.zst file.
func ScanFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Files lists dir/<prefix>-*.jsonl.zst in chronological order.
func Files(dir, prefix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadTurns loads every turn entry recorded under gameDir, oldest first.
func ReadTurns(gameDir string) ([]room.TurnLogEntry, error) {
	files, err := Files(filepath.Join(gameDir, "turns"), "turns")
	if err != nil {
		return nil, err
	}
	var out []room.TurnLogEntry
	for _, p := range files {
		err := ScanFile(p, func(line []byte) error {
			var e room.TurnLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func ReadAudit(gameDir string) ([]room.AuditEntry, error) {
	files, err := Files(filepath.Join(gameDir, "audit"), "audit")
	if err != nil {
		return nil, err
	}
	var out []room.AuditEntry
	for _, p := range files {
		err := ScanFile(p, func(line []byte) error {
			var e room.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
