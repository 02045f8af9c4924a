// Package snapshot stores restorable game state on disk.
//
// A file is a compressed stream holding one JSON header line followed by a
// gob-encoded SnapshotV1. The codec follows the file extension: ".snap.lz4"
// uses lz4 (cheap autosaves), anything else zstd.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"kienquoc.game/internal/sim/game"
)

const Version = 1

const (
	ExtZstd = ".snap.zst"
	ExtLZ4  = ".snap.lz4"
)

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version   int    `json:"version"`
	GameID    string `json:"game_id"`
	Turn      int    `json:"turn"`
	Phase     string `json:"phase"`
	HostToken string `json:"host_token,omitempty"`
}

type SnapshotV1 struct {
	Header Header        `json:"header"`
	Game   game.Snapshot `json:"game"`
}

var phaseRank = map[string]int{
	"lobby":      0,
	"event":      1,
	"action":     2,
	"resolution": 3,
	"result":     4,
	"finished":   5,
}

// Step orders snapshots of one game: turn-major, then phase.
func Step(turn int, phase string) uint64 {
	return uint64(turn)*10 + uint64(phaseRank[phase])
}

// FileName is the conventional name for a snapshot taken at h.
func FileName(h Header, ext string) string {
	if ext == "" {
		ext = ExtZstd
	}
	return fmt.Sprintf("%05d%s", Step(h.Turn, h.Phase), ext)
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, path, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f io.Writer, path string, snap SnapshotV1) error {
	var cw io.WriteCloser
	if strings.HasSuffix(path, ExtLZ4) {
		cw = lz4.NewWriter(f)
	} else {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		cw = enc
	}

	bw := bufio.NewWriterSize(cw, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = cw.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = cw.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = cw.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	var r io.Reader
	if strings.HasSuffix(path, ExtLZ4) {
		r = lz4.NewReader(f)
	} else {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return snap, err
		}
		defer dec.Close()
		r = dec
	}
	br := bufio.NewReaderSize(r, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("parse header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	var r io.Reader
	if strings.HasSuffix(path, ExtLZ4) {
		r = lz4.NewReader(f)
	} else {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return h, err
		}
		defer dec.Close()
		r = dec
	}
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

// Latest returns the snapshot in dir with the highest step, or "" if none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var best string
	var bestStep uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(strings.TrimSuffix(name, ExtZstd), ExtLZ4)
		if base == name {
			continue
		}
		step, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || step >= bestStep {
			bestStep = step
			best = filepath.Join(dir, name)
		}
	}
	return best, nil
}
