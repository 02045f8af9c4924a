package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kienquoc.game/internal/persistence/archive"
	persistlog "kienquoc.game/internal/persistence/log"
	"kienquoc.game/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// gameRow summarizes one game directory from its newest snapshot.
type gameRow struct {
	GameID   string `json:"game_id"`
	Turn     int    `json:"turn"`
	Phase    string `json:"phase"`
	Snapshot string `json:"snapshot,omitempty"`
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	rows, err := listGames(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(os.Stdout, r)
	}
}

func listGames(dataDir string) ([]gameRow, error) {
	ents, err := os.ReadDir(filepath.Join(dataDir, "games"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []gameRow
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		row := gameRow{GameID: e.Name(), Phase: "lobby"}
		path, err := snapshot.Latest(filepath.Join(dataDir, "games", e.Name(), "snapshots"))
		if err != nil {
			return nil, err
		}
		if path != "" {
			h, err := snapshot.ReadHeader(path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			row.Turn, row.Phase, row.Snapshot = h.Turn, h.Phase, filepath.Base(path)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id (optional; default lists every archive)")
	_ = fs.Parse(args)

	ids := []string{strings.TrimSpace(*gameID)}
	if ids[0] == "" {
		ents, err := os.ReadDir(filepath.Join(*dataDir, "archives"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read archives:", err)
			os.Exit(1)
		}
		ids = ids[:0]
		for _, e := range ents {
			if e.IsDir() {
				ids = append(ids, e.Name())
			}
		}
	}
	for _, id := range ids {
		m, err := archive.ReadMeta(*dataDir, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			continue
		}
		printJSON(os.Stdout, m)
	}
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id")
	turn := fs.Int("turn", 0, "only entries of this turn (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*gameID) == "" {
		fmt.Fprintln(os.Stderr, "missing -game")
		os.Exit(2)
	}
	entries, err := persistlog.ReadAudit(filepath.Join(*dataDir, "games", *gameID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if *turn != 0 && e.Turn != *turn {
			continue
		}
		printJSON(os.Stdout, e)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
