package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/games.sqlite)")
	gameID := fs.String("game", "", "game_id filter")
	teamID := fs.String("team", "", "team_id filter (teams)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "games"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "games.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	err = runQuery(db, os.Stdout, q, queryFilter{GameID: strings.TrimSpace(*gameID), TeamID: strings.TrimSpace(*teamID), Limit: *limit})
	if err == errUnknownQuery {
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-game G] [-team T] games|turns|teams|game_over|audits|snapshots|catalogs|standings")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

type queryFilter struct {
	GameID string
	TeamID string
	Limit  int
}

var errUnknownQuery = errors.New("unknown query")

type querySpec struct {
	sql     string
	columns []string
	// filters lists the queryFilter fields bound to ? placeholders, in order.
	filters []string
}

// Every query takes the optional filters as `(?='' OR col=?)` pairs and a
// trailing LIMIT.
var queries = map[string]querySpec{
	"games": {
		sql: `SELECT g.game_id,g.code,g.seed,g.created_at,COALESCE(o.reason,''),COALESCE(o.winner_team_id,''),(SELECT COUNT(*) FROM turns t WHERE t.game_id=g.game_id)
			FROM games g LEFT JOIN game_over o ON o.game_id=g.game_id
			WHERE (?='' OR g.game_id=?) ORDER BY g.created_at DESC LIMIT ?`,
		columns: []string{"game_id", "code", "seed", "created_at", "reason", "winner", "turns"},
		filters: []string{"game", "game"},
	},
	"turns": {
		sql: `SELECT game_id,turn,digest,project_success,project_total_rp,contributing_teams,COALESCE(fixed_modifier,''),COALESCE(random_modifier,''),indices_after
			FROM turns WHERE (?='' OR game_id=?) ORDER BY game_id,turn LIMIT ?`,
		columns: []string{"game_id", "turn", "digest", "project_success", "project_total_rp", "contributing_teams", "fixed_modifier", "random_modifier", "indices_after"},
		filters: []string{"game", "game"},
	},
	"teams": {
		sql: `SELECT game_id,turn,team_id,rp_placed,cell,project,underdog,modifier,total
			FROM team_turns WHERE (?='' OR game_id=?) AND (?='' OR team_id=?) ORDER BY game_id,turn,team_id LIMIT ?`,
		columns: []string{"game_id", "turn", "team_id", "rp_placed", "cell", "project", "underdog", "modifier", "total"},
		filters: []string{"game", "game", "team", "team"},
	},
	"standings": {
		sql: `SELECT game_id,team_id,SUM(rp_placed),SUM(total)
			FROM team_turns WHERE (?='' OR game_id=?) GROUP BY game_id,team_id ORDER BY game_id,SUM(total) DESC LIMIT ?`,
		columns: []string{"game_id", "team_id", "rp_placed", "points"},
		filters: []string{"game", "game"},
	},
	"game_over": {
		sql: `SELECT game_id,reason,COALESCE(zero_index,''),turns_played,COALESCE(winner_team_id,''),final_indices,recorded_at
			FROM game_over WHERE (?='' OR game_id=?) ORDER BY recorded_at DESC LIMIT ?`,
		columns: []string{"game_id", "reason", "zero_index", "turns_played", "winner", "final_indices", "recorded_at"},
		filters: []string{"game", "game"},
	},
	"audits": {
		sql: `SELECT game_id,turn,actor,action,time
			FROM audits WHERE (?='' OR game_id=?) ORDER BY id DESC LIMIT ?`,
		columns: []string{"game_id", "turn", "actor", "action", "time"},
		filters: []string{"game", "game"},
	},
	"snapshots": {
		sql: `SELECT game_id,turn,phase,path,recorded_at
			FROM snapshots WHERE (?='' OR game_id=?) ORDER BY recorded_at DESC LIMIT ?`,
		columns: []string{"game_id", "turn", "phase", "path", "recorded_at"},
		filters: []string{"game", "game"},
	},
	"catalogs": {
		sql:     `SELECT name,digest,updated_at FROM catalogs ORDER BY name LIMIT ?`,
		columns: []string{"name", "digest", "updated_at"},
	},
}

// runQuery prints one JSON object per row.
func runQuery(db *sql.DB, w io.Writer, name string, f queryFilter) error {
	qs, ok := queries[name]
	if !ok {
		return errUnknownQuery
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	args := make([]any, 0, len(qs.filters)+1)
	for _, k := range qs.filters {
		switch k {
		case "game":
			args = append(args, f.GameID)
		case "team":
			args = append(args, f.TeamID)
		}
	}
	args = append(args, f.Limit)

	rows, err := db.Query(qs.sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		vals := make([]any, len(qs.columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		obj := make(map[string]any, len(vals))
		for i, c := range qs.columns {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			obj[c] = vals[i]
		}
		printJSON(w, obj)
	}
	return rows.Err()
}
