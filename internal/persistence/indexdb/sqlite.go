package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	counters
}

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqAudit
	reqGame
	reqGameOver
	reqSnapshot
)

type req struct {
	kind reqKind

	turn     room.TurnLogEntry
	audit    room.AuditEntry
	game     room.GameMeta
	gameID   string
	over     model.GameOverState
	snapshot snapshotRow
}

type snapshotRow struct {
	GameID     string
	Turn       int
	Phase      string
	Path       string
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			teams_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_games_code ON games(code);`,
		`CREATE TABLE IF NOT EXISTS turns (
			game_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			digest TEXT NOT NULL,
			project_success INTEGER NOT NULL,
			project_total_rp INTEGER NOT NULL,
			contributing_teams INTEGER NOT NULL,
			fixed_modifier TEXT,
			random_modifier TEXT,
			indices_before TEXT NOT NULL,
			indices_after TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (game_id, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS team_turns (
			game_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			team_id TEXT NOT NULL,
			rp_placed INTEGER NOT NULL,
			cell REAL NOT NULL,
			project REAL NOT NULL,
			underdog REAL NOT NULL,
			modifier REAL NOT NULL,
			total REAL NOT NULL,
			PRIMARY KEY (game_id, turn, team_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_team_turns_team ON team_turns(team_id, game_id);`,
		`CREATE TABLE IF NOT EXISTS game_over (
			game_id TEXT PRIMARY KEY,
			reason TEXT NOT NULL,
			zero_index TEXT,
			turns_played INTEGER NOT NULL,
			winner_team_id TEXT,
			final_indices TEXT NOT NULL,
			ranking_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			time TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_game_turn ON audits(game_id, turn);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			game_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			phase TEXT NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (game_id, turn, phase)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	return QueueStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
		FailedTotal:   s.failed.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) WriteTurn(entry room.TurnLogEntry) error {
	s.enqueue(req{kind: reqTurn, turn: entry})
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry room.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordGame(meta room.GameMeta) {
	s.enqueue(req{kind: reqGame, game: meta})
}

func (s *SQLiteIndex) RecordGameOver(gameID string, st model.GameOverState) {
	s.enqueue(req{kind: reqGameOver, gameID: gameID, over: st})
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		GameID:     snap.Header.GameID,
		Turn:       snap.Header.Turn,
		Phase:      snap.Header.Phase,
		Path:       path,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range catalogRows(configDir, cats, tune) {
		if _, err := stmt.Exec(r.Name, r.Digest, string(r.JSON), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.failed.Add(1)
			continue
		}
		n, err := s.apply(tx, r)
		if err != nil {
			rollback()
			continue
		}
		opCount += n
		// Game lifecycle rows are rare and read by admin tools right away.
		if r.kind == reqGame || r.kind == reqGameOver || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) apply(tx *sql.Tx, r req) (int, error) {
	switch r.kind {
	case reqTurn:
		return insertTurn(tx, r.turn)
	case reqAudit:
		a := r.audit
		raw, _ := json.Marshal(a)
		_, err := tx.Exec(`INSERT INTO audits(game_id,turn,actor,action,time,raw_json) VALUES(?,?,?,?,?,?)`,
			a.GameID, a.Turn, a.Actor, a.Action, a.Time.UTC().Format(time.RFC3339Nano), string(raw))
		return 1, err
	case reqGame:
		g := r.game
		teams, _ := json.Marshal(g.Teams)
		_, err := tx.Exec(`INSERT OR REPLACE INTO games(game_id,code,seed,created_at,teams_json) VALUES(?,?,?,?,?)`,
			g.ID, g.Code, g.Seed, g.CreatedAt.UTC().Format(time.RFC3339Nano), string(teams))
		return 1, err
	case reqGameOver:
		st := r.over
		winner := ""
		if len(st.Ranking) > 0 {
			winner = st.Ranking[0].TeamID
		}
		ix, _ := json.Marshal(st.FinalIndices)
		ranking, _ := json.Marshal(st.Ranking)
		_, err := tx.Exec(`INSERT OR REPLACE INTO game_over(game_id,reason,zero_index,turns_played,winner_team_id,final_indices,ranking_json,recorded_at) VALUES(?,?,?,?,?,?,?,?)`,
			r.gameID, string(st.Reason), st.ZeroIndex, st.TurnsPlayed, winner, string(ix), string(ranking), time.Now().UTC().Format(time.RFC3339Nano))
		return 1, err
	case reqSnapshot:
		sn := r.snapshot
		_, err := tx.Exec(`INSERT OR REPLACE INTO snapshots(game_id,turn,phase,path,recorded_at) VALUES(?,?,?,?,?)`,
			sn.GameID, sn.Turn, sn.Phase, sn.Path, sn.RecordedAt)
		return 1, err
	}
	return 0, nil
}

func insertTurn(tx *sql.Tx, e room.TurnLogEntry) (int, error) {
	h := e.History
	raw, _ := json.Marshal(e)
	before, _ := json.Marshal(h.IndicesBefore)
	after, _ := json.Marshal(h.IndicesAfter)
	if _, err := tx.Exec(`INSERT OR REPLACE INTO turns(game_id,turn,digest,project_success,project_total_rp,contributing_teams,fixed_modifier,random_modifier,indices_before,indices_after,recorded_at,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.GameID, h.Turn, h.Digest, boolInt(h.ProjectSuccess), e.Result.ProjectTotalRP, e.Result.ContributingTeams,
		h.FixedModifier, h.RandomModifier, string(before), string(after),
		e.Time.UTC().Format(time.RFC3339Nano), string(raw)); err != nil {
		return 0, err
	}
	n := 1
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO team_turns(game_id,turn,team_id,rp_placed,cell,project,underdog,modifier,total) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return n, err
	}
	defer stmt.Close()
	for _, p := range h.Points {
		if _, err := stmt.Exec(e.GameID, h.Turn, p.TeamID, h.Placements[p.TeamID].Total(),
			p.Cell, p.Project, p.Underdog, p.Modifier, p.Total); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
