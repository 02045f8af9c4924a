package room

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

type recorder struct {
	mu     sync.Mutex
	turns  []TurnLogEntry
	audits []AuditEntry
	games  []GameMeta
	overs  []model.GameOverState
}

func (r *recorder) WriteTurn(e TurnLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, e)
	return nil
}

func (r *recorder) WriteAudit(e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, e)
	return nil
}

func (r *recorder) RecordGame(m GameMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, m)
}

func (r *recorder) RecordGameOver(_ string, st model.GameOverState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overs = append(r.overs, st)
}

func (r *recorder) counts() (turns, audits, games, overs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns), len(r.audits), len(r.games), len(r.overs)
}

func newRuntime(t *testing.T, seed int64, opts Options) (*Runtime, *recorder) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	g := game.New(game.Config{ID: "room-test", Code: "654321", Seed: seed}, tuning.Defaults(), cats)
	opts.Logger = log.New(io.Discard, "", 0)
	r := New(g, opts)
	rec := &recorder{}
	r.SetTurnLogger(rec)
	r.SetAuditLogger(rec)
	r.SetIndex(rec)
	return r, rec
}

func waitFor(t *testing.T, sub Subscription, cond func(Update) bool) Update {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-sub.C:
			if !ok {
				t.Fatalf("subscription closed")
			}
			if cond(u) {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for update")
		}
	}
}

func TestRuntime_ManualTurn(t *testing.T) {
	r, rec := newRuntime(t, 7, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	if _, err := r.Claim(ctx, "thu-do"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	sub, err := r.Subscribe(ctx, game.RolePlayer, "thu-do")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(t, sub, func(u Update) bool { return u.View.Phase == game.PhaseLobby })

	if err := r.Start(ctx, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := r.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := r.SetPlacements(ctx, "thu-do", model.Placements{"cell-1-1": 14}); err != nil {
		t.Fatalf("set placements: %v", err)
	}
	if err := r.Submit(ctx, "thu-do"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Submit(ctx, "thu-do"); !errors.Is(err, game.ErrAlreadySubmitted) {
		t.Fatalf("second submit: %v", err)
	}
	tr, err := r.Advance(ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if tr.To != game.PhaseResolution || tr.Result == nil {
		t.Fatalf("transition: %+v", tr)
	}

	u := waitFor(t, sub, func(u Update) bool {
		return u.Transition != nil && u.Transition.To == game.PhaseResolution
	})
	for _, tv := range u.View.Teams {
		if tv.ID != "thu-do" && tv.Placements != nil {
			t.Fatalf("player sees placements of %s", tv.ID)
		}
	}
	if u.View.LastResult == nil || u.View.LastResult.Turn != 1 {
		t.Fatalf("update has no turn result")
	}

	turns, audits, games, _ := rec.counts()
	if turns != 1 || games != 1 || audits < 4 {
		t.Fatalf("hooks: turns=%d audits=%d games=%d", turns, audits, games)
	}

	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("runtime did not stop")
	}
	for range sub.C {
	}
	if err := r.Submit(context.Background(), "thu-do"); !errors.Is(err, ErrStopped) {
		t.Fatalf("request after stop: %v", err)
	}
}

func TestRuntime_AutoAdvanceToFinish(t *testing.T) {
	r, rec := newRuntime(t, 9, Options{AutoAdvance: true, DurationScale: 0.0001})
	sink := make(chan snapshot.SnapshotV1, 64)
	r.SetSnapshotSink(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	sub, err := r.Subscribe(ctx, game.RoleSpectator, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Start(ctx, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, sub, func(u Update) bool { return u.View.Phase == game.PhaseFinished })

	v := r.Latest()
	if v.GameOver == nil || len(v.GameOver.Ranking) != 6 {
		t.Fatalf("latest view has no game over: %+v", v.GameOver)
	}
	turns, _, games, overs := rec.counts()
	if turns != v.GameOver.TurnsPlayed || games != 1 || overs != 1 {
		t.Fatalf("hooks: turns=%d games=%d overs=%d", turns, games, overs)
	}
	if len(sink) == 0 {
		t.Fatalf("no snapshots emitted")
	}
	var last snapshot.SnapshotV1
	for len(sink) > 0 {
		last = <-sink
	}
	if last.Header.GameID != "room-test" || last.Header.HostToken != r.HostToken() || last.Game.Over == nil {
		t.Fatalf("final snapshot: %+v", last.Header)
	}
}

func TestRuntime_PauseHoldsTimer(t *testing.T) {
	r, _ := newRuntime(t, 3, Options{AutoAdvance: true, DurationScale: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	if _, err := r.Claim(ctx, "thu-do"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := r.Start(ctx, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	v, err := r.View(ctx, game.RoleHost, "")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Phase != game.PhaseEvent || !v.Paused {
		t.Fatalf("paused game moved to %s", v.Phase)
	}
	if err := r.Unpause(ctx); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for r.Latest().Phase == game.PhaseEvent {
		if time.Now().After(deadline) {
			t.Fatalf("timer did not resume")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRuntime_HostToken(t *testing.T) {
	r, _ := newRuntime(t, 1, Options{})
	if r.CheckHost("") || r.CheckHost("x") || !r.CheckHost(r.HostToken()) {
		t.Fatalf("host token check")
	}
	r.SetHostToken("restored")
	if !r.CheckHost("restored") {
		t.Fatalf("host token not replaced")
	}
}

type brokenAudit struct{}

func (brokenAudit) WriteAudit(AuditEntry) error { return errors.New("disk full") }

func TestRuntime_LogsAuditWriteFailure(t *testing.T) {
	r, _ := newRuntime(t, 2, Options{})
	var buf bytes.Buffer
	r.logger = log.New(&buf, "", 0)
	r.SetAuditLogger(brokenAudit{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	if _, err := r.Claim(ctx, "thu-do"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	r.Stop()
	<-r.Done()
	if got := buf.String(); !strings.Contains(got, "audit log CLAIM: disk full") {
		t.Fatalf("log: %q", got)
	}
}
