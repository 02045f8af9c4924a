package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/store"
	"kienquoc.game/internal/sim/tuning"
)

func newTestHost(t *testing.T, dataDir string) (*gameHost, context.CancelFunc) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	h := &gameHost{
		ctx:     ctx,
		dataDir: dataDir,
		cats:    cats,
		tune:    tuning.Defaults(),
		games:   store.NewMem(rand.New(rand.NewSource(42)), 0),
		opts:    room.Options{Logger: quiet},
		logger:  quiet,
	}
	return h, func() {
		cancel()
		h.wait()
	}
}

func TestHTTP_GameLifecycle(t *testing.T) {
	h, stop := newTestHost(t, t.TempDir())
	defer stop()
	ts := httptest.NewServer(h.routes(&seedSource{rng: rand.New(rand.NewSource(1))}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/games", "application/json", strings.NewReader(`{"seed":77}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var created createGameResp
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || len(created.Code) != store.CodeLength || created.HostToken == "" {
		t.Fatalf("create: status=%d body=%+v", resp.StatusCode, created)
	}

	resp, err = http.Get(ts.URL + "/v1/games")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []gameSummary
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].GameID != created.GameID || list[0].Phase != game.PhaseLobby {
		t.Fatalf("list: %+v", list)
	}

	resp, err = http.Get(ts.URL + "/v1/games/" + created.Code)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	var view game.View
	_ = json.NewDecoder(resp.Body).Decode(&view)
	resp.Body.Close()
	if view.GameID != created.GameID || len(view.Teams) == 0 {
		t.Fatalf("view: %+v", view)
	}

	resp, err = http.Get(ts.URL + "/v1/games/999999x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown code: %d", resp.StatusCode)
	}

	del := func(token string) int {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/games/"+created.Code, nil)
		req.Header.Set("X-Host-Token", token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := del("wrong"); code != http.StatusForbidden {
		t.Fatalf("delete with bad token: %d", code)
	}
	if code := del(created.HostToken); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if h.games.Len() != 0 {
		t.Fatalf("game still registered")
	}
}

func TestHTTP_RejectsBadJSON(t *testing.T) {
	h, stop := newTestHost(t, t.TempDir())
	defer stop()
	ts := httptest.NewServer(h.routes(&seedSource{rng: rand.New(rand.NewSource(1))}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/games", "application/json", bytes.NewReader([]byte(`{"seed":`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestHost_SnapshotAndRestore(t *testing.T) {
	dataDir := t.TempDir()
	h, stop := newTestHost(t, dataDir)
	rt, err := h.create(11)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Start(ctx, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	// event -> action -> resolution writes the first autosave.
	for i := 0; i < 2; i++ {
		if _, err := rt.Advance(ctx); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	snapDir := filepath.Join(dataDir, "games", rt.ID(), "snapshots")
	var latest string
	deadline := time.Now().Add(5 * time.Second)
	for latest == "" && time.Now().Before(deadline) {
		latest, _ = snapshot.Latest(snapDir)
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.HasSuffix(latest, snapshot.ExtLZ4) {
		t.Fatalf("autosave: %q", latest)
	}
	id, code, token := rt.ID(), rt.Code(), rt.HostToken()
	stop()

	if _, err := os.Stat(filepath.Join(dataDir, "games", id, "turns")); err != nil {
		t.Fatalf("turn log dir: %v", err)
	}

	h2, stop2 := newTestHost(t, dataDir)
	defer stop2()
	n, err := h2.restoreAll()
	if err != nil || n != 1 {
		t.Fatalf("restoreAll: n=%d err=%v", n, err)
	}
	rt2, ok := h2.games.ByCode(code)
	if !ok || rt2.ID() != id {
		t.Fatalf("restored game not found by code %s", code)
	}
	if !rt2.CheckHost(token) {
		t.Fatalf("host token not restored")
	}
	v := rt2.Latest()
	if v.Turn != 1 || v.Phase != game.PhaseResolution {
		t.Fatalf("restored at turn=%d phase=%s", v.Turn, v.Phase)
	}
}
