package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/tuning"
)

// D1Config points at an HTTP ingest endpoint (e.g. a Cloudflare Worker in
// front of D1) that accepts {"events":[...]} batches.
type D1Config struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	counters
}

type d1Event struct {
	Kind     string `json:"kind"`
	ServerID string `json:"server_id"`
	GameID   string `json:"game_id,omitempty"`
	Payload  any    `json:"payload"`
}

type d1TurnPayload struct {
	Turn           int                    `json:"turn"`
	Digest         string                 `json:"digest"`
	ProjectSuccess bool                   `json:"project_success"`
	FixedModifier  string                 `json:"fixed_modifier,omitempty"`
	RandomModifier string                 `json:"random_modifier,omitempty"`
	IndicesAfter   model.Indices          `json:"indices_after"`
	Points         []model.PointBreakdown `json:"points"`
}

type d1GamePayload struct {
	Code      string           `json:"code"`
	Seed      int64            `json:"seed"`
	CreatedAt string           `json:"created_at"`
	Teams     []model.TeamMeta `json:"teams"`
}

type d1SnapshotPayload struct {
	Turn  int    `json:"turn"`
	Phase string `json:"phase"`
	Path  string `json:"path"`
}

type d1CatalogPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &D1Index{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan d1Event, 4096),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Stats() QueueStats {
	return QueueStats{
		QueueDepth:    len(d.ch),
		QueueCapacity: cap(d.ch),
		DroppedTotal:  d.dropped.Load(),
		FailedTotal:   d.failed.Load(),
	}
}

func (d *D1Index) WriteTurn(e room.TurnLogEntry) error {
	h := e.History
	d.enqueue(d1Event{Kind: "turn", GameID: e.GameID, Payload: d1TurnPayload{
		Turn:           h.Turn,
		Digest:         h.Digest,
		ProjectSuccess: h.ProjectSuccess,
		FixedModifier:  h.FixedModifier,
		RandomModifier: h.RandomModifier,
		IndicesAfter:   h.IndicesAfter,
		Points:         h.Points,
	}})
	return nil
}

func (d *D1Index) WriteAudit(e room.AuditEntry) error {
	d.enqueue(d1Event{Kind: "audit", GameID: e.GameID, Payload: e})
	return nil
}

func (d *D1Index) RecordGame(meta room.GameMeta) {
	d.enqueue(d1Event{Kind: "game", GameID: meta.ID, Payload: d1GamePayload{
		Code:      meta.Code,
		Seed:      meta.Seed,
		CreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		Teams:     meta.Teams,
	}})
}

func (d *D1Index) RecordGameOver(gameID string, st model.GameOverState) {
	d.enqueue(d1Event{Kind: "game_over", GameID: gameID, Payload: st})
}

func (d *D1Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	d.enqueue(d1Event{Kind: "snapshot", GameID: snap.Header.GameID, Payload: d1SnapshotPayload{
		Turn:  snap.Header.Turn,
		Phase: snap.Header.Phase,
		Path:  path,
	}})
}

func (d *D1Index) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range catalogRows(configDir, cats, tune) {
		d.enqueue(d1Event{Kind: "catalog", Payload: d1CatalogPayload{
			Name:      r.Name,
			Digest:    r.Digest,
			JSON:      string(r.JSON),
			UpdatedAt: now,
		}})
	}
	return nil
}

func (d *D1Index) enqueue(ev d1Event) {
	if d == nil || d.closed.Load() {
		return
	}
	ev.ServerID = d.cfg.ServerID
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s game=%s", ev.Kind, ev.GameID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.failed.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			// Keep the batch for the next tick unless it is growing unbounded.
			if len(batch) < 4*d.cfg.BatchSize {
				return
			}
			d.dropped.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-kq-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(50*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
