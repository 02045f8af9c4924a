package main

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/store"
)

type createGameReq struct {
	Seed int64 `json:"seed,omitempty"`
}

type createGameResp struct {
	GameID    string `json:"game_id"`
	Code      string `json:"code"`
	HostToken string `json:"host_token"`
	WSPath    string `json:"ws_path"`
}

type gameSummary struct {
	GameID      string     `json:"game_id"`
	Code        string     `json:"code"`
	Phase       game.Phase `json:"phase"`
	Turn        int        `json:"turn"`
	MaxTurns    int        `json:"max_turns"`
	Paused      bool       `json:"paused"`
	ActiveTeams int        `json:"active_teams"`
	CreatedAt   time.Time  `json:"created_at"`
}

func summarize(rt *room.Runtime) gameSummary {
	v := rt.Latest()
	active := 0
	for _, t := range v.Teams {
		if t.Active() {
			active++
		}
	}
	return gameSummary{
		GameID:      v.GameID,
		Code:        v.Code,
		Phase:       v.Phase,
		Turn:        v.Turn,
		MaxTurns:    v.MaxTurns,
		Paused:      v.Paused,
		ActiveTeams: active,
		CreatedAt:   rt.CreatedAt(),
	}
}

// seedSource hands out game seeds when the client does not pick one.
type seedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *seedSource) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63()
}

func (h *gameHost) routes(seeds *seedSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /v1/games", func(rw http.ResponseWriter, r *http.Request) {
		var req createGameReq
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096)).Decode(&req); err != nil {
				writeJSONError(rw, http.StatusBadRequest, "bad json")
				return
			}
		}
		seed := req.Seed
		if seed == 0 {
			seed = seeds.next()
		}
		rt, err := h.create(seed)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrFull) || errors.Is(err, store.ErrCodeSpace) {
				status = http.StatusServiceUnavailable
			}
			writeJSONError(rw, status, err.Error())
			return
		}
		h.logger.Printf("created game=%s code=%s seed=%d", rt.ID(), rt.Code(), seed)
		writeJSON(rw, http.StatusCreated, createGameResp{
			GameID:    rt.ID(),
			Code:      rt.Code(),
			HostToken: rt.HostToken(),
			WSPath:    "/v1/ws",
		})
	})

	mux.HandleFunc("GET /v1/games", func(rw http.ResponseWriter, r *http.Request) {
		list := h.games.List()
		out := make([]gameSummary, 0, len(list))
		for _, rt := range list {
			out = append(out, summarize(rt))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		writeJSON(rw, http.StatusOK, out)
	})

	// Public spectator view by join code.
	mux.HandleFunc("GET /v1/games/{code}", func(rw http.ResponseWriter, r *http.Request) {
		rt, ok := h.games.ByCode(r.PathValue("code"))
		if !ok {
			writeJSONError(rw, http.StatusNotFound, "game not found")
			return
		}
		writeJSON(rw, http.StatusOK, rt.Latest().For(game.RoleSpectator, ""))
	})

	mux.HandleFunc("GET /v1/games/{code}/history", func(rw http.ResponseWriter, r *http.Request) {
		rt, ok := h.hostAuth(rw, r)
		if !ok {
			return
		}
		hist, err := rt.History(r.Context())
		if err != nil {
			writeJSONError(rw, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(rw, http.StatusOK, hist)
	})

	mux.HandleFunc("POST /v1/games/{code}/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		rt, ok := h.hostAuth(rw, r)
		if !ok {
			return
		}
		if err := rt.RequestSnapshot(r.Context()); err != nil {
			writeJSONError(rw, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true})
	})

	mux.HandleFunc("DELETE /v1/games/{code}", func(rw http.ResponseWriter, r *http.Request) {
		rt, ok := h.hostAuth(rw, r)
		if !ok {
			return
		}
		h.remove(rt.ID())
		h.logger.Printf("closed game=%s code=%s", rt.ID(), rt.Code())
		rw.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// hostAuth resolves {code} and checks the X-Host-Token header.
func (h *gameHost) hostAuth(rw http.ResponseWriter, r *http.Request) (*room.Runtime, bool) {
	rt, ok := h.games.ByCode(r.PathValue("code"))
	if !ok {
		writeJSONError(rw, http.StatusNotFound, "game not found")
		return nil, false
	}
	if !rt.CheckHost(strings.TrimSpace(r.Header.Get("X-Host-Token"))) {
		writeJSONError(rw, http.StatusForbidden, "bad host token")
		return nil, false
	}
	return rt, true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeJSONError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
