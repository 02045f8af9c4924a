package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/store"
	"kienquoc.game/internal/sim/tuning"
	"kienquoc.game/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		serverID   = flag.String("server_id", "kq-1", "server id reported to the index backend")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (turns/audit + catalogs + snapshot metadata)")
		maxGames   = flag.Int("max_games", 256, "maximum concurrent games (0 = unlimited)")
		timeScale  = flag.Float64("time_scale", 1, "multiplier for phase durations")
		noRestore  = flag.Bool("no_restore", false, "do not resume unfinished games from their latest snapshot")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	// Optional: read-model index backend (does not affect game determinism).
	idx, err := openIndex(*dataDir, *serverID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	mirror, err := openArchiveMirror(log.New(os.Stdout, "[archive] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("archive mirror: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	host := &gameHost{
		ctx:     ctx,
		dataDir: *dataDir,
		cats:    cats,
		tune:    tune,
		games:   store.NewMem(rand.New(rand.NewSource(time.Now().UnixNano())), *maxGames),
		idx:     idx,
		mirror:  mirror,
		opts: room.Options{
			AutoAdvance:      envBool("KQ_AUTO_ADVANCE", true),
			DurationScale:    *timeScale,
			SubscriberBuffer: envInt("KQ_SUBSCRIBER_BUFFER", 16),
			Logger:           log.New(os.Stdout, "[room] ", log.LstdFlags|log.Lmicroseconds),
		},
		logger: logger,
	}
	if !*noRestore {
		n, err := host.restoreAll()
		if err != nil {
			logger.Printf("restore: %v", err)
		}
		if n > 0 {
			logger.Printf("resumed %d game(s)", n)
		}
	}

	wsSrv := ws.NewServer(host.games, ws.Options{
		MessagesPerSecond: float64(envInt("KQ_WS_RATE", 10)),
		Burst:             envInt("KQ_WS_BURST", 20),
		Logger:            log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds),
	})

	seeds := &seedSource{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	mux := host.routes(seeds)
	mux.HandleFunc("GET /metrics", host.metricsHandler(wsSrv))
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if envBool("KQ_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only: exposes host tokens.
		mux.HandleFunc("GET /admin/v1/games", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			type row struct {
				gameSummary
				HostToken string `json:"host_token"`
			}
			var out []row
			for _, rt := range host.games.List() {
				out = append(out, row{gameSummary: summarize(rt), HostToken: rt.HostToken()})
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(out)
		})
	} else {
		logger.Printf("admin endpoints disabled (KQ_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("KQ_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (configs=%s data=%s)", *addr, *configDir, *dataDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	host.wait()
	mirror.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(envString("DEPLOY_ENV", "")) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
