package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/transport/ws"
)

// metricsHandler writes a minimal Prometheus exposition.
func (h *gameHost) metricsHandler(wsSrv *ws.Server) http.HandlerFunc {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		h.logger.Printf("metrics: process stats unavailable: %v", err)
		proc = nil
	}
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		byPhase := map[game.Phase]int{}
		paused := 0
		for _, rt := range h.games.List() {
			v := rt.Latest()
			byPhase[v.Phase]++
			if v.Paused {
				paused++
			}
		}
		fmt.Fprintf(rw, "# HELP kq_games Running games by phase.\n")
		fmt.Fprintf(rw, "# TYPE kq_games gauge\n")
		for _, ph := range []game.Phase{game.PhaseLobby, game.PhaseEvent, game.PhaseAction, game.PhaseResolution, game.PhaseResult, game.PhaseFinished} {
			fmt.Fprintf(rw, "kq_games{phase=%q} %d\n", ph, byPhase[ph])
		}
		fmt.Fprintf(rw, "# HELP kq_games_paused Games currently paused.\n")
		fmt.Fprintf(rw, "# TYPE kq_games_paused gauge\n")
		fmt.Fprintf(rw, "kq_games_paused %d\n", paused)

		if wsSrv != nil {
			st := wsSrv.Stats()
			fmt.Fprintf(rw, "# HELP kq_ws_open Open websocket connections.\n")
			fmt.Fprintf(rw, "# TYPE kq_ws_open gauge\n")
			fmt.Fprintf(rw, "kq_ws_open %d\n", st.Open)
			counter(rw, "kq_ws_connections_total", "Websocket connections accepted.", st.Connections)
			counter(rw, "kq_ws_messages_total", "Inbound websocket messages.", st.Messages)
			counter(rw, "kq_ws_rate_limited_total", "Inbound messages rejected by the rate limiter.", st.RateLimited)
			counter(rw, "kq_ws_dropped_total", "Outbound messages dropped on a full queue.", st.Dropped)
		}

		if h.idx != nil {
			st := h.idx.Stats()
			fmt.Fprintf(rw, "# HELP kq_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE kq_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "kq_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "kq_index_queue_capacity %d\n", st.QueueCapacity)
			counter(rw, "kq_index_dropped_total", "Index writes dropped on a full queue.", st.DroppedTotal)
			counter(rw, "kq_index_failed_total", "Index batches that failed to commit.", st.FailedTotal)
		}

		if h.mirror != nil {
			st := h.mirror.Stats()
			fmt.Fprintf(rw, "# HELP kq_archive_mirror_queue_depth Archives waiting for upload.\n")
			fmt.Fprintf(rw, "# TYPE kq_archive_mirror_queue_depth gauge\n")
			fmt.Fprintf(rw, "kq_archive_mirror_queue_depth %d\n", st.QueueDepth)
			counter(rw, "kq_archive_mirror_uploaded_total", "Archive files uploaded.", st.UploadedTotal)
			counter(rw, "kq_archive_mirror_failed_total", "Archive uploads that gave up after retries.", st.FailedTotal)
			counter(rw, "kq_archive_mirror_dropped_total", "Archives dropped on a full queue.", st.DroppedTotal)
		}

		if proc != nil {
			if mi, err := proc.MemoryInfo(); err == nil {
				fmt.Fprintf(rw, "# HELP kq_process_rss_bytes Resident set size.\n")
				fmt.Fprintf(rw, "# TYPE kq_process_rss_bytes gauge\n")
				fmt.Fprintf(rw, "kq_process_rss_bytes %d\n", mi.RSS)
			}
			if cpu, err := proc.CPUPercent(); err == nil {
				fmt.Fprintf(rw, "# HELP kq_process_cpu_percent CPU use since process start.\n")
				fmt.Fprintf(rw, "# TYPE kq_process_cpu_percent gauge\n")
				fmt.Fprintf(rw, "kq_process_cpu_percent %.3f\n", cpu)
			}
			if n, err := proc.NumThreads(); err == nil {
				fmt.Fprintf(rw, "kq_process_threads %d\n", n)
			}
		}
	}
}

func counter(w io.Writer, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
