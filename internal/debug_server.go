package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"relay-lab/projection"
	"relay-lab/repositories"
)

// StartDebugServer exposes read-only inspection endpoints on a separate
// port: live timelines per session and the persisted history. It serves
// operators only and has no effect on routing.
func StartDebugServer(log *slog.Logger, timeline *projection.Timeline,
	history repositories.IHistoryRepository, port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/sessions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, timeline.Sessions())
	})

	mux.HandleFunc("/debug/timeline", func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Query().Get("session")
		if session == "" {
			http.Error(w, "session query parameter is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, timeline.Snapshot(session))
	})

	mux.HandleFunc("/debug/history", func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Query().Get("session")
		if session == "" {
			http.Error(w, "session query parameter is required", http.StatusBadRequest)
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		records, err := history.Recent(session, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	})

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("Debug inspector available", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("Debug server stopped", "err", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
