package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const ssePingInterval = 30 * time.Second

func handleEvents(logger *slog.Logger, games Games, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := identityFromRequest(r, sessions)
		if err != nil {
			writeCommandError(w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
			return
		}

		gameID := chi.URLParam(r, "gameID")
		sub, initial, err := games.Attach(r.Context(), caller, gameID)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		defer games.Detach(gameID, sub)

		data, err := json.Marshal(initial)
		if err != nil {
			logger.Error("encoding initial state", "game_id", gameID, "error", err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
		flusher.Flush()

		ping := time.NewTicker(ssePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-sub.C:
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
