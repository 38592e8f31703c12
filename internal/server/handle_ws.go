package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWS streams the same per-viewer state as handleEvents over a
// WebSocket. The connection is push only; client frames are discarded.
func handleWS(logger *slog.Logger, games Games, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := identityFromRequest(r, sessions)
		if err != nil {
			writeCommandError(w, err)
			return
		}

		gameID := chi.URLParam(r, "gameID")
		sub, initial, err := games.Attach(r.Context(), caller, gameID)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		defer games.Detach(gameID, sub)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		// CloseRead drains client frames and cancels ctx once the peer goes away.
		ctx := conn.CloseRead(r.Context())

		data, err := json.Marshal(initial)
		if err != nil {
			logger.Error("encoding initial state", "game_id", gameID, "error", err)
			return
		}
		if err := writeFrame(ctx, conn, data); err != nil {
			logger.Debug("websocket write failed", "game_id", gameID, "error", err)
			return
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed", "game_id", gameID, "viewer", caller.UserID)
				return
			case data := <-sub.C:
				if err := writeFrame(ctx, conn, data); err != nil {
					logger.Debug("websocket write failed", "game_id", gameID, "error", err)
					return
				}
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					logger.Debug("websocket ping failed", "game_id", gameID, "error", err)
					return
				}
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
