package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/weaver/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Weaver API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, d.Checks).Routes())

	// Push streams resolve their own token: EventSource cannot send headers.
	r.Get("/api/games/{gameID}/events", handleEvents(logger, d.Games, d.Sessions))
	r.Get("/api/games/{gameID}/ws", handleWS(logger, d.Games, d.Sessions))

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware(d.Sessions))

		r.Post("/api/connect", handleConnect(d.Games))
		r.Post("/api/active-game/terminate", handleTerminate(d.Games))

		r.Get("/api/games/{gameID}", handleGetGame(d.Games))
		r.Post("/api/games/{gameID}/start", handleStart(d.Games))
		r.Post("/api/games/{gameID}/answer", handleAnswer(d.Games))
		r.Post("/api/games/{gameID}/next", handleGameCommand(d.Games.Advance))
		r.Post("/api/games/{gameID}/reveal", handleGameCommand(d.Games.RevealAnswer))
		r.Post("/api/games/{gameID}/leaderboard", handleGameCommand(d.Games.ShowLeaderboard))
		r.Post("/api/games/{gameID}/reset", handleGameCommand(d.Games.ResetGame))
	})

	r.With(adminKeyMiddleware(d.AdminKeyHash)).
		Delete("/api/admin/active-game", handleForceTerminate(d.Games))

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
