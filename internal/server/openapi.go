package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/weaver/internal/trivia"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code" description:"Error kind: unauthenticated, forbidden, not_found, invalid_state, validation_error, conflict, unavailable, storage_failure or internal."`
}

// HealthCheck is one entry of the /healthz response, keyed by dependency.
type HealthCheck struct {
	Status string `json:"status" enum:"ok,error"`
}

type gamePath struct {
	GameID string `path:"gameID"`
}

type startInput struct {
	gamePath
	StartRequest
}

type answerInput struct {
	gamePath
	AnswerRequest
}

type streamInput struct {
	gamePath
	Token string `query:"token" description:"Session token; the Authorization header is accepted too."`
}

type adminInput struct {
	AdminKey string `header:"X-Admin-Key" required:"true"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Openapi = "3.0.3"
	r.Spec.Info.Title = "Weaver API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Live multiplayer trivia. Command routes take a session token as " +
		"Authorization: Bearer <token>; state pushes arrive over SSE or WebSocket.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the configured store.")
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/connect
	connect, _ := r.NewOperationContext(http.MethodPost, "/api/connect")
	connect.SetSummary("Connect")
	connect.SetDescription("Joins the active game, or creates one when the caller is an allowed host and none is active.")
	connect.AddRespStructure(ConnectResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	connect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	connect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(connect)

	// GET /api/games/{gameID}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}")
	getGame.SetSummary("Get game")
	getGame.SetDescription("Returns the caller's view of a game they joined.")
	getGame.AddReqStructure(gamePath{})
	getGame.AddRespStructure(trivia.View{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getGame)

	// POST /api/games/{gameID}/start
	start, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/start")
	start.SetSummary("Start game")
	start.SetDescription("Host only. Loads the questions and enters the lead-in.")
	start.AddReqStructure(startInput{})
	start.AddRespStructure(trivia.View{}, openapi.WithHTTPStatus(http.StatusOK))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(start)

	// POST /api/games/{gameID}/answer
	answer, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/answer")
	answer.SetSummary("Submit answer")
	answer.SetDescription("Records the caller's one answer for the open question. The score stays hidden until reveal.")
	answer.AddReqStructure(answerInput{})
	answer.AddRespStructure(AnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	answer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	answer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	answer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(answer)

	hostCommands := []struct {
		path, summary, description string
	}{
		{"/api/games/{gameID}/next", "Next question", "Host only. Opens the next question, or finishes the game after the last one."},
		{"/api/games/{gameID}/reveal", "Reveal answer", "Host only. Closes the question and scores the round."},
		{"/api/games/{gameID}/leaderboard", "Show leaderboard", "Host only. Shows standings after a reveal."},
		{"/api/games/{gameID}/reset", "Reset game", "Host only. Returns the game to the lobby with the same players."},
	}
	for _, hc := range hostCommands {
		op, _ := r.NewOperationContext(http.MethodPost, hc.path)
		op.SetSummary(hc.summary)
		op.SetDescription(hc.description)
		op.AddReqStructure(gamePath{})
		op.AddRespStructure(trivia.View{}, openapi.WithHTTPStatus(http.StatusOK))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
		_ = r.AddOperation(op)
	}

	// POST /api/active-game/terminate
	terminate, _ := r.NewOperationContext(http.MethodPost, "/api/active-game/terminate")
	terminate.SetSummary("Terminate active game")
	terminate.SetDescription("Host only. Clears the active-game pointer so a new game can be created.")
	terminate.AddRespStructure(TerminateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	terminate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(terminate)

	// DELETE /api/admin/active-game
	forceTerminate, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/active-game")
	forceTerminate.SetSummary("Operator terminate")
	forceTerminate.SetDescription("Clears the active-game pointer without a host session. Requires X-Admin-Key.")
	forceTerminate.AddReqStructure(adminInput{})
	forceTerminate.AddRespStructure(TerminateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	forceTerminate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	forceTerminate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(forceTerminate)

	// GET /api/games/{gameID}/events
	events, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/events")
	events.SetSummary("State stream (SSE)")
	events.SetDescription("Server-sent events. Each `state` event carries the caller's view of the game.")
	events.AddReqStructure(streamInput{})
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	events.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	events.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(events)

	// GET /api/games/{gameID}/ws
	ws, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/ws")
	ws.SetSummary("State stream (WebSocket)")
	ws.SetDescription("Upgrades to a WebSocket; each text frame carries the caller's view of the game.")
	ws.AddReqStructure(streamInput{})
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	ws.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(ws)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
