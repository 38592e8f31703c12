package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/trivia"
)

type ConnectResponse struct {
	GameID string      `json:"gameId"`
	State  trivia.View `json:"state"`
}

type AnswerRequest struct {
	AnswerIndex *int `json:"answerIndex"`
}

type AnswerResponse struct {
	Accepted bool `json:"accepted"`
}

type TerminateResponse struct {
	Terminated bool `json:"terminated"`
}

func handleConnect(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := games.Connect(r.Context(), callerFrom(r))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConnectResponse{GameID: v.ID, State: v})
	}
}

func handleGetGame(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := games.GetGame(r.Context(), callerFrom(r), chi.URLParam(r, "gameID"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleStart(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, trivia.Code(trivia.ErrValidation), "invalid request body")
			return
		}

		questions, limit, err := req.parse()
		if err != nil {
			writeCommandError(w, err)
			return
		}

		v, err := games.StartGame(r.Context(), callerFrom(r), chi.URLParam(r, "gameID"), questions, limit)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleAnswer(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, trivia.Code(trivia.ErrValidation), "invalid request body")
			return
		}
		if req.AnswerIndex == nil {
			writeError(w, http.StatusBadRequest, trivia.Code(trivia.ErrValidation), "answerIndex is required")
			return
		}

		if err := games.SubmitAnswer(r.Context(), callerFrom(r), chi.URLParam(r, "gameID"), *req.AnswerIndex); err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AnswerResponse{Accepted: true})
	}
}

// handleGameCommand serves the host commands that take no body and reply
// with the host's view.
func handleGameCommand(cmd func(context.Context, auth.Identity, string) (trivia.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cmd(r.Context(), callerFrom(r), chi.URLParam(r, "gameID"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleTerminate(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := games.TerminateActiveGame(r.Context(), callerFrom(r)); err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TerminateResponse{Terminated: true})
	}
}

func handleForceTerminate(games Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := games.ForceTerminate(r.Context()); err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TerminateResponse{Terminated: true})
	}
}
