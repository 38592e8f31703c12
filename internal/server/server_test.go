package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/coordinator"
	"github.com/playperu/weaver/internal/handler/health"
	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/trivia"
)

const (
	hostToken = "tok-weaver"
	anaToken  = "tok-ana"
	bobToken  = "tok-bob"
	eveToken  = "tok-eve"
)

var sessions = map[string]auth.Identity{
	hostToken: {UserID: "weaver", Username: "Weaver", Avatar: "w.png"},
	anaToken:  {UserID: "ana", Username: "Ana", Avatar: "a.png"},
	bobToken:  {UserID: "bob", Username: "Bob"},
	eveToken:  {UserID: "eve", Username: "Eve"},
}

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

type testServer struct {
	router *chi.Mux
	games  *coordinator.Coordinator
}

type healthyStore struct{}

func (healthyStore) Check(context.Context) error { return nil }

// newTestServer wires the real coordinator over an in-memory store with a
// frozen clock, so every answer lands at zero elapsed time.
func newTestServer(t *testing.T, adminKeyHash string) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := kv.NewMemory()
	for token, id := range sessions {
		data, _ := json.Marshal(id)
		if err := store.Set(ctx, auth.SessionKey(token), data); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	resolver := auth.NewResolver(store)
	games := coordinator.New(store, resolver, logger, coordinator.Options{
		Hosts: []string{"weaver"},
		Now:   func() time.Time { return t0 },
	})
	t.Cleanup(games.Close)

	return &testServer{
		router: newRouter(logger, Deps{
			Games:        games,
			Sessions:     resolver,
			AdminKeyHash: adminKeyHash,
			Checks:       map[string]health.Checker{"memory": healthyStore{}},
		}),
		games: games,
	}
}

// do sends body as JSON, or verbatim when it is a string.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	if got := decode[ErrorResponse](t, rec); got.Code != code {
		t.Errorf("code = %q, want %q (%s)", got.Code, code, got.Error)
	}
}

func threeQuestions() []QuestionPayload {
	one, two, zero := 1, 2, 0
	return []QuestionPayload{
		{Text: "Capital of Peru?", Answers: []string{"Cusco", "Lima", "Arequipa"}, CorrectIndex: &one},
		{Text: "Highest lake?", Answers: []string{"Poopo", "Junin", "Titicaca"}, CorrectIndex: &two},
		{Text: "Machu Picchu region?", Answers: []string{"Cusco", "Puno"}, CorrectIndex: &zero},
	}
}

// lobbyGame creates a game as the host and joins the given players.
func (s *testServer) lobbyGame(t *testing.T, players ...string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/connect", hostToken, nil)
	expectStatus(t, rec, http.StatusOK)
	gameID := decode[ConnectResponse](t, rec).GameID

	for _, token := range players {
		rec := s.do(t, http.MethodPost, "/api/connect", token, nil)
		expectStatus(t, rec, http.StatusOK)
	}
	return gameID
}

// questionOpen starts the game and opens its first question.
func (s *testServer) questionOpen(t *testing.T, players ...string) string {
	t.Helper()
	gameID := s.lobbyGame(t, players...)

	rec := s.do(t, http.MethodPost, "/api/games/"+gameID+"/start", hostToken, StartRequest{Questions: threeQuestions()})
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodPost, "/api/games/"+gameID+"/next", hostToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if v := decode[trivia.View](t, rec); v.Phase != trivia.PhaseQuestionActive {
		t.Fatalf("phase = %s, want QUESTION_ACTIVE", v.Phase)
	}
	return gameID
}
