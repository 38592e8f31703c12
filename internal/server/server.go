package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/coordinator"
	"github.com/playperu/weaver/internal/handler/health"
	"github.com/playperu/weaver/internal/trivia"
)

// Games is the command surface the HTTP layer drives. *coordinator.Coordinator
// implements it.
type Games interface {
	Connect(ctx context.Context, caller auth.Identity) (trivia.View, error)
	GetGame(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error)
	StartGame(ctx context.Context, caller auth.Identity, gameID string, questions []trivia.Question, timeLimitSeconds *int) (trivia.View, error)
	Advance(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error)
	SubmitAnswer(ctx context.Context, caller auth.Identity, gameID string, answerIndex int) error
	RevealAnswer(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error)
	ShowLeaderboard(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error)
	ResetGame(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error)
	TerminateActiveGame(ctx context.Context, caller auth.Identity) error
	ForceTerminate(ctx context.Context) error
	Attach(ctx context.Context, caller auth.Identity, gameID string) (*coordinator.Subscriber, trivia.View, error)
	Detach(gameID string, s *coordinator.Subscriber)
}

type Deps struct {
	Games    Games
	Sessions Sessions
	// AdminKeyHash is the bcrypt hash of the operator key. Empty disables
	// the operator routes.
	AdminKeyHash string
	Checks       map[string]health.Checker
	SPADir       string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newRouter(logger, deps),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func newRouter(logger *slog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, deps)
	return r
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
