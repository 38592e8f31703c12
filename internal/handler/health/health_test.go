package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/weaver/internal/database"
	"github.com/playperu/weaver/internal/handler/health"
	"github.com/playperu/weaver/internal/kv"
)

func failing(msg string) health.CheckerFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func healthy() health.CheckerFunc {
	return func(context.Context) error { return nil }
}

func serve(t *testing.T, checks map[string]health.Checker) (int, map[string]string) {
	t.Helper()
	h := health.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), checks)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	var body map[string]struct{ Status string }
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	got := make(map[string]string, len(body))
	for name, r := range body {
		got[name] = r.Status
	}
	return rec.Code, got
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "no checks",
			checks:     map[string]health.Checker{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{},
		},
		{
			name:       "healthy",
			checks:     map[string]health.Checker{"sqlite": healthy()},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"sqlite": "ok"},
		},
		{
			name:       "sqlite down",
			checks:     map[string]health.Checker{"sqlite": failing("locked")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "error"},
		},
		{
			name: "one of two down",
			checks: map[string]health.Checker{
				"sqlite": healthy(),
				"redis":  failing("refused"),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, tt.checks)

			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if len(body) != len(tt.wantBody) {
				t.Errorf("body = %v, want %v", body, tt.wantBody)
			}
			for name, want := range tt.wantBody {
				if got := body[name]; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestHandlerRealStores(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	deadRedis := redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { deadRedis.Close() })

	status, body := serve(t, map[string]health.Checker{
		"sqlite": health.CheckerFunc(kv.NewSQLite(db).Ping),
		"redis":  health.CheckerFunc(kv.NewRedis(deadRedis).Ping),
	})

	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", status, http.StatusServiceUnavailable)
	}
	if body["sqlite"] != "ok" || body["redis"] != "error" {
		t.Errorf("body = %v, want sqlite ok and redis error", body)
	}
}
