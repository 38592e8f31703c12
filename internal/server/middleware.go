package server

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/trivia"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

const adminKeyHeader = "X-Admin-Key"

func sessionMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, sessions)
			if err != nil {
				writeCommandError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminKeyMiddleware checks X-Admin-Key against a bcrypt hash. An empty hash
// disables the guarded routes entirely.
func adminKeyMiddleware(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				writeError(w, http.StatusNotFound, trivia.Code(trivia.ErrNotFound), "operator endpoint disabled")
				return
			}

			key := r.Header.Get(adminKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, http.StatusUnauthorized, trivia.Code(trivia.ErrUnauthenticated), "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerFrom(r *http.Request) auth.Identity {
	return r.Context().Value(ctxKeyIdentity).(auth.Identity)
}
