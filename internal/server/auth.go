package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/playperu/weaver/internal/auth"
)

// Sessions resolves bearer tokens into identities.
type Sessions interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// bearerToken reads the token from the Authorization header, falling back
// to the token query parameter for push streams opened by browsers.
func bearerToken(r *http.Request) string {
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return token
	}
	return r.URL.Query().Get("token")
}

func identityFromRequest(r *http.Request, sessions Sessions) (auth.Identity, error) {
	return sessions.Resolve(r.Context(), bearerToken(r))
}
