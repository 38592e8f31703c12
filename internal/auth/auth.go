// Package auth resolves session tokens issued by the external login flow
// into caller identities. Sessions are read-only here.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/trivia"
)

const SessionPrefix = "session:"

type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func SessionKey(token string) string { return SessionPrefix + token }

type Resolver struct {
	store kv.Store
}

func NewResolver(store kv.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the identity behind token. Unknown or malformed sessions
// yield trivia.ErrUnauthenticated; store failures yield trivia.ErrStorage.
func (r *Resolver) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing session token", trivia.ErrUnauthenticated)
	}
	data, err := r.store.Get(ctx, SessionKey(token))
	if errors.Is(err, kv.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: invalid session token", trivia.ErrUnauthenticated)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: loading session: %v", trivia.ErrStorage, err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil || id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: malformed session", trivia.ErrUnauthenticated)
	}
	return id, nil
}

// Profiles scans every stored session and indexes the public profile of
// each user by ID.
func (r *Resolver) Profiles(ctx context.Context) (map[string]trivia.PlayerProfile, error) {
	vals, err := r.store.ScanPrefix(ctx, SessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning sessions: %v", trivia.ErrStorage, err)
	}
	out := make(map[string]trivia.PlayerProfile, len(vals))
	for _, v := range vals {
		var id Identity
		if json.Unmarshal(v, &id) != nil || id.UserID == "" {
			continue
		}
		out[id.UserID] = id.Profile()
	}
	return out, nil
}

func (id Identity) Profile() trivia.PlayerProfile {
	return trivia.PlayerProfile{ID: id.UserID, Username: id.Username, Avatar: id.Avatar}
}
