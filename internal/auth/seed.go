package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playperu/weaver/internal/kv"
)

// DemoSessions maps demo tokens to the identities they resolve to. The token
// doubles as the user ID so the API can be driven with curl.
var DemoSessions = []Identity{
	{UserID: "demo-host", Username: "Weaver", Avatar: "https://api.dicebear.com/9.x/bottts/svg?seed=weaver"},
	{UserID: "demo-player-1", Username: "Sleeper One", Avatar: "https://api.dicebear.com/9.x/bottts/svg?seed=one"},
	{UserID: "demo-player-2", Username: "Sleeper Two", Avatar: "https://api.dicebear.com/9.x/bottts/svg?seed=two"},
	{UserID: "demo-player-3", Username: "Sleeper Three", Avatar: "https://api.dicebear.com/9.x/bottts/svg?seed=three"},
}

// SeedDemo writes the demo sessions that are not stored yet.
// Idempotent: existing sessions are left alone.
func SeedDemo(ctx context.Context, logger *slog.Logger, store kv.Store) error {
	created := 0
	for _, id := range DemoSessions {
		key := SessionKey(id.UserID)
		_, err := store.Get(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("checking %s: %w", key, err)
		}

		data, err := json.Marshal(id)
		if err != nil {
			return err
		}
		if err := store.Set(ctx, key, data); err != nil {
			return fmt.Errorf("seeding %s: %w", key, err)
		}
		created++
	}

	if created > 0 {
		logger.Info("demo sessions seeded", "count", created)
	}
	return nil
}
