package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/trivia"
)

// activeGameKey holds the ID of the one game accepting connections. It is
// also the lock key guarding the pointer.
const activeGameKey = "activeGame"

func gameKey(id string) string { return "game:" + id }

func (c *Coordinator) loadGame(ctx context.Context, id string) (trivia.Game, error) {
	data, err := c.store.Get(ctx, gameKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return trivia.Game{}, fmt.Errorf("%w: game %s", trivia.ErrNotFound, id)
	}
	if err != nil {
		return trivia.Game{}, fmt.Errorf("%w: loading game %s: %w", trivia.ErrStorage, id, err)
	}

	var g trivia.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return trivia.Game{}, fmt.Errorf("%w: decoding game %s: %w", trivia.ErrStorage, id, err)
	}
	return g.Clone(), nil
}

func (c *Coordinator) saveGame(ctx context.Context, g trivia.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("%w: encoding game %s: %w", trivia.ErrStorage, g.ID, err)
	}
	if err := c.store.Set(ctx, gameKey(g.ID), data); err != nil {
		return fmt.Errorf("%w: saving game %s: %w", trivia.ErrStorage, g.ID, err)
	}
	return nil
}

// loadActiveID returns "" when no game is active.
func (c *Coordinator) loadActiveID(ctx context.Context) (string, error) {
	data, err := c.store.Get(ctx, activeGameKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: loading active game: %w", trivia.ErrStorage, err)
	}

	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("%w: decoding active game: %w", trivia.ErrStorage, err)
	}
	return id, nil
}

func (c *Coordinator) saveActiveID(ctx context.Context, id string) error {
	data, _ := json.Marshal(id)
	if err := c.store.Set(ctx, activeGameKey, data); err != nil {
		return fmt.Errorf("%w: saving active game: %w", trivia.ErrStorage, err)
	}
	return nil
}

func (c *Coordinator) clearActiveID(ctx context.Context) error {
	if err := c.store.Delete(ctx, activeGameKey); err != nil {
		return fmt.Errorf("%w: clearing active game: %w", trivia.ErrStorage, err)
	}
	return nil
}
