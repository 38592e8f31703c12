// Package coordinator owns the mutable game state. Every command loads the
// game record, applies one trivia transition and persists the result while
// holding a lock keyed by game ID, then pushes a per-viewer projection to
// every attached connection.
//
// Lock order is activeGame before game:<id>; no code path takes them the
// other way round.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/trivia"
)

const autoAdvanceTimeout = 10 * time.Second

// ProfileSource looks up public profiles of users the coordinator has not
// seen issue a command yet.
type ProfileSource interface {
	Profiles(ctx context.Context) (map[string]trivia.PlayerProfile, error)
}

type Options struct {
	// Hosts is the allow-list of user IDs that may create, run and
	// terminate games.
	Hosts []string
	// LeadIn is the delay before a started game opens its first question
	// on its own. Zero leaves it to the host.
	LeadIn time.Duration
	Now    func() time.Time
	NewID  func() string
}

type Coordinator struct {
	store    kv.Store
	profiles ProfileSource
	hub      *Hub
	locks    *keyedMutex
	logger   *slog.Logger

	hosts  map[string]struct{}
	leadIn time.Duration
	now    func() time.Time
	newID  func() string

	known sync.Map // user ID -> trivia.PlayerProfile

	timersMu sync.Mutex
	timers   map[string]*time.Timer
	closed   bool
	wg       sync.WaitGroup
}

var (
	errGameOver = errors.New("game over")
	errStale    = errors.New("game moved on before scheduled command")
)

func New(store kv.Store, profiles ProfileSource, logger *slog.Logger, opts Options) *Coordinator {
	c := &Coordinator{
		store:    store,
		profiles: profiles,
		hub:      NewHub(),
		locks:    newKeyedMutex(),
		logger:   logger,
		hosts:    make(map[string]struct{}, len(opts.Hosts)),
		leadIn:   opts.LeadIn,
		now:      opts.Now,
		newID:    opts.NewID,
		timers:   make(map[string]*time.Timer),
	}
	for _, h := range opts.Hosts {
		c.hosts[h] = struct{}{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// IsHost reports whether userID is on the host allow-list.
func (c *Coordinator) IsHost(userID string) bool {
	_, ok := c.hosts[userID]
	return ok
}

func (c *Coordinator) requireHost(caller auth.Identity) error {
	if !c.IsHost(caller.UserID) {
		return fmt.Errorf("%w: %s may not host games", trivia.ErrForbidden, caller.UserID)
	}
	return nil
}

// Connect joins the caller to the active game, creating one when the caller
// is an allowed host and no game is active.
func (c *Coordinator) Connect(ctx context.Context, caller auth.Identity) (trivia.View, error) {
	c.remember(caller)

	unlock, err := c.locks.Lock(ctx, activeGameKey)
	if err != nil {
		return trivia.View{}, err
	}
	defer unlock()

	id, err := c.loadActiveID(ctx)
	if err != nil {
		return trivia.View{}, err
	}

	if id != "" {
		g, changed, err := c.commit(ctx, id, func(g trivia.Game) (trivia.Game, error) {
			if !g.Active() {
				return g, errGameOver
			}
			return trivia.Apply(g, trivia.Join{Caller: caller.UserID}, c.now())
		})
		switch {
		case err == nil:
			if changed {
				c.committed(ctx, "connect", g)
			}
			return c.view(ctx, g, caller.UserID), nil
		case errors.Is(err, errGameOver), errors.Is(err, trivia.ErrNotFound):
			c.logger.Info("clearing stale active game", "game_id", id)
			if err := c.clearActiveID(ctx); err != nil {
				return trivia.View{}, err
			}
		default:
			c.rejected(id, "connect", caller, err)
			return trivia.View{}, err
		}
	}

	if !c.IsHost(caller.UserID) {
		return trivia.View{}, fmt.Errorf("%w: no active game", trivia.ErrUnavailable)
	}

	g := trivia.NewGame(c.newID(), caller.UserID, c.now())
	if err := c.saveGame(ctx, g); err != nil {
		return trivia.View{}, err
	}
	if err := c.saveActiveID(ctx, g.ID); err != nil {
		return trivia.View{}, err
	}
	c.logger.Info("game created", "game_id", g.ID, "host", g.HostID)
	return c.view(ctx, g, caller.UserID), nil
}

// StartGame loads the questions and enters the lead-in. A nil limit keeps
// the game's current time limit.
func (c *Coordinator) StartGame(ctx context.Context, caller auth.Identity, gameID string, questions []trivia.Question, timeLimitSeconds *int) (trivia.View, error) {
	if err := c.requireHost(caller); err != nil {
		return trivia.View{}, err
	}
	g, err := c.run(ctx, caller, gameID, trivia.Start{
		Caller:           caller.UserID,
		Questions:        questions,
		TimeLimitSeconds: timeLimitSeconds,
	}, 0)
	if err != nil {
		return trivia.View{}, err
	}
	c.scheduleAdvance(g)
	return c.view(ctx, g, caller.UserID), nil
}

// Advance opens the next question, or finishes the game and releases the
// active-game pointer after the last one.
func (c *Coordinator) Advance(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error) {
	g, err := c.advance(ctx, caller, gameID, 0)
	if err != nil {
		return trivia.View{}, err
	}
	return c.view(ctx, g, caller.UserID), nil
}

// advance is shared with the lead-in timer. A non-zero expect makes the
// command a no-op unless the game is still at that revision.
func (c *Coordinator) advance(ctx context.Context, caller auth.Identity, gameID string, expect int64) (trivia.Game, error) {
	if err := c.requireHost(caller); err != nil {
		return trivia.Game{}, err
	}
	g, err := c.run(ctx, caller, gameID, trivia.Next{Caller: caller.UserID}, expect)
	if err != nil {
		return trivia.Game{}, err
	}
	if expect == 0 {
		// The timer path leaves the map alone: a newer timer may own the slot.
		c.cancelAdvance(gameID)
	}
	if g.Phase == trivia.PhaseFinished {
		c.releaseActive(ctx, gameID)
	}
	return g, nil
}

// SubmitAnswer records the caller's answer for the active question.
func (c *Coordinator) SubmitAnswer(ctx context.Context, caller auth.Identity, gameID string, answerIndex int) error {
	_, err := c.run(ctx, caller, gameID, trivia.Answer{Caller: caller.UserID, AnswerIndex: answerIndex}, 0)
	return err
}

func (c *Coordinator) RevealAnswer(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error) {
	return c.hostCommand(ctx, caller, gameID, trivia.Reveal{Caller: caller.UserID})
}

func (c *Coordinator) ShowLeaderboard(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error) {
	return c.hostCommand(ctx, caller, gameID, trivia.ShowLeaderboard{Caller: caller.UserID})
}

// ResetGame returns the game to its lobby and makes it the active game
// again, unless another game has taken its place.
func (c *Coordinator) ResetGame(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error) {
	if err := c.requireHost(caller); err != nil {
		return trivia.View{}, err
	}

	unlock, err := c.locks.Lock(ctx, activeGameKey)
	if err != nil {
		return trivia.View{}, err
	}
	defer unlock()

	activeID, err := c.loadActiveID(ctx)
	if err != nil {
		return trivia.View{}, err
	}
	if activeID != "" && activeID != gameID {
		other, err := c.loadGame(ctx, activeID)
		switch {
		case err == nil && other.Active():
			return trivia.View{}, fmt.Errorf("%w: another game is active", trivia.ErrConflict)
		case err != nil && !errors.Is(err, trivia.ErrNotFound):
			return trivia.View{}, err
		}
	}

	g, err := c.run(ctx, caller, gameID, trivia.Reset{Caller: caller.UserID}, 0)
	if err != nil {
		return trivia.View{}, err
	}
	c.cancelAdvance(gameID)
	if activeID != gameID {
		if err := c.saveActiveID(ctx, gameID); err != nil {
			return trivia.View{}, err
		}
	}
	return c.view(ctx, g, caller.UserID), nil
}

// TerminateActiveGame stops the active game from accepting connections.
// Any allowed host may do this, not only the game's own host.
func (c *Coordinator) TerminateActiveGame(ctx context.Context, caller auth.Identity) error {
	if err := c.requireHost(caller); err != nil {
		return err
	}
	return c.terminate(ctx, caller.UserID)
}

// ForceTerminate is TerminateActiveGame for operators without a session.
func (c *Coordinator) ForceTerminate(ctx context.Context) error {
	return c.terminate(ctx, "operator")
}

func (c *Coordinator) terminate(ctx context.Context, by string) error {
	unlock, err := c.locks.Lock(ctx, activeGameKey)
	if err != nil {
		return err
	}
	defer unlock()

	id, err := c.loadActiveID(ctx)
	if err != nil || id == "" {
		return err
	}
	if err := c.clearActiveID(ctx); err != nil {
		return err
	}
	c.cancelAdvance(id)
	c.logger.Info("active game terminated", "game_id", id, "by", by)
	return nil
}

// GetGame returns the caller's projection of a game they joined. It takes
// no lock and never changes the record.
func (c *Coordinator) GetGame(ctx context.Context, caller auth.Identity, gameID string) (trivia.View, error) {
	c.remember(caller)
	g, err := c.loadGame(ctx, gameID)
	if err != nil {
		return trivia.View{}, err
	}
	if !g.HasPlayer(caller.UserID) {
		return trivia.View{}, fmt.Errorf("%w: not a player in this game", trivia.ErrForbidden)
	}
	return c.view(ctx, g, caller.UserID), nil
}

// Attach registers a push connection for the caller and returns the state
// it should render first. Detach must be called when the connection ends.
func (c *Coordinator) Attach(ctx context.Context, caller auth.Identity, gameID string) (*Subscriber, trivia.View, error) {
	// Attach before reading so a commit in between is pushed, not lost.
	s := c.hub.Attach(gameID, caller.UserID)
	v, err := c.GetGame(ctx, caller, gameID)
	if err != nil {
		c.hub.Detach(gameID, s)
		return nil, trivia.View{}, err
	}
	c.logger.Debug("viewer attached", "game_id", gameID, "viewer", caller.UserID, "connections", c.hub.Count(gameID))
	return s, v, nil
}

func (c *Coordinator) Detach(gameID string, s *Subscriber) {
	c.hub.Detach(gameID, s)
	c.logger.Debug("viewer detached", "game_id", gameID, "viewer", s.ViewerID, "connections", c.hub.Count(gameID))
}

// Close stops pending lead-in timers and waits for running ones.
func (c *Coordinator) Close() {
	c.timersMu.Lock()
	c.closed = true
	for id := range c.timers {
		c.stopTimerLocked(id)
	}
	c.timersMu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) hostCommand(ctx context.Context, caller auth.Identity, gameID string, cmd trivia.Command) (trivia.View, error) {
	if err := c.requireHost(caller); err != nil {
		return trivia.View{}, err
	}
	g, err := c.run(ctx, caller, gameID, cmd, 0)
	if err != nil {
		return trivia.View{}, err
	}
	return c.view(ctx, g, caller.UserID), nil
}

// run applies cmd to the stored game and fans the result out once the lock
// is released.
func (c *Coordinator) run(ctx context.Context, caller auth.Identity, gameID string, cmd trivia.Command, expect int64) (trivia.Game, error) {
	c.remember(caller)

	g, changed, err := c.commit(ctx, gameID, func(g trivia.Game) (trivia.Game, error) {
		if expect != 0 && g.Revision != expect {
			return g, errStale
		}
		return trivia.Apply(g, cmd, c.now())
	})
	if err != nil {
		c.rejected(gameID, cmd.Name(), caller, err)
		return trivia.Game{}, err
	}
	if changed {
		c.committed(ctx, cmd.Name(), g)
	}
	return g, nil
}

// commit is the per-game critical section: load, transition, persist. The
// clock is read inside fn so records never move backwards in time.
func (c *Coordinator) commit(ctx context.Context, gameID string, fn func(trivia.Game) (trivia.Game, error)) (trivia.Game, bool, error) {
	unlock, err := c.locks.Lock(ctx, gameKey(gameID))
	if err != nil {
		return trivia.Game{}, false, err
	}
	defer unlock()

	cur, err := c.loadGame(ctx, gameID)
	if err != nil {
		return trivia.Game{}, false, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, false, err
	}
	if next.Revision == cur.Revision {
		return cur, false, nil
	}
	if err := c.saveGame(ctx, next); err != nil {
		return cur, false, err
	}
	return next, true, nil
}

// releaseActive clears the pointer if it still names gameID. Failures are
// only logged: Connect treats a finished game behind the pointer as absent.
func (c *Coordinator) releaseActive(ctx context.Context, gameID string) {
	unlock, err := c.locks.Lock(ctx, activeGameKey)
	if err != nil {
		c.logger.Warn("releasing active game", "game_id", gameID, "error", err)
		return
	}
	defer unlock()

	id, err := c.loadActiveID(ctx)
	if err == nil && id == gameID {
		err = c.clearActiveID(ctx)
	}
	if err != nil {
		c.logger.Error("releasing active game", "game_id", gameID, "error", err)
		return
	}
	c.logger.Info("game finished", "game_id", gameID)
}

func (c *Coordinator) committed(ctx context.Context, command string, g trivia.Game) {
	c.logger.Info("game transition",
		"game_id", g.ID,
		"command", command,
		"phase", g.Phase,
		"revision", g.Revision,
	)
	c.publish(ctx, g)
}

func (c *Coordinator) rejected(gameID, command string, caller auth.Identity, err error) {
	if errors.Is(err, trivia.ErrStorage) {
		c.logger.Error("command failed", "game_id", gameID, "command", command, "caller", caller.UserID, "error", err)
		return
	}
	c.logger.Debug("command rejected", "game_id", gameID, "command", command, "caller", caller.UserID, "error", err)
}

// publish sends each attached connection its own projection of g. Viewers
// with several connections share one encoded payload.
func (c *Coordinator) publish(ctx context.Context, g trivia.Game) {
	subs := c.hub.Subscribers(g.ID)
	if len(subs) == 0 {
		return
	}

	profiles := c.profilesFor(ctx, g.Players)
	payloads := make(map[string][]byte, len(subs))
	for _, s := range subs {
		data, ok := payloads[s.ViewerID]
		if !ok {
			var err error
			data, err = json.Marshal(trivia.Project(g, s.ViewerID).WithProfiles(profiles))
			if err != nil {
				c.logger.Error("encoding push", "game_id", g.ID, "viewer", s.ViewerID, "error", err)
				continue
			}
			payloads[s.ViewerID] = data
		}
		if !send(s, data) {
			c.logger.Debug("push dropped", "game_id", g.ID, "viewer", s.ViewerID, "revision", g.Revision)
		}
	}
}

func (c *Coordinator) view(ctx context.Context, g trivia.Game, viewerID string) trivia.View {
	return trivia.Project(g, viewerID).WithProfiles(c.profilesFor(ctx, g.Players))
}

func (c *Coordinator) remember(caller auth.Identity) {
	if caller.UserID == "" || caller.Username == "" {
		return
	}
	c.known.Store(caller.UserID, caller.Profile())
}

// profilesFor resolves roster entries from identities seen so far, falling
// back to a session scan for the rest.
func (c *Coordinator) profilesFor(ctx context.Context, players []string) map[string]trivia.PlayerProfile {
	out := make(map[string]trivia.PlayerProfile, len(players))
	missing := false
	for _, id := range players {
		if p, ok := c.known.Load(id); ok {
			out[id] = p.(trivia.PlayerProfile)
			continue
		}
		missing = true
	}
	if !missing || c.profiles == nil {
		return out
	}

	all, err := c.profiles.Profiles(ctx)
	if err != nil {
		c.logger.Warn("profile lookup failed", "error", err)
		return out
	}
	for _, id := range players {
		if p, ok := all[id]; ok {
			out[id] = p
			c.known.Store(id, p)
		}
	}
	return out
}

// scheduleAdvance arms the lead-in timer for a game that just started. The
// timer goes through the same locked path as a host's Advance and does
// nothing if the game changed in the meantime.
func (c *Coordinator) scheduleAdvance(g trivia.Game) {
	if c.leadIn <= 0 || g.Phase != trivia.PhaseStarting {
		return
	}
	host := auth.Identity{UserID: g.HostID}
	id, rev := g.ID, g.Revision

	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked(id)

	var t *time.Timer
	c.wg.Add(1)
	t = time.AfterFunc(c.leadIn, func() {
		defer c.wg.Done()

		c.timersMu.Lock()
		if c.timers[id] != t {
			c.timersMu.Unlock()
			return
		}
		delete(c.timers, id)
		c.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), autoAdvanceTimeout)
		defer cancel()
		_, err := c.advance(ctx, host, id, rev)
		switch {
		case err == nil:
			c.logger.Info("auto-advanced", "game_id", id)
		case errors.Is(err, errStale):
		default:
			c.logger.Warn("auto-advance failed", "game_id", id, "error", err)
		}
	})
	c.timers[id] = t
}

func (c *Coordinator) cancelAdvance(gameID string) {
	c.timersMu.Lock()
	c.stopTimerLocked(gameID)
	c.timersMu.Unlock()
}

func (c *Coordinator) stopTimerLocked(gameID string) {
	t, ok := c.timers[gameID]
	if !ok {
		return
	}
	if t.Stop() {
		c.wg.Done()
	}
	delete(c.timers, gameID)
}
