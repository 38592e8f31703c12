package trivia

import (
	"errors"
	"fmt"
	"time"
)

// Command is one transition request against a game. Commands only see the
// record they are applied to.
type Command interface {
	// Name identifies the command in logs.
	Name() string
	apply(g *Game, now time.Time) error
}

// errUnchanged lets a command accept without mutating the record.
var errUnchanged = errors.New("unchanged")

// Apply validates cmd against g and returns the next record. On error the
// original record is returned untouched. A successful transition bumps
// Revision; an accepted command that changes nothing keeps it, so callers
// can skip persisting.
func Apply(g Game, cmd Command, now time.Time) (Game, error) {
	next := g.Clone()
	if err := cmd.apply(&next, now); err != nil {
		if errors.Is(err, errUnchanged) {
			return g, nil
		}
		return g, err
	}
	next.Revision = g.Revision + 1
	return next, nil
}

func requireHost(g *Game, caller string) error {
	if caller != g.HostID {
		return fmt.Errorf("%w: only the host can do this", ErrForbidden)
	}
	return nil
}

func clearRound(g *Game, now time.Time) {
	g.CurrentRoundAnswers = map[string]AnswerRecord{}
	g.PhaseStartTime = now
}

// Join adds the caller to a lobby. Callers already in the game are accepted
// in any phase without a change.
type Join struct {
	Caller string
}

func (Join) Name() string { return "connect" }

func (c Join) apply(g *Game, _ time.Time) error {
	if g.HasPlayer(c.Caller) {
		return errUnchanged
	}
	if g.Phase != PhaseLobby {
		return fmt.Errorf("%w: game already in progress", ErrForbidden)
	}
	g.Players = append(g.Players, c.Caller)
	if _, ok := g.Scores[c.Caller]; !ok {
		g.Scores[c.Caller] = 0
	}
	return nil
}

// Start loads the question set and moves the lobby into the lead-in.
// A nil TimeLimitSeconds keeps the current limit.
type Start struct {
	Caller           string
	Questions        []Question
	TimeLimitSeconds *int
}

func (Start) Name() string { return "start" }

func (c Start) apply(g *Game, now time.Time) error {
	if err := requireHost(g, c.Caller); err != nil {
		return err
	}
	if g.Phase != PhaseLobby {
		return fmt.Errorf("%w: game can only be started from the lobby", ErrInvalidState)
	}
	if err := ValidateQuestions(c.Questions); err != nil {
		return err
	}

	g.Questions = make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		q.Answers = append([]string(nil), q.Answers...)
		g.Questions[i] = q
	}
	if c.TimeLimitSeconds != nil {
		g.TimeLimitSeconds = ClampTimeLimit(*c.TimeLimitSeconds)
	}
	g.CurrentQuestionIndex = 0
	g.Phase = PhaseStarting
	clearRound(g, now)
	return nil
}

// ValidateQuestions checks that every question is answerable.
func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrValidation)
	}
	for i, q := range qs {
		if len(q.Answers) < 2 {
			return fmt.Errorf("%w: question %d needs at least 2 answers", ErrValidation, i+1)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Answers) {
			return fmt.Errorf("%w: question %d has correct index %d out of range", ErrValidation, i+1, q.CorrectIndex)
		}
	}
	return nil
}

func ClampTimeLimit(seconds int) int {
	return min(max(seconds, MinTimeLimitSeconds), MaxTimeLimitSeconds)
}

// Next opens the next question, or finishes the game after the last one.
type Next struct {
	Caller string
}

func (Next) Name() string { return "next" }

func (c Next) apply(g *Game, now time.Time) error {
	if err := requireHost(g, c.Caller); err != nil {
		return err
	}
	switch g.Phase {
	case PhaseStarting:
		g.Phase = PhaseQuestionActive
		clearRound(g, now)
	case PhaseRevealAnswer, PhaseLeaderboard:
		if g.CurrentQuestionIndex+1 < len(g.Questions) {
			g.CurrentQuestionIndex++
			g.Phase = PhaseQuestionActive
			clearRound(g, now)
			return nil
		}
		g.Phase = PhaseFinished
		g.PhaseStartTime = now
	default:
		return fmt.Errorf("%w: cannot advance from %s", ErrInvalidState, g.Phase)
	}
	return nil
}

// Answer records a player's choice for the active question. Each player
// answers at most once per question and no later than the time limit plus
// GraceMillis.
type Answer struct {
	Caller      string
	AnswerIndex int
}

func (Answer) Name() string { return "answer" }

func (c Answer) apply(g *Game, now time.Time) error {
	if g.Phase != PhaseQuestionActive {
		return fmt.Errorf("%w: no question is accepting answers", ErrInvalidState)
	}
	if !g.HasPlayer(c.Caller) {
		return fmt.Errorf("%w: not a player in this game", ErrForbidden)
	}
	if _, ok := g.CurrentRoundAnswers[c.Caller]; ok {
		return fmt.Errorf("%w: already answered this question", ErrConflict)
	}

	elapsed := max(now.Sub(g.PhaseStartTime).Milliseconds(), 0)
	if elapsed > int64(g.TimeLimitSeconds)*1000+GraceMillis {
		return fmt.Errorf("%w: time is up", ErrConflict)
	}

	q, ok := g.CurrentQuestion()
	if !ok {
		return fmt.Errorf("%w: no current question", ErrInvalidState)
	}
	if c.AnswerIndex < 0 || c.AnswerIndex >= len(q.Answers) {
		return fmt.Errorf("%w: answer index %d out of range", ErrValidation, c.AnswerIndex)
	}

	g.CurrentRoundAnswers[c.Caller] = AnswerRecord{
		AnswerIndex: c.AnswerIndex,
		ElapsedMs:   elapsed,
		SubmittedAt: now,
	}
	return nil
}

// Reveal closes the round and scores every recorded answer.
type Reveal struct {
	Caller string
}

func (Reveal) Name() string { return "reveal" }

func (c Reveal) apply(g *Game, now time.Time) error {
	if err := requireHost(g, c.Caller); err != nil {
		return err
	}
	if g.Phase != PhaseQuestionActive {
		return fmt.Errorf("%w: nothing to reveal in %s", ErrInvalidState, g.Phase)
	}
	q, ok := g.CurrentQuestion()
	if !ok {
		return fmt.Errorf("%w: no current question", ErrInvalidState)
	}

	for userID, a := range g.CurrentRoundAnswers {
		a.ScoreEarned = Score(a.AnswerIndex == q.CorrectIndex, a.ElapsedMs, g.TimeLimitSeconds)
		g.CurrentRoundAnswers[userID] = a
		g.Scores[userID] += a.ScoreEarned
	}
	g.Phase = PhaseRevealAnswer
	g.PhaseStartTime = now
	return nil
}

type ShowLeaderboard struct {
	Caller string
}

func (ShowLeaderboard) Name() string { return "leaderboard" }

func (c ShowLeaderboard) apply(g *Game, now time.Time) error {
	if err := requireHost(g, c.Caller); err != nil {
		return err
	}
	if g.Phase != PhaseRevealAnswer && g.Phase != PhaseLeaderboard {
		return fmt.Errorf("%w: leaderboard follows a revealed answer", ErrInvalidState)
	}
	g.Phase = PhaseLeaderboard
	g.PhaseStartTime = now
	return nil
}

// Reset returns the game to an empty lobby, keeping the roster.
type Reset struct {
	Caller string
}

func (Reset) Name() string { return "reset" }

func (c Reset) apply(g *Game, now time.Time) error {
	if err := requireHost(g, c.Caller); err != nil {
		return err
	}
	g.Phase = PhaseLobby
	g.CurrentQuestionIndex = -1
	g.Questions = []Question{}
	g.Scores = make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		g.Scores[p] = 0
	}
	clearRound(g, now)
	return nil
}
