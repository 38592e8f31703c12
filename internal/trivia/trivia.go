// Package trivia defines the game record, the phase engine that moves it
// between phases, answer scoring, and the per-viewer projection.
// It has zero external dependencies and performs no I/O.
package trivia

import (
	"maps"
	"slices"
	"time"
)

type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseStarting       Phase = "STARTING"
	PhaseQuestionRead   Phase = "QUESTION_READ"
	PhaseWaitingForHost Phase = "WAITING_FOR_HOST"
	PhaseQuestionActive Phase = "QUESTION_ACTIVE"
	PhaseRevealAnswer   Phase = "REVEAL_ANSWER"
	PhaseLeaderboard    Phase = "LEADERBOARD"
	PhaseFinished       Phase = "FINISHED"
)

const (
	MinTimeLimitSeconds     = 5
	MaxTimeLimitSeconds     = 120
	DefaultTimeLimitSeconds = 20

	// GraceMillis is tolerated past the time limit to absorb network latency.
	GraceMillis = 2000
)

type Question struct {
	Text         string   `json:"text"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correctIndex"`
}

type AnswerRecord struct {
	AnswerIndex int       `json:"answerIndex"`
	ElapsedMs   int64     `json:"elapsedMs"`
	ScoreEarned int       `json:"scoreEarned"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Game is the stored record of one trivia session.
type Game struct {
	ID                   string                  `json:"id"`
	HostID               string                  `json:"hostId"`
	Phase                Phase                   `json:"phase"`
	Questions            []Question              `json:"questions"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"`
	PhaseStartTime       time.Time               `json:"phaseStartTime"`
	TimeLimitSeconds     int                     `json:"timeLimitSeconds"`
	Players              []string                `json:"players"`
	Scores               map[string]int          `json:"scores"`
	CurrentRoundAnswers  map[string]AnswerRecord `json:"currentRoundAnswers"`
	Revision             int64                   `json:"revision"`
	CreatedAt            time.Time               `json:"createdAt"`
}

// NewGame returns a lobby with the host as its only player.
func NewGame(id, hostID string, now time.Time) Game {
	return Game{
		ID:                   id,
		HostID:               hostID,
		Phase:                PhaseLobby,
		Questions:            []Question{},
		CurrentQuestionIndex: -1,
		PhaseStartTime:       now,
		TimeLimitSeconds:     DefaultTimeLimitSeconds,
		Players:              []string{hostID},
		Scores:               map[string]int{hostID: 0},
		CurrentRoundAnswers:  map[string]AnswerRecord{},
		Revision:             1,
		CreatedAt:            now,
	}
}

// Clone returns a deep copy so the result shares no slices or maps with g.
func (g Game) Clone() Game {
	c := g
	c.Questions = make([]Question, len(g.Questions))
	for i, q := range g.Questions {
		q.Answers = slices.Clone(q.Answers)
		c.Questions[i] = q
	}
	c.Players = slices.Clone(g.Players)
	if c.Players == nil {
		c.Players = []string{}
	}
	c.Scores = maps.Clone(g.Scores)
	if c.Scores == nil {
		c.Scores = map[string]int{}
	}
	c.CurrentRoundAnswers = maps.Clone(g.CurrentRoundAnswers)
	if c.CurrentRoundAnswers == nil {
		c.CurrentRoundAnswers = map[string]AnswerRecord{}
	}
	return c
}

func (g Game) HasPlayer(userID string) bool {
	return slices.Contains(g.Players, userID)
}

// CurrentQuestion reports the active question, if the index points at one.
func (g Game) CurrentQuestion() (Question, bool) {
	if g.CurrentQuestionIndex < 0 || g.CurrentQuestionIndex >= len(g.Questions) {
		return Question{}, false
	}
	return g.Questions[g.CurrentQuestionIndex], true
}

// Active reports whether the game can still be joined or played through the
// active-game pointer.
func (g Game) Active() bool {
	return g.Phase != PhaseFinished
}

// questionVisible reports whether the current question text is shown to players.
func (p Phase) questionVisible() bool {
	switch p {
	case PhaseStarting, PhaseQuestionRead, PhaseWaitingForHost, PhaseQuestionActive, PhaseRevealAnswer:
		return true
	}
	return false
}
