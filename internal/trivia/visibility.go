package trivia

import (
	"maps"
	"slices"
	"time"
)

// QuestionView is a question as shown to a viewer. CorrectIndex is nil until
// the viewer is allowed to see it.
type QuestionView struct {
	Text         string   `json:"text"`
	Answers      []string `json:"answers"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
}

type RoundResult struct {
	AnswerIndex int  `json:"answerIndex"`
	ScoreEarned int  `json:"scoreEarned"`
	IsCorrect   bool `json:"isCorrect"`
}

// PlayerProfile is the public roster entry attached to pushed state.
type PlayerProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Score    int    `json:"score"`
}

// View is the projection of a game for one viewer. Host-only fields are
// left empty for everyone else.
type View struct {
	ID                   string          `json:"id"`
	Phase                Phase           `json:"phase"`
	HostID               string          `json:"hostId"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	PhaseStartTime       time.Time       `json:"phaseStartTime"`
	TimeLimitSeconds     int             `json:"timeLimitSeconds"`
	Players              []string        `json:"players"`
	Scores               map[string]int  `json:"scores"`
	UserHasAnswered      bool            `json:"userHasAnswered"`
	TotalQuestions       int             `json:"totalQuestions"`
	Revision             int64           `json:"revision"`
	CurrentQuestion      *QuestionView   `json:"currentQuestion,omitempty"`
	RoundResult          *RoundResult    `json:"roundResult,omitempty"`
	Profiles             []PlayerProfile `json:"profiles,omitempty"`

	IsHost              bool                    `json:"isHost"`
	Questions           []Question              `json:"questions,omitempty"`
	CurrentRoundAnswers map[string]AnswerRecord `json:"currentRoundAnswers,omitempty"`
	CreatedAt           *time.Time              `json:"createdAt,omitempty"`
}

// Project renders g for viewerID. The host sees the whole record; players
// never see the correct index before the reveal and only ever see their own
// round result. The returned view shares no memory with g.
func Project(g Game, viewerID string) View {
	g = g.Clone()

	_, answered := g.CurrentRoundAnswers[viewerID]
	v := View{
		ID:                   g.ID,
		Phase:                g.Phase,
		HostID:               g.HostID,
		CurrentQuestionIndex: g.CurrentQuestionIndex,
		PhaseStartTime:       g.PhaseStartTime,
		TimeLimitSeconds:     g.TimeLimitSeconds,
		Players:              g.Players,
		Scores:               g.Scores,
		UserHasAnswered:      answered,
		TotalQuestions:       len(g.Questions),
		Revision:             g.Revision,
	}

	if viewerID == g.HostID {
		v.IsHost = true
		v.Questions = g.Questions
		v.CurrentRoundAnswers = g.CurrentRoundAnswers
		createdAt := g.CreatedAt
		v.CreatedAt = &createdAt
		if q, ok := g.CurrentQuestion(); ok && g.Phase.questionVisible() {
			v.CurrentQuestion = questionView(q, true)
		}
		return v
	}

	q, ok := g.CurrentQuestion()
	if !ok || !g.Phase.questionVisible() {
		return v
	}
	if g.Phase != PhaseRevealAnswer {
		v.CurrentQuestion = questionView(q, false)
		return v
	}

	v.CurrentQuestion = questionView(q, true)
	if a, ok := g.CurrentRoundAnswers[viewerID]; ok {
		v.RoundResult = &RoundResult{
			AnswerIndex: a.AnswerIndex,
			ScoreEarned: a.ScoreEarned,
			IsCorrect:   a.AnswerIndex == q.CorrectIndex,
		}
	}
	return v
}

func questionView(q Question, withCorrect bool) *QuestionView {
	qv := &QuestionView{
		Text:    q.Text,
		Answers: slices.Clone(q.Answers),
	}
	if withCorrect {
		idx := q.CorrectIndex
		qv.CorrectIndex = &idx
	}
	return qv
}

// WithProfiles attaches roster entries in player order. Missing profiles
// fall back to the bare user ID.
func (v View) WithProfiles(profiles map[string]PlayerProfile) View {
	v.Scores = maps.Clone(v.Scores)
	v.Profiles = make([]PlayerProfile, 0, len(v.Players))
	for _, id := range v.Players {
		p, ok := profiles[id]
		if !ok {
			p = PlayerProfile{Username: id}
		}
		p.ID = id
		p.Score = v.Scores[id]
		v.Profiles = append(v.Profiles, p)
	}
	return v
}
