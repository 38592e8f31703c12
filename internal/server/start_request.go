package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/playperu/weaver/internal/trivia"
)

type QuestionPayload struct {
	Text         string   `json:"text"`
	Answers      []string `json:"answers"`
	CorrectIndex *int     `json:"correctIndex"`
}

// StartRequest is decoded loosely so that a wrongly typed time limit is
// reported as a validation error rather than a malformed body.
type StartRequest struct {
	Questions        []QuestionPayload `json:"questions"`
	TimeLimitSeconds json.RawMessage   `json:"timeLimitSeconds,omitempty" description:"Seconds per question, clamped to 5..120. Omit to keep the current limit."`
}

func (req StartRequest) parse() ([]trivia.Question, *int, error) {
	questions := make([]trivia.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if q.Text == "" {
			return nil, nil, fmt.Errorf("%w: question %d has no text", trivia.ErrValidation, i+1)
		}
		if q.CorrectIndex == nil {
			return nil, nil, fmt.Errorf("%w: question %d has no correctIndex", trivia.ErrValidation, i+1)
		}
		questions = append(questions, trivia.Question{
			Text:         q.Text,
			Answers:      q.Answers,
			CorrectIndex: *q.CorrectIndex,
		})
	}

	limit, err := parseTimeLimit(req.TimeLimitSeconds)
	if err != nil {
		return nil, nil, err
	}
	return questions, limit, nil
}

func parseTimeLimit(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return nil, fmt.Errorf("%w: timeLimitSeconds must be a number", trivia.ErrValidation)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, fmt.Errorf("%w: timeLimitSeconds must be finite", trivia.ErrValidation)
	}

	// Clamp before converting so huge values cannot overflow int.
	n := int(math.Round(min(max(seconds, 0), trivia.MaxTimeLimitSeconds)))
	return &n, nil
}
