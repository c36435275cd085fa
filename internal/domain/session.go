package domain

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// MinQuestionCount is the floor for a session's question count.
	MinQuestionCount = 3
	// MaxQuestionCount bounds what a setup may request.
	MaxQuestionCount = 20
	// DefaultQuestionCount is used when the setup leaves the count empty.
	DefaultQuestionCount = 5
	// DefaultEmotion is the initial emotion when none was captured.
	DefaultEmotion = "neutral"
)

var (
	ErrQuestionsAlreadySet = errors.New("questions already set")
	ErrTooFewQuestions     = errors.New("fewer questions than the minimum")
	ErrIndexOutOfRange     = errors.New("answer index out of range")
	ErrIndexNotCurrent     = errors.New("answer index is not the current question")
	ErrAlreadyAnswered     = errors.New("question already answered")
)

// Setup holds the parameters a candidate confirms before the interview starts.
type Setup struct {
	CandidateName  string     `json:"candidateName" yaml:"candidate_name"`
	Role           string     `json:"role" yaml:"role"`
	JobDescription string     `json:"jobDescription" yaml:"job_description"`
	Difficulty     Difficulty `json:"difficulty" yaml:"difficulty"`
	QuestionCount  int        `json:"questionCount" yaml:"question_count"`
	InitialEmotion string     `json:"initialEmotion" yaml:"initial_emotion"`
}

// Normalize trims input, fills defaults and infers the role when it was not supplied.
func (s *Setup) Normalize(inferRole func(jobDescription string) string) {
	s.CandidateName = strings.TrimSpace(s.CandidateName)
	s.Role = strings.TrimSpace(s.Role)
	s.JobDescription = strings.TrimSpace(s.JobDescription)
	s.InitialEmotion = strings.ToLower(strings.TrimSpace(s.InitialEmotion))
	if s.InitialEmotion == "" {
		s.InitialEmotion = DefaultEmotion
	}
	if s.Difficulty == "" {
		s.Difficulty = DifficultyIntermediate
	}
	if s.QuestionCount == 0 {
		s.QuestionCount = DefaultQuestionCount
	}
	if s.Role == "" && s.JobDescription != "" && inferRole != nil {
		s.Role = inferRole(s.JobDescription)
	}
}

// Validate rejects setups the turn controller must never see.
func (s Setup) Validate() error {
	if s.CandidateName == "" {
		return &ValidationError{Field: "candidateName", Reason: "must not be empty"}
	}
	if s.Role == "" {
		return &ValidationError{Field: "role", Reason: "must not be empty"}
	}
	switch s.Difficulty {
	case DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced:
	default:
		return &ValidationError{Field: "difficulty", Reason: "unknown level " + string(s.Difficulty)}
	}
	if s.QuestionCount < MinQuestionCount {
		return &ValidationError{Field: "questionCount", Reason: "must be at least 3"}
	}
	if s.QuestionCount > MaxQuestionCount {
		return &ValidationError{Field: "questionCount", Reason: "must be at most 20"}
	}
	return nil
}

// Session is one interview from confirmed setup to completion. It is mutated only by the
// turn controller, which serializes access.
type Session struct {
	ID        string
	Setup     Setup
	StartedAt time.Time

	Questions    []string
	Answers      []Answer
	CurrentIndex int
	Fallback     bool

	persisted atomic.Bool
}

func NewSession(setup Setup) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Setup:     setup,
		StartedAt: time.Now().UTC(),
	}
}

// SetQuestions fixes the question list. It may only be called once.
func (s *Session) SetQuestions(questions []string, fallback bool) error {
	if s.Questions != nil {
		return ErrQuestionsAlreadySet
	}
	if len(questions) < MinQuestionCount {
		return ErrTooFewQuestions
	}
	s.Questions = append([]string(nil), questions...)
	s.Fallback = fallback
	s.CurrentIndex = 0
	return nil
}

// Record stores the answer for the current question.
func (s *Session) Record(index int, text string, source AnswerSource, at time.Time) error {
	if index < 0 || index >= len(s.Questions) {
		return ErrIndexOutOfRange
	}
	if index != s.CurrentIndex {
		return ErrIndexNotCurrent
	}
	if _, ok := s.AnswerFor(index); ok {
		return ErrAlreadyAnswered
	}
	s.Answers = append(s.Answers, Answer{Index: index, Text: text, Source: source, At: at})
	return nil
}

// AnswerFor returns the answer recorded for index, if any.
func (s *Session) AnswerFor(index int) (string, bool) {
	for _, a := range s.Answers {
		if a.Index == index {
			return a.Text, true
		}
	}
	return "", false
}

// IsLast reports whether the current question is the final one.
func (s *Session) IsLast() bool {
	return s.CurrentIndex == len(s.Questions)-1
}

// Advance moves to the next question once the current one is answered.
func (s *Session) Advance() bool {
	if _, ok := s.AnswerFor(s.CurrentIndex); !ok || s.IsLast() {
		return false
	}
	s.CurrentIndex++
	return true
}

// Finish moves the index past the last question; only the terminal state has it there.
func (s *Session) Finish() {
	s.CurrentIndex = len(s.Questions)
}

// CurrentQuestion returns the question at the current index or "" past the end.
func (s *Session) CurrentQuestion() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return ""
	}
	return s.Questions[s.CurrentIndex]
}

// Responses maps question text to answer text.
func (s *Session) Responses() map[string]string {
	out := make(map[string]string, len(s.Answers))
	for _, a := range s.Answers {
		if a.Index >= 0 && a.Index < len(s.Questions) {
			out[s.Questions[a.Index]] = a.Text
		}
	}
	return out
}

// MarkPersisted flips the one-shot persistence guard. Only the first call returns true.
func (s *Session) MarkPersisted() bool {
	return s.persisted.CompareAndSwap(false, true)
}

// Persisted reports whether a persistence attempt has been made.
func (s *Session) Persisted() bool {
	return s.persisted.Load()
}

// Status copies the session into a read-only view.
func (s *Session) Status(state State) Status {
	setup := s.Setup
	return Status{
		SessionID:    s.ID,
		State:        state,
		CurrentIndex: s.CurrentIndex,
		Total:        len(s.Questions),
		Question:     s.CurrentQuestion(),
		Questions:    append([]string(nil), s.Questions...),
		Answers:      append([]Answer(nil), s.Answers...),
		Fallback:     s.Fallback,
		Setup:        &setup,
	}
}
