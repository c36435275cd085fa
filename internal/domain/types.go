package domain

import (
	"strings"
	"time"
)

// Difficulty is the complexity level requested for generated questions.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty accepts both the canonical names and the setup form's low/medium/high.
func ParseDifficulty(value string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "medium", "intermediate":
		return DifficultyIntermediate, nil
	case "low", "basic":
		return DifficultyBasic, nil
	case "high", "advanced":
		return DifficultyAdvanced, nil
	default:
		return "", &ValidationError{Field: "difficulty", Reason: "must be one of low, medium, high"}
	}
}

// FormLevel returns the low/medium/high name used by the setup form.
func (d Difficulty) FormLevel() string {
	switch d {
	case DifficultyBasic:
		return "low"
	case DifficultyAdvanced:
		return "high"
	default:
		return "medium"
	}
}

// State is the turn controller lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateGenerating State = "generating"
	StateAsking     State = "asking"
	StateListening  State = "listening"
	StateCompleting State = "completing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// InProgress reports whether a session is between setup and completion.
func (s State) InProgress() bool {
	switch s {
	case StateGenerating, StateAsking, StateListening:
		return true
	default:
		return false
	}
}

// AnswerSource identifies which input produced an answer.
type AnswerSource string

const (
	AnswerSourceSpeech AnswerSource = "speech"
	AnswerSourceManual AnswerSource = "manual"
)

// ErrorCode identifies non-fatal notices surfaced to the presentation layer.
type ErrorCode string

const (
	ErrorCodeGeneration        ErrorCode = "generation"
	ErrorCodeSpeechUnsupported ErrorCode = "speech_unsupported"
	ErrorCodeRecognition       ErrorCode = "recognition"
	ErrorCodePersistence       ErrorCode = "persistence"
)

// Answer is one recorded response.
type Answer struct {
	Index  int          `json:"index"`
	Text   string       `json:"text"`
	Source AnswerSource `json:"source"`
	At     time.Time    `json:"at"`
}

// GenerationRequest describes the questions wanted for one session.
type GenerationRequest struct {
	Role           string
	Difficulty     Difficulty
	Count          int
	ToneHint       string
	JobDescription string
}

// QuestionSet is the outcome of question generation.
type QuestionSet struct {
	Questions []string
	Fallback  bool
	// Cause is set when the external path failed and the fallback bank was used.
	Cause error
}

// Status is a read-only view of the controller.
type Status struct {
	SessionID    string   `json:"sessionId,omitempty"`
	State        State    `json:"state"`
	CurrentIndex int      `json:"currentIndex"`
	Total        int      `json:"total"`
	Question     string   `json:"question,omitempty"`
	Questions    []string `json:"questions,omitempty"`
	Answers      []Answer `json:"answers,omitempty"`
	Fallback     bool     `json:"fallback"`
	Setup        *Setup   `json:"setup,omitempty"`
}
