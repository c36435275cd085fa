package storage

import "time"

// InterviewRecord is the durable transcript of one completed interview.
type InterviewRecord struct {
	Key                 string            `json:"key"`
	SessionID           string            `json:"session_id"`
	Name                string            `json:"name"`
	Role                string            `json:"role"`
	Questions           []string          `json:"questions"`
	Responses           map[string]string `json:"responses"`
	Transcript          []QA              `json:"transcript"`
	InitialEmotion      string            `json:"initial_emotion"`
	QuestionCount       int               `json:"question_count"`
	ActualQuestionCount int               `json:"actual_question_count"`
	Difficulty          string            `json:"difficulty"`
	JobDescription      string            `json:"job_description"`
	Fallback            bool              `json:"fallback"`
	Timestamp           time.Time         `json:"timestamp"`
}

// QA is one question with the answer given to it, in asking order.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}

// SetupRecord is a saved interview configuration a session can be started from.
type SetupRecord struct {
	ID             string    `json:"id"`
	JobDescription string    `json:"job_description"`
	QuestionCount  int       `json:"question_count"`
	Difficulty     string    `json:"difficulty"`
	CreatedAt      time.Time `json:"created_at"`
}
