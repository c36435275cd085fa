package config

import (
	"fmt"

	"mock-interview/internal/domain"
)

// Config holds the interview defaults read from YAML.
type Config struct {
	Interview InterviewConfig `yaml:"interview"`
	// QuestionBank is an optional path to a fallback bank replacing the embedded one.
	QuestionBank string `yaml:"question_bank"`
}

// InterviewConfig contains the setup defaults and limits.
type InterviewConfig struct {
	DefaultQuestionCount int    `yaml:"default_question_count"`
	MinQuestionCount     int    `yaml:"min_question_count"`
	MaxQuestionCount     int    `yaml:"max_question_count"`
	DefaultDifficulty    string `yaml:"default_difficulty"`
	DefaultEmotion       string `yaml:"default_emotion"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Interview: InterviewConfig{
			DefaultQuestionCount: domain.DefaultQuestionCount,
			MinQuestionCount:     domain.MinQuestionCount,
			MaxQuestionCount:     domain.MaxQuestionCount,
			DefaultDifficulty:    "medium",
			DefaultEmotion:       domain.DefaultEmotion,
		},
	}
}

func (c *Config) GetDefaultQuestionCount() int {
	return c.Interview.DefaultQuestionCount
}

func (c *Config) GetDefaultDifficulty() domain.Difficulty {
	d, err := domain.ParseDifficulty(c.Interview.DefaultDifficulty)
	if err != nil {
		return domain.DifficultyIntermediate
	}
	return d
}

// CheckQuestionCount rejects a count outside the configured limits.
func (c *Config) CheckQuestionCount(n int) error {
	if n < c.Interview.MinQuestionCount {
		return &domain.ValidationError{Field: "questionCount", Reason: fmt.Sprintf("must be at least %d", c.Interview.MinQuestionCount)}
	}
	if c.Interview.MaxQuestionCount > 0 && n > c.Interview.MaxQuestionCount {
		return &domain.ValidationError{Field: "questionCount", Reason: fmt.Sprintf("must be at most %d", c.Interview.MaxQuestionCount)}
	}
	return nil
}

// ApplyDefaults fills the setup fields a front-end left empty from the configured defaults.
// An explicit question count outside the limits is rejected, not adjusted.
func (c *Config) ApplyDefaults(setup *domain.Setup) error {
	if setup.QuestionCount == 0 {
		setup.QuestionCount = c.Interview.DefaultQuestionCount
	}
	if setup.Difficulty == "" {
		setup.Difficulty = c.GetDefaultDifficulty()
	}
	if setup.InitialEmotion == "" {
		setup.InitialEmotion = c.Interview.DefaultEmotion
	}
	return c.CheckQuestionCount(setup.QuestionCount)
}
