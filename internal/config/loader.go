package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mock-interview/internal/domain"
)

// Load reads the interview configuration from a YAML file. Missing keys keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(filename string) (*Config, error) {
	config, err := Load(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

func validateConfig(config *Config) error {
	ic := config.Interview

	if ic.MinQuestionCount < domain.MinQuestionCount {
		return fmt.Errorf("min_question_count must be at least %d", domain.MinQuestionCount)
	}

	if ic.MaxQuestionCount > domain.MaxQuestionCount {
		return fmt.Errorf("max_question_count must be at most %d", domain.MaxQuestionCount)
	}

	if ic.MaxQuestionCount < ic.MinQuestionCount {
		return fmt.Errorf("max_question_count (%d) is below min_question_count (%d)",
			ic.MaxQuestionCount, ic.MinQuestionCount)
	}

	if ic.DefaultQuestionCount < ic.MinQuestionCount || ic.DefaultQuestionCount > ic.MaxQuestionCount {
		return fmt.Errorf("default_question_count must be between %d and %d",
			ic.MinQuestionCount, ic.MaxQuestionCount)
	}

	if _, err := domain.ParseDifficulty(ic.DefaultDifficulty); err != nil {
		return fmt.Errorf("default_difficulty: %w", err)
	}

	return nil
}
