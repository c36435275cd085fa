package questions

import (
	"context"
	"errors"
	"log"

	"mock-interview/internal/api"
	"mock-interview/internal/domain"
	"mock-interview/internal/metrics"
	"mock-interview/internal/prompts"
)

// ErrNotConfigured means no credential is available for the external path.
var ErrNotConfigured = errors.New("question service not configured")

// ErrNoQuestions means the completion parsed to zero questions.
var ErrNoQuestions = errors.New("no questions in completion")

// Completer is the chat completion capability the generator depends on.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, messages []api.Message) (string, error)
}

// Generator produces questions through the external completion service.
type Generator struct {
	client  Completer
	bank    *Bank
	metrics *metrics.Metrics
}

func NewGenerator(client Completer, bank *Bank, m *metrics.Metrics) *Generator {
	if bank == nil {
		bank = DefaultBank()
	}
	return &Generator{client: client, bank: bank, metrics: m}
}

// Generate makes a single completion call. Short results are padded from the bank; every
// failure is returned as *domain.GenerationError and never retried.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) ([]string, error) {
	if g.client == nil || !g.client.Configured() {
		return nil, &domain.GenerationError{Cause: ErrNotConfigured}
	}

	content, err := g.client.Complete(ctx, []api.Message{
		{Role: "system", Content: prompts.QuestionSystemPrompt()},
		{Role: "user", Content: prompts.BuildQuestionPrompt(req)},
	})
	g.metrics.IncrementAPICall(err == nil)
	if err != nil {
		return nil, &domain.GenerationError{Cause: err}
	}

	parsed := ParseQuestions(content)
	if len(parsed) == 0 {
		return nil, &domain.GenerationError{Cause: ErrNoQuestions}
	}
	if len(parsed) < req.Count {
		log.Printf("questions: completion returned %d of %d questions, padding", len(parsed), req.Count)
	}

	return g.bank.Pad(parsed, req.Role, req.Count), nil
}

// Service chooses between the external path and the fallback bank.
type Service struct {
	generator *Generator
	bank      *Bank
	metrics   *metrics.Metrics
}

func NewService(generator *Generator, bank *Bank, m *metrics.Metrics) *Service {
	if bank == nil {
		bank = DefaultBank()
	}
	return &Service{generator: generator, bank: bank, metrics: m}
}

// Questions always returns exactly req.Count questions (at least the minimum). When the
// external path fails the fallback bank is used and the cause is reported on the set.
func (s *Service) Questions(ctx context.Context, req domain.GenerationRequest) domain.QuestionSet {
	req.Count = normalizeCount(req.Count)

	if s.generator != nil {
		qs, err := s.generator.Generate(ctx, req)
		if err == nil {
			return domain.QuestionSet{Questions: qs}
		}
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			genErr = &domain.GenerationError{Cause: err}
		}
		if !errors.Is(err, ErrNotConfigured) {
			log.Printf("questions: external generation failed, using fallback bank: %v", err)
		}
		return s.fallback(req, genErr)
	}

	return s.fallback(req, &domain.GenerationError{Cause: ErrNotConfigured})
}

// Bank exposes the bank backing the fallback path.
func (s *Service) Bank() *Bank {
	return s.bank
}

func (s *Service) fallback(req domain.GenerationRequest, cause error) domain.QuestionSet {
	s.metrics.IncrementFallback()
	return domain.QuestionSet{
		Questions: s.bank.Fallback(req),
		Fallback:  true,
		Cause:     cause,
	}
}
