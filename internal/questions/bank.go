package questions

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mock-interview/internal/domain"
)

//go:embed bank.yaml
var defaultBank []byte

// Bank is the deterministic, non-networked source of questions.
type Bank struct {
	KeywordTemplate     string              `yaml:"keyword_template"`
	MaxKeywordQuestions int                 `yaml:"max_keyword_questions"`
	FillerTemplate      string              `yaml:"filler_template"`
	Keywords            []string            `yaml:"keywords"`
	Generic             []string            `yaml:"generic"`
	Variations          []string            `yaml:"variations"`
	Roles               map[string][]string `yaml:"roles"`
	Titles              []string            `yaml:"titles"`
}

// DefaultBank returns the embedded bank. The value is shared and must not be modified.
var DefaultBank = sync.OnceValue(func() *Bank {
	bank, err := ParseBank(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return bank
})

// LoadBank reads a bank from a YAML file, or returns the embedded one for an empty path.
func LoadBank(path string) (*Bank, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultBank(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %s: %w", path, err)
	}
	return ParseBank(data)
}

// ParseBank decodes and validates bank YAML.
func ParseBank(data []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := bank.validate(); err != nil {
		return nil, fmt.Errorf("validate question bank: %w", err)
	}
	return &bank, nil
}

func (b *Bank) validate() error {
	if len(b.Generic) == 0 {
		return fmt.Errorf("generic questions are required")
	}
	if !strings.Contains(b.FillerTemplate, "{n}") {
		return fmt.Errorf("filler_template must contain {n}")
	}
	if b.KeywordTemplate != "" && !strings.Contains(b.KeywordTemplate, "{keyword}") {
		return fmt.Errorf("keyword_template must contain {keyword}")
	}
	if b.MaxKeywordQuestions < 0 {
		return fmt.Errorf("max_keyword_questions cannot be negative")
	}
	return nil
}

// Fallback builds exactly req.Count questions: keyword questions, then role-specific,
// then generic templates, then variations, deduplicated in that order and padded with
// numbered filler questions. Identical requests always produce identical output.
func (b *Bank) Fallback(req domain.GenerationRequest) []string {
	count := normalizeCount(req.Count)
	role := roleOrDefault(req.Role)

	var pool []string
	pool = append(pool, b.keywordQuestions(req.JobDescription)...)
	pool = append(pool, b.RoleQuestions(role)...)
	pool = append(pool, b.render(b.Generic, role)...)
	pool = append(pool, b.render(b.Variations, role)...)

	return b.fill(dedupe(pool), role, count)
}

// Pad tops up questions with generic templates until there are count of them, then
// truncates to count.
func (b *Bank) Pad(questions []string, role string, count int) []string {
	count = normalizeCount(count)
	role = roleOrDefault(role)

	out := dedupe(questions)
	if len(out) >= count {
		return out[:count]
	}

	extra := append(b.render(b.Generic, role), b.render(b.Variations, role)...)
	out = dedupe(append(out, extra...))
	return b.fill(out, role, count)
}

// RoleQuestions returns the curated questions for a known role.
func (b *Bank) RoleQuestions(role string) []string {
	if qs, ok := b.Roles[role]; ok {
		return append([]string(nil), qs...)
	}
	for name, qs := range b.Roles {
		if strings.EqualFold(name, role) {
			return append([]string(nil), qs...)
		}
	}
	return nil
}

// MatchKeywords returns the bank keywords present in the job description, in bank order.
func (b *Bank) MatchKeywords(jobDescription string) []string {
	tokens := tokenize(jobDescription)
	if len(tokens) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	joined := " " + strings.Join(tokens, " ") + " "

	var matched []string
	for _, kw := range b.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			if strings.Contains(joined, " "+kw+" ") {
				matched = append(matched, kw)
			}
			continue
		}
		if _, ok := set[kw]; ok {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (b *Bank) keywordQuestions(jobDescription string) []string {
	if b.KeywordTemplate == "" || b.MaxKeywordQuestions == 0 {
		return nil
	}
	keywords := b.MatchKeywords(jobDescription)
	if len(keywords) > b.MaxKeywordQuestions {
		keywords = keywords[:b.MaxKeywordQuestions]
	}
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, strings.ReplaceAll(b.KeywordTemplate, "{keyword}", kw))
	}
	return out
}

func (b *Bank) render(templates []string, role string) []string {
	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, strings.ReplaceAll(tpl, "{role}", role))
	}
	return out
}

func (b *Bank) fill(out []string, role string, count int) []string {
	for n := 1; len(out) < count; n++ {
		filler := strings.ReplaceAll(b.FillerTemplate, "{role}", role)
		out = append(out, strings.ReplaceAll(filler, "{n}", strconv.Itoa(n)))
	}
	return out[:count]
}

// tokenize lowercases text and splits it on anything that cannot be part of a keyword.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r == '#', r == '+', r == '/':
			return false
		default:
			return true
		}
	})
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func normalizeCount(count int) int {
	if count < domain.MinQuestionCount {
		return domain.MinQuestionCount
	}
	return count
}

func roleOrDefault(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return "professional"
	}
	return role
}
