package questions

import (
	"regexp"
	"strings"
)

// minFreeformLength is the length a non-enumerated line needs to count as a question.
const minFreeformLength = 15

var (
	enumeratedLine   = regexp.MustCompile(`^\d+[.)]\s+`)
	enumerationToken = regexp.MustCompile(`^\d+[.)\s]+`)
)

// ParseQuestions extracts questions from a numbered-list completion.
func ParseQuestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !enumeratedLine.MatchString(line) && len(line) <= minFreeformLength {
			continue
		}
		q := strings.TrimSpace(enumerationToken.ReplaceAllString(line, ""))
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}
