package questions

import "strings"

const inferredRoleWords = 3

// InferRole picks a role for a job description using the embedded bank's titles.
func InferRole(jobDescription string) string {
	return DefaultBank().InferRole(jobDescription)
}

// InferRole returns the first known title mentioned in the job description, or its first
// three words when none is.
func (b *Bank) InferRole(jobDescription string) string {
	lower := strings.ToLower(jobDescription)
	for _, title := range b.Titles {
		if title != "" && strings.Contains(lower, strings.ToLower(title)) {
			return title
		}
	}

	words := strings.Fields(jobDescription)
	if len(words) > inferredRoleWords {
		words = words[:inferredRoleWords]
	}
	return strings.Join(words, " ")
}
