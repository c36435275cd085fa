package prompts

import (
	"fmt"
	"strings"

	"mock-interview/internal/domain"
)

// DefaultTone is used for emotions without a dedicated tone.
const DefaultTone = "professional and neutral"

var tones = map[string]string{
	"happy":     "energetic and engaging",
	"sad":       "supportive and encouraging",
	"angry":     "calm and measured",
	"surprised": "clear and direct",
}

// ToneFor maps a detected emotion tag to the tone the questions should take.
func ToneFor(emotion string) string {
	if tone, ok := tones[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return tone
	}
	return DefaultTone
}

const questionSystemPrompt = `You are an AI assistant specialized in generating interview questions.
Format your response as a numbered list, with each question on a new line.
Each question should be prefixed with a number followed by a period.
Do not include any additional text or explanations.`

// QuestionSystemPrompt returns the fixed instructions sent with every generation request.
func QuestionSystemPrompt() string {
	return questionSystemPrompt
}

// BuildQuestionPrompt builds the user message asking for exactly req.Count questions.
func BuildQuestionPrompt(req domain.GenerationRequest) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Generate exactly %d %s interview questions for a %s role.\n",
		req.Count, req.Difficulty, req.Role))
	prompt.WriteString(fmt.Sprintf("Based on the candidate's initial emotion being %q, adjust the tone to be %s.\n",
		emotionOrDefault(req.ToneHint), ToneFor(req.ToneHint)))
	prompt.WriteString("The questions should be challenging but fair.\n")
	prompt.WriteString(fmt.Sprintf("Make sure the questions are specifically tailored for a %s position.\n", req.Role))

	if jd := strings.TrimSpace(req.JobDescription); jd != "" {
		prompt.WriteString("Use the following job description to create relevant questions: ")
		prompt.WriteString(jd)
		prompt.WriteString("\n")
	}

	return prompt.String()
}

func emotionOrDefault(emotion string) string {
	if strings.TrimSpace(emotion) == "" {
		return domain.DefaultEmotion
	}
	return emotion
}
