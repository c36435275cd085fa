package telegram

import (
	"fmt"

	"mock-interview/internal/domain"
	"mock-interview/internal/interview"
)

// chatObserver turns facade events into chat messages. It only sends; the handler's
// session lock may be held while it runs.
type chatObserver struct {
	interview.NopObserver
	handler *Handler
	chatID  int64
	total   int
}

func (o *chatObserver) QuestionsReady(questions []string, _ bool) {
	o.total = len(questions)
}

func (o *chatObserver) QuestionChanged(index int, question string) {
	o.handler.send(o.chatID, fmt.Sprintf("❓ *Question %d/%d:*\n\n%s", index+1, o.total, escapeMarkdown(question)))
}

func (o *chatObserver) Complete(status domain.Status) {
	o.handler.send(o.chatID, fmt.Sprintf(`✅ *Interview complete!*

• %d questions answered
• 🆔 ID: `+"`%s`"+`

Use /start for another interview.`, len(status.Answers), status.SessionID))
}

func (o *chatObserver) Error(code domain.ErrorCode, _ error) {
	switch code {
	case domain.ErrorCodePersistence:
		o.handler.send(o.chatID, "⚠️ Your answers could not be saved.")
	case domain.ErrorCodeGeneration:
		o.handler.send(o.chatID, "ℹ️ Using the built-in question bank.")
	}
}
