package interview

import (
	"mock-interview/internal/activity"
	"mock-interview/internal/domain"
)

// Observer receives the facade's notifications for the presentation layer.
type Observer interface {
	QuestionsReady(questions []string, fallback bool)
	QuestionChanged(index int, question string)
	ListeningStateChanged(listening bool)
	InterimTranscript(index int, text string)
	AnswerRecorded(index int, text string, source domain.AnswerSource)
	Complete(status domain.Status)
	Error(code domain.ErrorCode, err error)
	TabActivity(metrics activity.Metrics)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) QuestionsReady([]string, bool) {}
func (NopObserver) QuestionChanged(int, string) {}
func (NopObserver) ListeningStateChanged(bool) {}
func (NopObserver) InterimTranscript(int, string) {}
func (NopObserver) AnswerRecorded(int, string, domain.AnswerSource) {}
func (NopObserver) Complete(domain.Status) {}
func (NopObserver) Error(domain.ErrorCode, error) {}
func (NopObserver) TabActivity(activity.Metrics) {}
