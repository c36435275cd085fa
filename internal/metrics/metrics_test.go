package metrics

import (
	"sync"
	"testing"
)

func TestMetricsCountConcurrently(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.IncrementQuestionsAsked()
			m.IncrementAnswers(i%2 == 0)
			m.IncrementAPICall(i%5 == 0)
		}(i)
	}
	wg.Wait()

	snap := m.GetSnapshot()
	if snap.QuestionsAsked != 50 {
		t.Fatalf("questions asked = %d", snap.QuestionsAsked)
	}
	if snap.SpeechAnswers != 25 || snap.ManualAnswers != 25 {
		t.Fatalf("answers = %d speech / %d manual", snap.SpeechAnswers, snap.ManualAnswers)
	}
	if snap.APICallsTotal != 50 || snap.APICallsSuccessful != 10 {
		t.Fatalf("api calls = %d / %d", snap.APICallsSuccessful, snap.APICallsTotal)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.IncrementInterviewsStarted()
	if got := m.GetSnapshot(); got.InterviewsStarted != 0 {
		t.Fatalf("expected zero snapshot, got %+v", got)
	}
}
