package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	InterviewsStarted   int64     `json:"interviewsStarted"`
	InterviewsCompleted int64     `json:"interviewsCompleted"`
	InterviewsCancelled int64     `json:"interviewsCancelled"`
	QuestionsAsked      int64     `json:"questionsAsked"`
	SpeechAnswers       int64     `json:"speechAnswers"`
	ManualAnswers       int64     `json:"manualAnswers"`
	FallbackQuestionSet int64     `json:"fallbackQuestionSets"`
	APICallsTotal       int64     `json:"apiCallsTotal"`
	APICallsSuccessful  int64     `json:"apiCallsSuccessful"`
	PersistFailures     int64     `json:"persistFailures"`
	LastUpdateTime      time.Time `json:"lastUpdateTime"`
}

type Metrics struct {
	mu   sync.RWMutex
	data Snapshot
}

func NewMetrics() *Metrics {
	return &Metrics{
		data: Snapshot{LastUpdateTime: time.Now()},
	}
}

func (m *Metrics) update(fn func(*Snapshot)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.data)
	m.data.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementInterviewsStarted() {
	m.update(func(s *Snapshot) { s.InterviewsStarted++ })
}

func (m *Metrics) IncrementInterviewsCompleted() {
	m.update(func(s *Snapshot) { s.InterviewsCompleted++ })
}

func (m *Metrics) IncrementInterviewsCancelled() {
	m.update(func(s *Snapshot) { s.InterviewsCancelled++ })
}

func (m *Metrics) IncrementQuestionsAsked() {
	m.update(func(s *Snapshot) { s.QuestionsAsked++ })
}

// IncrementAnswers counts a recorded answer by the input that produced it.
func (m *Metrics) IncrementAnswers(speech bool) {
	m.update(func(s *Snapshot) {
		if speech {
			s.SpeechAnswers++
		} else {
			s.ManualAnswers++
		}
	})
}

func (m *Metrics) IncrementFallback() {
	m.update(func(s *Snapshot) { s.FallbackQuestionSet++ })
}

func (m *Metrics) IncrementAPICall(success bool) {
	m.update(func(s *Snapshot) {
		s.APICallsTotal++
		if success {
			s.APICallsSuccessful++
		}
	})
}

func (m *Metrics) IncrementPersistFailures() {
	m.update(func(s *Snapshot) { s.PersistFailures++ })
}

func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}
