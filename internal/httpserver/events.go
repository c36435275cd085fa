package httpserver

import (
	"sync"
	"time"

	"mock-interview/internal/activity"
	"mock-interview/internal/domain"
)

const (
	subscriberBuffer = 64
	// maxReplayEvents bounds the replay buffer of one session.
	maxReplayEvents = 256
)

// transient events are streamed live but never replayed.
var transient = map[string]bool{
	"interim_transcript": true,
	"tab_activity":       true,
}

// Event is one facade notification as sent over the event stream.
type Event struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type questionsPayload struct {
	Questions []string `json:"questions"`
	Fallback  bool     `json:"fallback"`
}

type questionPayload struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
}

type listeningPayload struct {
	Listening bool `json:"listening"`
}

type transcriptPayload struct {
	Index  int                 `json:"index"`
	Text   string              `json:"text"`
	Source domain.AnswerSource `json:"source,omitempty"`
}

type errorPayload struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// hub buffers a session's events for replay and fans them out to live subscribers.
type hub struct {
	mu       sync.Mutex
	seq      int
	events   []Event
	subs     map[chan Event]struct{}
	finished time.Time
	closed   bool
	now      func() time.Time
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{}), now: time.Now}
}

func (h *hub) publish(typ string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.seq++
	ev := Event{Seq: h.seq, Type: typ, Data: data}
	if !transient[typ] {
		if len(h.events) == maxReplayEvents {
			h.events = append(h.events[:0], h.events[1:]...)
		}
		h.events = append(h.events, ev)
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it reconnects and replays from its last seq.
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// subscribe returns the buffered events after seq and a channel of live ones. The channel
// is closed when the hub closes or the subscriber falls behind.
func (h *hub) subscribe(after int) ([]Event, <-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var replay []Event
	for _, ev := range h.events {
		if ev.Seq > after {
			replay = append(replay, ev)
		}
	}
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return replay, ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return replay, ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// finish marks the session as over; it becomes eligible for eviction.
func (h *hub) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished.IsZero() {
		h.finished = h.now()
	}
}

func (h *hub) finishedAt() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished, !h.finished.IsZero()
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

func (h *hub) QuestionsReady(questions []string, fallback bool) {
	h.publish("questions_ready", questionsPayload{Questions: questions, Fallback: fallback})
}

func (h *hub) QuestionChanged(index int, question string) {
	h.publish("question_changed", questionPayload{Index: index, Question: question})
}

func (h *hub) ListeningStateChanged(listening bool) {
	h.publish("listening_state_changed", listeningPayload{Listening: listening})
}

func (h *hub) InterimTranscript(index int, text string) {
	h.publish("interim_transcript", transcriptPayload{Index: index, Text: text})
}

func (h *hub) AnswerRecorded(index int, text string, source domain.AnswerSource) {
	h.publish("answer_recorded", transcriptPayload{Index: index, Text: text, Source: source})
}

func (h *hub) Complete(status domain.Status) {
	h.publish("complete", status)
	h.finish()
}

func (h *hub) Error(code domain.ErrorCode, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.publish("error", errorPayload{Code: code, Message: msg})
}

func (h *hub) TabActivity(m activity.Metrics) {
	h.publish("tab_activity", m)
}
