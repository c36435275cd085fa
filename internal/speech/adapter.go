package speech

import (
	"context"
	"strings"
	"sync"

	"mock-interview/internal/domain"
)

// Adapter keeps at most one utterance and one recognition in flight.
type Adapter struct {
	synth Synthesizer
	rec   Recognizer

	speaking  slot
	listening slot
}

func NewAdapter(synth Synthesizer, rec Recognizer) *Adapter {
	if synth == nil || rec == nil {
		s, r := Unsupported()
		if synth == nil {
			synth = s
		}
		if rec == nil {
			rec = r
		}
	}
	return &Adapter{synth: synth, rec: rec}
}

func (a *Adapter) SynthesisSupported() bool { return a.synth.Supported() }

func (a *Adapter) RecognitionSupported() bool { return a.rec.Supported() }

// Speak cancels any utterance still in flight, then reads u aloud. It returns nil when the
// utterance ends naturally.
func (a *Adapter) Speak(ctx context.Context, u Utterance) error {
	if !a.synth.Supported() {
		return domain.ErrSpeechUnsupported
	}
	ctx, end := a.speaking.begin(ctx)
	defer end()
	return a.synth.Speak(ctx, u)
}

// Listen aborts any recognition still in flight, then captures one answer. A failed or
// empty recognition is reported as *domain.RecognitionError so the answer can be typed
// instead. Cancellation is returned as the context error.
func (a *Adapter) Listen(ctx context.Context, index int, interim func(string)) (string, error) {
	if !a.rec.Supported() {
		return "", &domain.RecognitionError{Cause: domain.ErrSpeechUnsupported}
	}
	ctx, end := a.listening.begin(ctx)
	defer end()

	if interim == nil {
		interim = func(string) {}
	}
	text, err := a.rec.Recognize(ctx, index, interim)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", &domain.RecognitionError{Cause: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.RecognitionError{Cause: ErrNoSpeech}
	}
	return text, nil
}

// Abort cancels both operations and returns once neither is active.
func (a *Adapter) Abort() {
	a.speaking.abort()
	a.listening.abort()
}

// Active reports whether an utterance or a recognition is in flight.
func (a *Adapter) Active() bool {
	return a.speaking.active() || a.listening.active()
}

// slot serializes one kind of operation: starting a new one cancels and waits for the old.
type slot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *slot) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	prevCancel, prevDone := s.cancel, s.done
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	return ctx, func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}
}

func (s *slot) abort() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *slot) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}
