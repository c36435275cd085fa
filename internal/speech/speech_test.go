package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mock-interview/internal/domain"
)

type blockingSynth struct {
	mu      sync.Mutex
	started []int
	active  int
	maxSeen int
}

func (s *blockingSynth) Supported() bool { return true }

func (s *blockingSynth) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	s.started = append(s.started, u.Index)
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return ctx.Err()
}

type scriptedRec struct {
	text string
	err  error
}

func (r scriptedRec) Supported() bool { return true }

func (r scriptedRec) Recognize(_ context.Context, _ int, interim func(string)) (string, error) {
	interim("partial")
	return r.text, r.err
}

type blockingRec struct {
	mu      sync.Mutex
	started []int
	active  int
	maxSeen int
}

func (r *blockingRec) Supported() bool { return true }

func (r *blockingRec) Recognize(ctx context.Context, index int, _ func(string)) (string, error) {
	r.mu.Lock()
	r.started = append(r.started, index)
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return "", ctx.Err()
}

func (r *blockingRec) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSpeakCancelsPreviousUtterance(t *testing.T) {
	t.Parallel()

	synth := &blockingSynth{}
	a := NewAdapter(synth, nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- a.Speak(context.Background(), Utterance{Index: 0, Text: "one"}) }()
	waitFor(t, func() bool { synth.mu.Lock(); defer synth.mu.Unlock(); return len(synth.started) == 1 })

	go func() { _ = a.Speak(context.Background(), Utterance{Index: 1, Text: "two"}) }()

	select {
	case err := <-firstDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first utterance cancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first utterance was not cancelled")
	}

	waitFor(t, func() bool { synth.mu.Lock(); defer synth.mu.Unlock(); return len(synth.started) == 2 })
	a.Abort()
	if a.Active() {
		t.Fatalf("adapter still active after abort")
	}
	synth.mu.Lock()
	defer synth.mu.Unlock()
	if synth.maxSeen != 1 {
		t.Fatalf("expected at most one utterance in flight, saw %d", synth.maxSeen)
	}
}

func TestListenAbortsPreviousRecognition(t *testing.T) {
	t.Parallel()

	rec := &blockingRec{}
	a := NewAdapter(nil, rec)

	firstDone := make(chan error, 1)
	go func() {
		_, err := a.Listen(context.Background(), 0, nil)
		firstDone <- err
	}()
	waitFor(t, func() bool { return rec.startedCount() == 1 })

	secondDone := make(chan error, 1)
	go func() {
		_, err := a.Listen(context.Background(), 1, nil)
		secondDone <- err
	}()

	select {
	case err := <-firstDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first recognition cancelled, got %v", err)
		}
		var recErr *domain.RecognitionError
		if errors.As(err, &recErr) {
			t.Fatalf("cancellation must not be reported as a recognition failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first recognition was not aborted")
	}

	waitFor(t, func() bool { return rec.startedCount() == 2 })
	if !a.Active() {
		t.Fatalf("expected the second recognition to be in flight")
	}
	a.Abort()
	if err := <-secondDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected second recognition cancelled by abort, got %v", err)
	}
	if a.Active() {
		t.Fatalf("adapter still active after abort")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.maxSeen != 1 {
		t.Fatalf("expected at most one recognition in flight, saw %d", rec.maxSeen)
	}
}

func TestListenOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rec     Recognizer
		want    string
		wantErr error
	}{
		{"final transcript", scriptedRec{text: "  I like Go  "}, "I like Go", nil},
		{"empty transcript", scriptedRec{text: " "}, "", ErrNoSpeech},
		{"recognizer error", scriptedRec{err: errors.New("network")}, "", nil},
		{"unsupported", nil, "", domain.ErrSpeechUnsupported},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var interim []string
			a := NewAdapter(nil, tc.rec)
			got, err := a.Listen(context.Background(), 0, func(s string) { interim = append(interim, s) })
			if tc.want != "" {
				if err != nil || got != tc.want {
					t.Fatalf("Listen() = %q, %v", got, err)
				}
				if len(interim) != 1 {
					t.Fatalf("expected interim forwarded, got %v", interim)
				}
				return
			}
			var recErr *domain.RecognitionError
			if !errors.As(err, &recErr) {
				t.Fatalf("expected RecognitionError, got %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSpeakUnsupported(t *testing.T) {
	t.Parallel()

	a := NewAdapter(Unsupported())
	if a.SynthesisSupported() || a.RecognitionSupported() {
		t.Fatalf("expected unsupported adapter")
	}
	if err := a.Speak(context.Background(), Utterance{}); !errors.Is(err, domain.ErrSpeechUnsupported) {
		t.Fatalf("expected ErrSpeechUnsupported, got %v", err)
	}
}

func TestBridgeDeliversReports(t *testing.T) {
	t.Parallel()

	b := NewBridge(true, true)
	a := NewAdapter(b.Synthesizer(), b.Recognizer())

	spoke := make(chan error, 1)
	go func() { spoke <- a.Speak(context.Background(), Utterance{Index: 0}) }()
	waitFor(t, func() bool { b.mu.Lock(); defer b.mu.Unlock(); return b.speak != nil })
	if !b.UtteranceEnded(0) {
		t.Fatalf("report rejected")
	}
	if err := <-spoke; err != nil {
		t.Fatalf("speak: %v", err)
	}

	type result struct {
		text string
		err  error
	}
	heard := make(chan result, 1)
	var interim []string
	var mu sync.Mutex
	go func() {
		text, err := a.Listen(context.Background(), 0, func(s string) { mu.Lock(); interim = append(interim, s); mu.Unlock() })
		heard <- result{text, err}
	}()
	waitFor(t, func() bool { b.mu.Lock(); defer b.mu.Unlock(); return b.listen != nil })
	b.Transcript(0, "hel", false)
	b.Transcript(0, "hello there", true)

	got := <-heard
	if got.err != nil || got.text != "hello there" {
		t.Fatalf("listen = %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(interim) != 1 || interim[0] != "hel" {
		t.Fatalf("unexpected interim %v", interim)
	}
}

func TestBridgeEarlyAndStaleReports(t *testing.T) {
	t.Parallel()

	b := NewBridge(true, true)
	rec := b.Recognizer()

	b.RecognitionFailed(1, "no-speech")
	if _, err := rec.Recognize(context.Background(), 1, func(string) {}); err == nil || err.Error() != "no-speech" {
		t.Fatalf("expected early failure delivered, got %v", err)
	}

	if b.UtteranceEnded(0) || b.Transcript(0, "late", true) {
		t.Fatalf("stale reports must be ignored")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Synthesizer().Speak(ctx, Utterance{Index: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
