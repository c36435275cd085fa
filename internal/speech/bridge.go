package speech

import (
	"context"
	"errors"
	"sync"
)

type outcome struct {
	text string
	err  error
}

type pending struct {
	index   int
	ch      chan outcome
	interim func(string)
}

// Bridge implements both ports for a client that performs speech itself (a browser) and
// reports back. Reports for indexes older than the one currently awaited are ignored;
// reports that arrive before the wait starts are kept until it does.
type Bridge struct {
	synthesis   bool
	recognition bool

	mu      sync.Mutex
	current int
	speak   *pending
	listen  *pending
	spoken  map[int]struct{}
	results map[int]outcome
}

// NewBridge takes the capabilities the client probed for.
func NewBridge(synthesis, recognition bool) *Bridge {
	return &Bridge{
		synthesis:   synthesis,
		recognition: recognition,
		spoken:      make(map[int]struct{}),
		results:     make(map[int]outcome),
	}
}

// Synthesizer returns the bridge as the synthesis port.
func (b *Bridge) Synthesizer() Synthesizer { return bridgeSynth{b} }

// Recognizer returns the bridge as the recognition port.
func (b *Bridge) Recognizer() Recognizer { return bridgeRec{b} }

// UtteranceEnded reports that the client finished reading question index.
func (b *Bridge) UtteranceEnded(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < b.current {
		return false
	}
	if b.speak != nil && b.speak.index == index {
		b.speak.ch <- outcome{}
		b.speak = nil
		return true
	}
	b.spoken[index] = struct{}{}
	return true
}

// Transcript reports recognized text for index. Non-final text is forwarded as interim.
func (b *Bridge) Transcript(index int, text string, final bool) bool {
	b.mu.Lock()
	if index < b.current {
		b.mu.Unlock()
		return false
	}
	if final {
		defer b.mu.Unlock()
		return b.resolveLocked(index, outcome{text: text})
	}

	var interim func(string)
	if b.listen != nil && b.listen.index == index {
		interim = b.listen.interim
	}
	b.mu.Unlock()

	if interim == nil {
		return false
	}
	interim(text)
	return true
}

// RecognitionFailed reports that the client's recognizer gave up on index.
func (b *Bridge) RecognitionFailed(index int, reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < b.current {
		return false
	}
	if reason == "" {
		reason = "recognition failed"
	}
	return b.resolveLocked(index, outcome{err: errors.New(reason)})
}

func (b *Bridge) resolveLocked(index int, out outcome) bool {
	if b.listen != nil && b.listen.index == index {
		b.listen.ch <- out
		b.listen = nil
		return true
	}
	b.results[index] = out
	return true
}

// advanceLocked moves the stale boundary and drops early reports that fell behind it.
func (b *Bridge) advanceLocked(index int) {
	if index <= b.current {
		return
	}
	b.current = index
	for i := range b.spoken {
		if i < index {
			delete(b.spoken, i)
		}
	}
	for i := range b.results {
		if i < index {
			delete(b.results, i)
		}
	}
}

func (b *Bridge) waitSpoken(ctx context.Context, index int) error {
	b.mu.Lock()
	b.advanceLocked(index)
	if _, ok := b.spoken[index]; ok {
		delete(b.spoken, index)
		b.mu.Unlock()
		return nil
	}
	p := &pending{index: index, ch: make(chan outcome, 1)}
	b.speak = p
	b.mu.Unlock()

	return b.await(ctx, p, &b.speak).err
}

func (b *Bridge) waitTranscript(ctx context.Context, index int, interim func(string)) (string, error) {
	b.mu.Lock()
	b.advanceLocked(index)
	if out, ok := b.results[index]; ok {
		delete(b.results, index)
		b.mu.Unlock()
		return out.text, out.err
	}
	p := &pending{index: index, ch: make(chan outcome, 1), interim: interim}
	b.listen = p
	b.mu.Unlock()

	out := b.await(ctx, p, &b.listen)
	return out.text, out.err
}

func (b *Bridge) await(ctx context.Context, p *pending, field **pending) outcome {
	select {
	case out := <-p.ch:
		return out
	case <-ctx.Done():
		b.mu.Lock()
		if *field == p {
			*field = nil
		}
		b.mu.Unlock()
		return outcome{err: ctx.Err()}
	}
}

type bridgeSynth struct{ b *Bridge }

func (s bridgeSynth) Supported() bool { return s.b.synthesis }

func (s bridgeSynth) Speak(ctx context.Context, u Utterance) error {
	return s.b.waitSpoken(ctx, u.Index)
}

type bridgeRec struct{ b *Bridge }

func (r bridgeRec) Supported() bool { return r.b.recognition }

func (r bridgeRec) Recognize(ctx context.Context, index int, interim func(string)) (string, error) {
	return r.b.waitTranscript(ctx, index, interim)
}
