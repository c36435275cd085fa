package speech

import (
	"context"
	"errors"

	"mock-interview/internal/domain"
)

// ErrNoSpeech means recognition ended without a final transcript.
var ErrNoSpeech = errors.New("no speech detected")

// Utterance is one question to be read aloud.
type Utterance struct {
	Index int
	Text  string
}

// Synthesizer reads text aloud. Speak returns when the utterance ends or ctx is cancelled.
type Synthesizer interface {
	Supported() bool
	Speak(ctx context.Context, u Utterance) error
}

// Recognizer captures one spoken answer. Interim text goes to the callback; the final
// transcript is returned.
type Recognizer interface {
	Supported() bool
	Recognize(ctx context.Context, index int, interim func(string)) (string, error)
}

type unsupported struct{}

func (unsupported) Supported() bool { return false }

func (unsupported) Speak(context.Context, Utterance) error { return domain.ErrSpeechUnsupported }

func (unsupported) Recognize(context.Context, int, func(string)) (string, error) {
	return "", domain.ErrSpeechUnsupported
}

// Unsupported returns ports for runtimes without speech, such as text-only front-ends.
func Unsupported() (Synthesizer, Recognizer) {
	return unsupported{}, unsupported{}
}
