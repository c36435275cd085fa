package interview

import (
	"context"
	"log"
	"sync"
	"time"

	"mock-interview/internal/activity"
	"mock-interview/internal/domain"
	"mock-interview/internal/metrics"
	"mock-interview/internal/speech"
)

// Options wires a Facade. Questions is required; everything else has a working default.
type Options struct {
	Config    Config
	Questions QuestionSource
	Speech    Speech
	Recorder  Persister
	// Activity returns the tab-activity source for a new session; nil disables polling.
	Activity         func(sessionID string) activity.Source
	ActivityInterval time.Duration
	InferRole        func(jobDescription string) string
	Metrics          *metrics.Metrics
}

// Facade is the single entry point a front-end uses to run one interview at a time.
type Facade struct {
	controller *Controller
	guard      *guardedObserver
	opts       Options

	mu     sync.Mutex
	poller *activity.Poller
}

func NewFacade(opts Options, observer Observer) *Facade {
	if observer == nil {
		observer = NopObserver{}
	}
	if opts.Speech == nil {
		opts.Speech = speech.NewAdapter(speech.Unsupported())
	}

	f := &Facade{opts: opts}
	f.guard = &guardedObserver{
		next:       observer,
		metrics:    opts.Metrics,
		presented:  make(map[int]bool),
		onComplete: f.stopPoller,
	}
	f.controller = NewController(opts.Config, opts.Questions, opts.Speech, opts.Recorder, f.guard)
	return f
}

// Start normalizes and validates the setup, then begins a new interview, discarding any
// interview already in progress.
func (f *Facade) Start(ctx context.Context, setup domain.Setup) (string, error) {
	setup.Normalize(f.opts.InferRole)
	if err := setup.Validate(); err != nil {
		return "", err
	}

	f.stopPoller()
	id, err := f.controller.Start(ctx, setup)
	if err != nil {
		return "", err
	}
	f.opts.Metrics.IncrementInterviewsStarted()
	log.Printf("interview: started session %s for %q (%s, %s, %d questions)",
		id, setup.CandidateName, setup.Role, setup.Difficulty, setup.QuestionCount)

	if f.opts.Activity != nil {
		if source := f.opts.Activity(id); source != nil {
			f.startPoller(ctx, source)
		}
	}
	return id, nil
}

// SubmitAnswer records a typed answer for question index.
func (f *Facade) SubmitAnswer(index int, text string) error {
	return f.controller.SubmitAnswer(index, text)
}

// Cancel stops the interview without persisting anything.
func (f *Facade) Cancel() error {
	if err := f.controller.Cancel(); err != nil {
		return err
	}
	f.stopPoller()
	f.opts.Metrics.IncrementInterviewsCancelled()
	return nil
}

// Status returns a read-only view of the interview.
func (f *Facade) Status() domain.Status {
	return f.controller.Snapshot()
}

// Activity returns the last polled tab-activity metrics.
func (f *Facade) Activity() (activity.Metrics, bool) {
	f.mu.Lock()
	p := f.poller
	f.mu.Unlock()
	if p == nil {
		return activity.Metrics{}, false
	}
	return p.Latest()
}

// Close cancels an interview in progress and stops background work.
func (f *Facade) Close() {
	if f.controller.Snapshot().State.InProgress() {
		_ = f.controller.Cancel()
	}
	f.stopPoller()
}

func (f *Facade) startPoller(ctx context.Context, source activity.Source) {
	p := activity.NewPoller(source, f.opts.ActivityInterval, f.guard.TabActivity)

	f.mu.Lock()
	f.poller = p
	f.mu.Unlock()

	p.Start(context.WithoutCancel(ctx))
}

// stopPoller stops polling but keeps the poller so its last value stays readable.
func (f *Facade) stopPoller() {
	f.mu.Lock()
	p := f.poller
	f.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// guardedObserver enforces delivery rules on top of the controller's events: Complete at
// most once per session, and no AnswerRecorded for a question that was never presented.
type guardedObserver struct {
	next       Observer
	metrics    *metrics.Metrics
	onComplete func()

	mu        sync.Mutex
	presented map[int]bool
	completed bool
}

func (g *guardedObserver) QuestionsReady(questions []string, fallback bool) {
	g.mu.Lock()
	g.presented = make(map[int]bool, len(questions))
	g.completed = false
	g.mu.Unlock()

	if fallback {
		log.Printf("interview: using %d fallback questions", len(questions))
	}
	g.next.QuestionsReady(questions, fallback)
}

func (g *guardedObserver) QuestionChanged(index int, question string) {
	g.mu.Lock()
	g.presented[index] = true
	g.mu.Unlock()

	g.metrics.IncrementQuestionsAsked()
	g.next.QuestionChanged(index, question)
}

func (g *guardedObserver) ListeningStateChanged(listening bool) {
	g.next.ListeningStateChanged(listening)
}

func (g *guardedObserver) InterimTranscript(index int, text string) {
	g.next.InterimTranscript(index, text)
}

func (g *guardedObserver) AnswerRecorded(index int, text string, source domain.AnswerSource) {
	g.mu.Lock()
	presented := g.presented[index]
	g.mu.Unlock()
	if !presented {
		log.Printf("interview: dropping answer for unpresented question %d", index)
		return
	}

	g.metrics.IncrementAnswers(source == domain.AnswerSourceSpeech)
	g.next.AnswerRecorded(index, text, source)
}

func (g *guardedObserver) Complete(status domain.Status) {
	g.mu.Lock()
	if g.completed {
		g.mu.Unlock()
		return
	}
	g.completed = true
	g.mu.Unlock()

	if g.onComplete != nil {
		g.onComplete()
	}
	g.metrics.IncrementInterviewsCompleted()
	g.next.Complete(status)
}

func (g *guardedObserver) Error(code domain.ErrorCode, err error) {
	if code == domain.ErrorCodePersistence {
		g.metrics.IncrementPersistFailures()
	}
	g.next.Error(code, err)
}

func (g *guardedObserver) TabActivity(m activity.Metrics) {
	g.next.TabActivity(m)
}
