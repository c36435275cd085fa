package interview

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"mock-interview/internal/domain"
	"mock-interview/internal/speech"
)

var (
	ErrStaleAnswer     = errors.New("answer does not match the current question")
	ErrEmptyAnswer     = errors.New("answer is empty")
	ErrNoActiveSession = errors.New("no active session")
	ErrNotCancellable  = errors.New("session cannot be cancelled in its current state")
	ErrCompleting      = errors.New("session is being saved")
)

// Config holds the pauses between turn phases.
type Config struct {
	// ListenDelay separates the end of an utterance from the start of recognition.
	ListenDelay time.Duration
	// AdvanceDelay is the pause between a recorded answer and the next question.
	AdvanceDelay time.Duration
	// UnsupportedSpeechDelay replaces the utterance when synthesis is unavailable.
	UnsupportedSpeechDelay time.Duration
	// PersistTimeout bounds the single persistence attempt.
	PersistTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenDelay:            500 * time.Millisecond,
		AdvanceDelay:           1500 * time.Millisecond,
		UnsupportedSpeechDelay: 500 * time.Millisecond,
		PersistTimeout:         10 * time.Second,
	}
}

// QuestionSource produces the questions for a session. It must always return a usable
// set, falling back internally.
type QuestionSource interface {
	Questions(ctx context.Context, req domain.GenerationRequest) domain.QuestionSet
}

// Speech is the speech I/O the controller drives.
type Speech interface {
	SynthesisSupported() bool
	RecognitionSupported() bool
	Speak(ctx context.Context, u speech.Utterance) error
	Listen(ctx context.Context, index int, interim func(string)) (string, error)
	Abort()
	Active() bool
}

// Persister writes a completed session once.
type Persister interface {
	Persist(ctx context.Context, session *domain.Session) (string, error)
}

type event func(Observer)

// Controller is the interview state machine. Every transition happens under mu; observer
// callbacks run after mu is released, in transition order, and must not call back into
// the Controller.
type Controller struct {
	cfg       Config
	questions QuestionSource
	speech    Speech
	persister Persister
	observer  Observer
	now       func() time.Time

	opMu   sync.Mutex
	emitMu sync.Mutex
	mu     sync.Mutex
	wg     sync.WaitGroup

	state         State
	session       *domain.Session
	sessionCancel context.CancelFunc
	sessionCtx    context.Context
	turnCancel    context.CancelFunc
}

// State aliases the domain lifecycle for callers of this package.
type State = domain.State

func NewController(cfg Config, questions QuestionSource, sp Speech, persister Persister, observer Observer) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Controller{
		cfg:       cfg,
		questions: questions,
		speech:    sp,
		persister: persister,
		observer:  observer,
		now:       time.Now,
		state:     domain.StateNotStarted,
	}
}

// Start discards any interview in progress and begins a new one. Questions are generated
// in the background; QuestionsReady and QuestionChanged(0) follow.
func (c *Controller) Start(ctx context.Context, setup domain.Setup) (string, error) {
	if err := setup.Validate(); err != nil {
		return "", err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state == domain.StateCompleting {
		c.mu.Unlock()
		return "", ErrCompleting
	}
	if c.state.InProgress() {
		log.Printf("interview: restarting, discarding session %s", c.session.ID)
		c.mu.Unlock()
		c.teardown()
		c.mu.Lock()
	}

	sess := domain.NewSession(setup)
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.session = sess
	c.sessionCtx = sessCtx
	c.sessionCancel = cancel
	c.state = domain.StateGenerating
	c.wg.Add(1)
	c.mu.Unlock()

	go c.generate(sessCtx, sess)
	return sess.ID, nil
}

// SubmitAnswer records a typed answer for the current question.
func (c *Controller) SubmitAnswer(index int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnswer
	}

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrStaleAnswer
	}
	return c.submit(sess, index, text, domain.AnswerSourceManual)
}

// Cancel halts the interview, tears down every pending task and returns to NotStarted.
// Nothing is persisted and no observer callback fires after it returns.
func (c *Controller) Cancel() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if !c.state.InProgress() {
		c.mu.Unlock()
		return ErrNotCancellable
	}
	log.Printf("interview: cancelling session %s at question %d", c.session.ID, c.session.CurrentIndex)
	c.mu.Unlock()

	c.teardown()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return domain.Status{State: c.state}
	}
	return c.session.Status(c.state)
}

// teardown cancels the session and waits for its tasks. Callers hold opMu.
func (c *Controller) teardown() {
	c.mu.Lock()
	cancel := c.sessionCancel
	c.session = nil
	c.sessionCtx = nil
	c.sessionCancel = nil
	c.turnCancel = nil
	c.state = domain.StateNotStarted
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.speech != nil {
		c.speech.Abort()
		if c.speech.Active() {
			log.Printf("interview: speech still active after abort")
		}
	}
	c.wg.Wait()

	// Wait out any dispatch that began before the session was discarded.
	c.emitMu.Lock()
	c.emitMu.Unlock()
}

func (c *Controller) generate(ctx context.Context, sess *domain.Session) {
	defer c.wg.Done()

	set := c.questions.Questions(ctx, domain.GenerationRequest{
		Role:           sess.Setup.Role,
		Difficulty:     sess.Setup.Difficulty,
		Count:          sess.Setup.QuestionCount,
		ToneHint:       sess.Setup.InitialEmotion,
		JobDescription: sess.Setup.JobDescription,
	})

	c.mu.Lock()
	if c.session != sess || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}

	var events []event
	if err := sess.SetQuestions(set.Questions, set.Fallback); err != nil {
		log.Printf("interview: generated questions rejected: %v", err)
		c.state = domain.StateFailed
		c.unlockAndEmit(append(events, func(o Observer) {
			o.Error(domain.ErrorCodeGeneration, &domain.GenerationError{Cause: err})
		}))
		return
	}

	if set.Cause != nil {
		cause := set.Cause
		events = append(events, func(o Observer) { o.Error(domain.ErrorCodeGeneration, cause) })
	}
	if !c.speech.SynthesisSupported() || !c.speech.RecognitionSupported() {
		events = append(events, func(o Observer) {
			o.Error(domain.ErrorCodeSpeechUnsupported, domain.ErrSpeechUnsupported)
		})
	}
	questions := append([]string(nil), sess.Questions...)
	fallback := sess.Fallback
	events = append(events, func(o Observer) { o.QuestionsReady(questions, fallback) })

	c.state = domain.StateAsking
	events = append(events, questionChanged(0, sess.Questions[0]))
	c.startTurnLocked(sess, 0, false)
	c.unlockAndEmit(events)
}

// startTurnLocked launches the task for question index. With advance set the task first
// waits AdvanceDelay and moves the session from index-1 to index.
func (c *Controller) startTurnLocked(sess *domain.Session, index int, advance bool) {
	ctx, cancel := context.WithCancel(c.sessionCtx)
	c.turnCancel = cancel
	c.wg.Add(1)
	go c.runTurn(ctx, sess, index, advance)
}

func (c *Controller) runTurn(ctx context.Context, sess *domain.Session, index int, advance bool) {
	defer c.wg.Done()

	if advance {
		if !sleep(ctx, c.cfg.AdvanceDelay) {
			return
		}
		c.mu.Lock()
		if c.session != sess || ctx.Err() != nil || sess.CurrentIndex != index-1 || !sess.Advance() {
			c.mu.Unlock()
			return
		}
		c.state = domain.StateAsking
		c.unlockAndEmit([]event{questionChanged(index, sess.Questions[index])})
	}

	c.mu.Lock()
	if !c.isCurrentLocked(sess, index) {
		c.mu.Unlock()
		return
	}
	question := sess.Questions[index]
	c.mu.Unlock()

	if c.speech.SynthesisSupported() {
		if err := c.speech.Speak(ctx, speech.Utterance{Index: index, Text: question}); err != nil && ctx.Err() == nil {
			log.Printf("interview: utterance %d ended with error: %v", index, err)
		}
	} else if !sleep(ctx, c.cfg.UnsupportedSpeechDelay) {
		return
	}
	if !sleep(ctx, c.cfg.ListenDelay) {
		return
	}

	c.mu.Lock()
	if !c.isCurrentLocked(sess, index) || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateListening
	c.unlockAndEmit([]event{func(o Observer) { o.ListeningStateChanged(true) }})

	if !c.speech.RecognitionSupported() {
		return
	}

	text, err := c.speech.Listen(ctx, index, func(partial string) {
		c.interim(sess, index, partial)
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.mu.Lock()
		if !c.isCurrentLocked(sess, index) {
			c.mu.Unlock()
			return
		}
		log.Printf("interview: recognition for question %d failed: %v", index, err)
		c.unlockAndEmit([]event{func(o Observer) { o.Error(domain.ErrorCodeRecognition, err) }})
		return
	}

	if err := c.submit(sess, index, text, domain.AnswerSourceSpeech); err != nil && !errors.Is(err, ErrStaleAnswer) {
		log.Printf("interview: dropping recognized answer for question %d: %v", index, err)
	}
}

func (c *Controller) interim(sess *domain.Session, index int, text string) {
	c.mu.Lock()
	if !c.isCurrentLocked(sess, index) || c.state != domain.StateListening {
		c.mu.Unlock()
		return
	}
	c.unlockAndEmit([]event{func(o Observer) { o.InterimTranscript(index, text) }})
}

// submit records the answer for index and moves to the next question or completion. The
// first answer for an index wins.
func (c *Controller) submit(sess *domain.Session, index int, text string, source domain.AnswerSource) error {
	c.mu.Lock()
	if c.session != sess || (c.state != domain.StateAsking && c.state != domain.StateListening) {
		c.mu.Unlock()
		return ErrStaleAnswer
	}
	if err := sess.Record(index, text, source, c.now().UTC()); err != nil {
		c.mu.Unlock()
		return errors.Join(ErrStaleAnswer, err)
	}

	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
	}

	events := []event{func(o Observer) { o.AnswerRecorded(index, text, source) }}
	if c.state == domain.StateListening {
		events = append(events, func(o Observer) { o.ListeningStateChanged(false) })
	}

	if sess.IsLast() {
		c.state = domain.StateCompleting
		c.wg.Add(1)
		go c.complete(sess)
		c.unlockAndEmit(events)
		return nil
	}

	c.state = domain.StateAsking
	c.startTurnLocked(sess, index+1, true)
	c.unlockAndEmit(events)
	return nil
}

// complete makes the single persistence attempt and then reaches the terminal state
// whatever its outcome.
func (c *Controller) complete(sess *domain.Session) {
	defer c.wg.Done()

	var persistErr error
	if c.persister != nil && !sess.Persisted() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.persistTimeout())
		_, persistErr = c.persister.Persist(ctx, sess)
		cancel()
	}

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	sess.Finish()
	c.state = domain.StateComplete
	status := sess.Status(domain.StateComplete)

	var events []event
	if persistErr != nil {
		var perr *domain.PersistenceError
		if !errors.As(persistErr, &perr) {
			perr = &domain.PersistenceError{Cause: persistErr}
		}
		events = append(events, func(o Observer) { o.Error(domain.ErrorCodePersistence, perr) })
	}
	events = append(events, func(o Observer) { o.Complete(status) })
	c.unlockAndEmit(events)
}

func (c *Controller) isCurrentLocked(sess *domain.Session, index int) bool {
	if c.session != sess || sess.CurrentIndex != index {
		return false
	}
	if c.state != domain.StateAsking && c.state != domain.StateListening {
		return false
	}
	_, answered := sess.AnswerFor(index)
	return !answered
}

// unlockAndEmit releases mu and dispatches events. emitMu is taken before mu is released
// so dispatch order matches transition order.
func (c *Controller) unlockAndEmit(events []event) {
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	for _, e := range events {
		e(c.observer)
	}
}

func questionChanged(index int, question string) event {
	return func(o Observer) { o.QuestionChanged(index, question) }
}

func (c Config) persistTimeout() time.Duration {
	if c.PersistTimeout <= 0 {
		return DefaultConfig().PersistTimeout
	}
	return c.PersistTimeout
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
