package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"mock-interview/internal/config"
	"mock-interview/internal/domain"
	"mock-interview/internal/interview"
	"mock-interview/internal/metrics"
)

const (
	maxAnswerLength = 4000
	sessionIdleTTL  = 24 * time.Hour
)

// RateLimiter allows each user at most limit messages per sliding window.
type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.RWMutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter with an empty history.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// IsAllowed records a message from userID and reports whether it is within the limit.
func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	if requests, exists := rl.requests[userID]; exists {
		var valid []time.Time
		for _, t := range requests {
			if now.Sub(t) < rl.window {
				valid = append(valid, t)
			}
		}
		rl.requests[userID] = valid
	}

	if len(rl.requests[userID]) >= rl.limit {
		return false
	}

	rl.requests[userID] = append(rl.requests[userID], now)
	return true
}

// Deps wires the interview stack used for every chat.
type Deps struct {
	Interview *config.Config
	Session   interview.Config
	Questions interview.QuestionSource
	InferRole func(jobDescription string) string
	Recorder  interview.Persister
	Metrics   *metrics.Metrics
}

// Handler runs text-only interviews: questions are sent as messages and every reply is
// submitted as a typed answer.
type Handler struct {
	sender        Sender
	deps          Deps
	sessions      map[int64]*UserSession
	sessionsMutex sync.RWMutex
	rateLimiter   *RateLimiter
}

// NewHandler creates a handler that replies through sender.
func NewHandler(sender Sender, deps Deps) *Handler {
	if deps.Interview == nil {
		deps.Interview = config.Default()
	}
	return &Handler{
		sender:      sender,
		deps:        deps,
		sessions:    make(map[int64]*UserSession),
		rateLimiter: NewRateLimiter(10, time.Minute),
	}
}

// RunCleanup drops idle conversations every hour until ctx is done.
func (h *Handler) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case now := <-ticker.C:
			h.cleanupInactiveSessions(now)
		}
	}
}

func (h *Handler) cleanupInactiveSessions(now time.Time) int {
	h.sessionsMutex.Lock()
	var idle []*UserSession
	cutoff := now.Add(-sessionIdleTTL)
	for uid, sess := range h.sessions {
		sess.mu.Lock()
		stale := sess.LastActivity.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			idle = append(idle, sess)
			delete(h.sessions, uid)
		}
	}
	h.sessionsMutex.Unlock()

	for _, sess := range idle {
		sess.mu.Lock()
		if sess.facade != nil {
			sess.facade.Close()
		}
		sess.mu.Unlock()
	}
	return len(idle)
}

func (h *Handler) closeAll() {
	h.sessionsMutex.Lock()
	sessions := h.sessions
	h.sessions = make(map[int64]*UserSession)
	h.sessionsMutex.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.facade != nil {
			sess.facade.Close()
		}
		sess.mu.Unlock()
	}
}

func (h *Handler) HandleUpdate(update Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if !h.rateLimiter.IsAllowed(userID) {
		h.send(chatID, "⏳ Too many messages. Please wait a minute.")
		return
	}

	session := h.getOrCreateSession(userID, chatID)
	session.mu.Lock()
	defer session.mu.Unlock()
	session.LastActivity = time.Now()

	if strings.HasPrefix(text, "/") {
		h.handleCommand(chatID, text, session)
		return
	}
	h.handleUserInput(chatID, text, session, update.Message.From)
}

func (h *Handler) handleCommand(chatID int64, command string, session *UserSession) {
	name, _, _ := strings.Cut(command, " ")
	switch name {
	case "/start":
		h.handleStartCommand(chatID, session)
	case "/help":
		h.handleHelpCommand(chatID)
	case "/status":
		h.handleStatusCommand(chatID, session)
	case "/stop":
		h.handleStopCommand(chatID, session)
	default:
		h.send(chatID, "Unknown command. Use /help to see the available commands.")
	}
}

func (h *Handler) handleStartCommand(chatID int64, session *UserSession) {
	if h.interviewRunning(session) {
		h.send(chatID, "An interview is already running. Use /status to check progress or /stop to end it.")
		return
	}

	session.State = StateAwaitingName
	session.CandidateName = ""
	h.send(chatID, "🎯 *Mock interview*\n\nWhat is your name? Send a dot (.) to use your Telegram name.")
}

func (h *Handler) handleHelpCommand(chatID int64) {
	helpText := `🤖 *Mock interview bot*

*Commands:*
/start - Start a new interview
/status - Show interview progress
/stop - Stop the current interview
/help - Show this message

*How it works:*
1. Send /start and tell me your name
2. Paste a job description or just the role title
3. Answer each of the %d questions in one message
4. Your answers are saved when the last one is in`

	h.send(chatID, fmt.Sprintf(helpText, h.deps.Interview.GetDefaultQuestionCount()))
}

func (h *Handler) handleStatusCommand(chatID int64, session *UserSession) {
	switch session.State {
	case StateAwaitingName, StateAwaitingRole:
		h.send(chatID, "Setting up your interview. Answer the last prompt or use /stop.")
		return
	case StateIdle:
		h.send(chatID, "No interview running. Use /start to begin.")
		return
	}

	status := session.facade.Status()
	switch {
	case status.State == domain.StateGenerating:
		h.send(chatID, "⏳ Preparing your questions...")
	case status.State.InProgress():
		h.send(chatID, fmt.Sprintf("📊 *Interview progress*\n\n🆔 ID: `%s`\n❓ Question: %d/%d\n✍️ Answered: %d",
			status.SessionID, status.CurrentIndex+1, status.Total, len(status.Answers)))
	case status.State == domain.StateCompleting:
		h.send(chatID, "💾 Saving your answers...")
	default:
		h.send(chatID, fmt.Sprintf("✅ Interview finished.\n🆔 ID: `%s`\n\nUse /start for a new one.", session.SessionID))
	}
}

func (h *Handler) handleStopCommand(chatID int64, session *UserSession) {
	switch session.State {
	case StateIdle:
		h.send(chatID, "No interview running.")
		return
	case StateAwaitingName, StateAwaitingRole:
		session.State = StateIdle
		h.send(chatID, "🛑 Setup cancelled.")
		return
	}

	err := session.facade.Cancel()
	switch {
	case errors.Is(err, interview.ErrNotCancellable), errors.Is(err, interview.ErrNoActiveSession):
		h.send(chatID, "The interview has already finished.")
	case err != nil:
		h.send(chatID, "❌ Could not stop the interview: "+err.Error())
	default:
		session.State = StateIdle
		h.send(chatID, "🛑 Interview stopped. Nothing was saved.")
	}
}

func (h *Handler) handleUserInput(chatID int64, text string, session *UserSession, from *User) {
	switch session.State {
	case StateAwaitingName:
		if text == "." {
			text = strings.TrimSpace(from.FirstName + " " + from.LastName)
		}
		if text == "" {
			h.send(chatID, "Please send your name.")
			return
		}
		session.CandidateName = text
		session.State = StateAwaitingRole
		h.send(chatID, "Thanks! Now paste the job description, or just the role you are applying for.")
	case StateAwaitingRole:
		h.startInterview(chatID, text, session)
	case StateInterview:
		h.submitAnswer(chatID, text, session)
	default:
		h.send(chatID, "Use /start to begin an interview or /help for instructions.")
	}
}

func (h *Handler) startInterview(chatID int64, text string, session *UserSession) {
	if text == "" {
		h.send(chatID, "Please send a job description or a role.")
		return
	}

	setup := domain.Setup{CandidateName: session.CandidateName}
	// A short reply is taken as the role itself; anything longer is a job description.
	if len(strings.Fields(text)) <= 4 {
		setup.Role = text
	} else {
		setup.JobDescription = text
	}
	if err := h.deps.Interview.ApplyDefaults(&setup); err != nil {
		h.send(chatID, "❌ Could not start the interview: "+err.Error())
		return
	}

	if session.facade == nil {
		session.facade = interview.NewFacade(interview.Options{
			Config:    h.deps.Session,
			Questions: h.deps.Questions,
			Recorder:  h.deps.Recorder,
			InferRole: h.deps.InferRole,
			Metrics:   h.deps.Metrics,
		}, &chatObserver{handler: h, chatID: chatID})
	}

	id, err := session.facade.Start(context.Background(), setup)
	if err != nil {
		h.send(chatID, "❌ Could not start the interview: "+err.Error())
		return
	}
	session.SessionID = id
	session.State = StateInterview
	h.send(chatID, fmt.Sprintf("🚀 Starting your interview for *%s* (%s difficulty).\n🆔 ID: `%s`\n\nPreparing %d questions...",
		escapeMarkdown(h.roleOf(session, setup)), setup.Difficulty.FormLevel(), id, setup.QuestionCount))
}

func (h *Handler) roleOf(session *UserSession, setup domain.Setup) string {
	if status := session.facade.Status(); status.Setup != nil {
		return status.Setup.Role
	}
	return setup.Role
}

func (h *Handler) submitAnswer(chatID int64, text string, session *UserSession) {
	if err := validateUserInput(text); err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	status := session.facade.Status()
	switch {
	case status.State == domain.StateGenerating:
		h.send(chatID, "⏳ Your questions are still being prepared.")
		return
	case !status.State.InProgress():
		session.State = StateIdle
		h.send(chatID, "This interview is over. Use /start for a new one.")
		return
	}

	if err := session.facade.SubmitAnswer(status.CurrentIndex, text); err != nil {
		if errors.Is(err, interview.ErrStaleAnswer) {
			h.send(chatID, "⏳ Please wait for the next question.")
			return
		}
		h.send(chatID, "❌ "+err.Error())
	}
}

func validateUserInput(text string) error {
	if len(text) > maxAnswerLength {
		return fmt.Errorf("message is too long (maximum %d characters)", maxAnswerLength)
	}

	if len(text) > 10 && strings.Count(text, text[:1]) > len(text)*8/10 {
		return fmt.Errorf("message contains too many repeated characters")
	}

	return nil
}

func (h *Handler) interviewRunning(session *UserSession) bool {
	if session.State != StateInterview || session.facade == nil {
		return false
	}
	state := session.facade.Status().State
	return state.InProgress() || state == domain.StateCompleting
}

func (h *Handler) getOrCreateSession(userID, chatID int64) *UserSession {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()

	if session, exists := h.sessions[userID]; exists {
		return session
	}

	session := &UserSession{
		UserID:       userID,
		ChatID:       chatID,
		State:        StateIdle,
		LastActivity: time.Now(),
	}
	h.sessions[userID] = session
	return session
}

func (h *Handler) send(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.sender.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("telegram: send to chat %d: %v", chatID, err)
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
