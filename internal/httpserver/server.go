package httpserver

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"mock-interview/internal/activity"
	"mock-interview/internal/config"
	"mock-interview/internal/interview"
	"mock-interview/internal/metrics"
	"mock-interview/internal/recorder"
	"mock-interview/internal/speech"
	"mock-interview/internal/storage"
)

const defaultSessionTTL = 30 * time.Minute

// Deps are the collaborators shared by every session the server runs.
type Deps struct {
	App       *config.AppConfig
	Interview *config.Config
	Questions interview.QuestionSource
	InferRole func(jobDescription string) string
	Store     storage.Store
	Metrics   *metrics.Metrics
	Tracker   *activity.Tracker
}

// Server runs one facade per browser session and exposes it over HTTP.
type Server struct {
	deps Deps
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id     string
	facade *interview.Facade
	bridge *speech.Bridge
	hub    *hub

	mu      sync.Mutex
	touched time.Time
	streams int
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

// openStream marks a connected event stream; the session is not idle while one is open.
func (s *session) openStream(now time.Time) func() {
	s.mu.Lock()
	s.streams++
	s.touched = now
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.streams--
		s.touched = time.Now()
		s.mu.Unlock()
	}
}

// idleSince returns the last client contact, or false while a stream is connected.
func (s *session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched, s.streams == 0
}

func NewServer(deps Deps) *Server {
	if deps.App == nil {
		deps.App = config.LoadAppConfig()
	}
	if deps.Interview == nil {
		deps.Interview = config.Default()
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}
	if deps.Tracker == nil {
		deps.Tracker = activity.NewTracker()
	}
	ttl := deps.App.Server.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Server{deps: deps, ttl: ttl, sessions: make(map[string]*session)}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", s.getMetrics)

	api := e.Group("/api")
	api.POST("/setup", s.createSetup)
	api.GET("/setup/:id", s.getSetup)

	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.cancelSession)
	api.GET("/sessions/:id/events", s.streamEvents)
	api.POST("/sessions/:id/answers", s.submitAnswer)
	api.POST("/sessions/:id/speech/ended", s.speechEnded)
	api.POST("/sessions/:id/speech/transcript", s.speechTranscript)
	api.POST("/sessions/:id/speech/error", s.speechError)
	api.GET("/sessions/:id/activity", s.getActivity)
	api.POST("/sessions/:id/activity", s.trackActivity)
}

// Run evicts finished sessions every minute until ctx is done, then closes all sessions.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			s.evict(now)
		}
	}
}

func (s *Server) evict(now time.Time) int {
	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		if sess.facade.Status().State.InProgress() {
			log.Printf("interview: session %s abandoned by its client, cancelling", sess.id)
		}
		s.release(sess)
	}
	if len(expired) > 0 {
		log.Printf("interview: evicted %d sessions", len(expired))
	}
	return len(expired)
}

// expired reports whether a session finished, or went without client contact, more than
// one TTL before now.
func (s *Server) expired(sess *session, now time.Time) bool {
	if at, ok := sess.hub.finishedAt(); ok {
		return now.Sub(at) >= s.ttl
	}
	at, idle := sess.idleSince()
	return idle && now.Sub(at) >= s.ttl
}

func (s *Server) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.release(sess)
	}
}

func (s *Server) release(sess *session) {
	sess.facade.Close()
	sess.hub.close()
	s.deps.Tracker.Forget(sess.id)
}

func (s *Server) lookup(c echo.Context) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	sess.touch(time.Now())
	return sess, nil
}

func (s *Server) getMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"counters":  s.deps.Metrics.GetSnapshot(),
		"generator": s.deps.App.Generator.GetModelInfo(),
	})
}

func (s *Server) newFacade(h *hub, bridge *speech.Bridge) *interview.Facade {
	app := s.deps.App
	opts := interview.Options{
		Config: interview.Config{
			ListenDelay:            app.Session.ListenDelay,
			AdvanceDelay:           app.Session.AdvanceDelay,
			UnsupportedSpeechDelay: app.Session.UnsupportedSpeechDelay,
			PersistTimeout:         app.Session.PersistTimeout,
		},
		Questions:        s.deps.Questions,
		Speech:           speech.NewAdapter(bridge.Synthesizer(), bridge.Recognizer()),
		Recorder:         recorder.New(s.deps.Store),
		ActivityInterval: app.Activity.Interval,
		InferRole:        s.deps.InferRole,
		Metrics:          s.deps.Metrics,
	}
	if app.Activity.URL != "" {
		opts.Activity = func(id string) activity.Source {
			return &activity.HTTPSource{URL: app.Activity.URL, UserID: id}
		}
	} else {
		tracker := s.deps.Tracker
		opts.Activity = func(id string) activity.Source {
			return activity.TrackerSource(tracker, id)
		}
	}
	return interview.NewFacade(opts, h)
}
