package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"mock-interview/internal/activity"
	"mock-interview/internal/domain"
	"mock-interview/internal/interview"
	"mock-interview/internal/speech"
	"mock-interview/internal/storage"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type setupRequest struct {
	JobDescription    string `json:"jobDescription"`
	NumberOfQuestions int    `json:"numberOfQuestions"`
	DifficultyLevel   string `json:"difficultyLevel"`
}

func (s *Server) createSetup(c echo.Context) error {
	var req setupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.JobDescription) == "" || req.NumberOfQuestions == 0 || req.DifficultyLevel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields are required")
	}
	difficulty, err := domain.ParseDifficulty(req.DifficultyLevel)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NumberOfQuestions < domain.MinQuestionCount || req.NumberOfQuestions > domain.MaxQuestionCount {
		return echo.NewHTTPError(http.StatusBadRequest, "numberOfQuestions is out of range")
	}

	record := &storage.SetupRecord{
		ID:             uuid.NewString(),
		JobDescription: strings.TrimSpace(req.JobDescription),
		QuestionCount:  req.NumberOfQuestions,
		Difficulty:     difficulty.FormLevel(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.deps.Store.CreateSetup(c.Request().Context(), record); err != nil {
		log.Printf("interview: save setup failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save setup")
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": record.ID})
}

func (s *Server) getSetup(c echo.Context) error {
	record, err := s.deps.Store.GetSetup(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return echo.NewHTTPError(http.StatusNotFound, "setup not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load setup")
	}
	return c.JSON(http.StatusOK, record)
}

type createSessionRequest struct {
	SetupID        string        `json:"setupId"`
	Setup          *domain.Setup `json:"setup"`
	CandidateName  string        `json:"candidateName"`
	InitialEmotion string        `json:"initialEmotion"`
	Speech         struct {
		Synthesis   bool `json:"synthesis"`
		Recognition bool `json:"recognition"`
	} `json:"speech"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	setup, err := s.resolveSetup(c, req)
	if err != nil {
		return err
	}

	h := newHub()
	bridge := speech.NewBridge(req.Speech.Synthesis, req.Speech.Recognition)
	facade := s.newFacade(h, bridge)

	id, err := facade.Start(c.Request().Context(), setup)
	if err != nil {
		facade.Close()
		if domain.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.mu.Lock()
	s.sessions[id] = &session{id: id, facade: facade, bridge: bridge, hub: h, touched: time.Now()}
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]string{"sessionId": id})
}

func (s *Server) resolveSetup(c echo.Context, req createSessionRequest) (domain.Setup, error) {
	var setup domain.Setup
	switch {
	case req.SetupID != "":
		record, err := s.deps.Store.GetSetup(c.Request().Context(), req.SetupID)
		if err != nil {
			return setup, echo.NewHTTPError(http.StatusNotFound, "setup not found")
		}
		difficulty, err := domain.ParseDifficulty(record.Difficulty)
		if err != nil {
			return setup, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		setup = domain.Setup{
			JobDescription: record.JobDescription,
			QuestionCount:  record.QuestionCount,
			Difficulty:     difficulty,
		}
	case req.Setup != nil:
		setup = *req.Setup
		if setup.Difficulty != "" {
			difficulty, err := domain.ParseDifficulty(string(setup.Difficulty))
			if err != nil {
				return setup, echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			setup.Difficulty = difficulty
		}
	default:
		return setup, echo.NewHTTPError(http.StatusBadRequest, "setupId or setup is required")
	}

	if req.CandidateName != "" {
		setup.CandidateName = req.CandidateName
	}
	if req.InitialEmotion != "" {
		setup.InitialEmotion = req.InitialEmotion
	}
	if err := s.deps.Interview.ApplyDefaults(&setup); err != nil {
		return setup, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return setup, nil
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.facade.Status())
}

func (s *Server) cancelSession(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	if err := sess.facade.Cancel(); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	sess.hub.publish("cancelled", nil)
	sess.hub.finish()
	return c.NoContent(http.StatusNoContent)
}

type answerRequest struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (s *Server) submitAnswer(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	switch err := sess.facade.SubmitAnswer(req.Index, req.Text); {
	case errors.Is(err, interview.ErrEmptyAnswer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, interview.ErrStaleAnswer):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

type speechReport struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Final  bool   `json:"final"`
	Reason string `json:"reason"`
}

func (s *Server) speechEnded(c echo.Context) error {
	return s.report(c, func(b *speech.Bridge, r speechReport) bool {
		return b.UtteranceEnded(r.Index)
	})
}

func (s *Server) speechTranscript(c echo.Context) error {
	return s.report(c, func(b *speech.Bridge, r speechReport) bool {
		return b.Transcript(r.Index, r.Text, r.Final)
	})
}

func (s *Server) speechError(c echo.Context) error {
	return s.report(c, func(b *speech.Bridge, r speechReport) bool {
		return b.RecognitionFailed(r.Index, r.Reason)
	})
}

// report forwards a client speech report; stale reports are acknowledged but ignored.
func (s *Server) report(c echo.Context, deliver func(*speech.Bridge, speechReport) bool) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	var r speechReport
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return c.JSON(http.StatusOK, map[string]bool{"accepted": deliver(sess.bridge, r)})
}

func (s *Server) getActivity(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.deps.Tracker.Report(sess.id))
}

type trackRequest struct {
	Status    activity.Visibility `json:"status"`
	Timestamp int64               `json:"timestamp"`
}

func (s *Server) trackActivity(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	var req trackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	var at time.Time
	if req.Timestamp > 0 {
		at = time.UnixMilli(req.Timestamp)
	}
	ev, err := s.deps.Tracker.Track(sess.id, req.Status, at)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ev)
}

// streamEvents replays buffered events after ?after=<seq> and then streams live ones.
func (s *Server) streamEvents(c echo.Context) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	after, _ := strconv.Atoi(c.QueryParam("after"))
	defer sess.openStream(time.Now())()

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("interview: ws upgrade error: %v", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	replay, live, unsubscribe := sess.hub.subscribe(after)
	defer unsubscribe()

	for _, ev := range replay {
		if err := conn.WriteJSON(ev); err != nil {
			return nil
		}
	}

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return nil
		case ev, ok := <-live:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		}
	}
}
