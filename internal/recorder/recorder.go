package recorder

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"mock-interview/internal/domain"
	"mock-interview/internal/storage"
)

// MaxJobDescriptionRunes bounds the job description kept in a record.
const MaxJobDescriptionRunes = 500

// ErrAlreadyPersisted is returned when a session has already been written once.
var ErrAlreadyPersisted = errors.New("session already persisted")

var unsafeRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Recorder writes completed sessions to a record store, at most once per session.
type Recorder struct {
	store storage.RecordStore
	now   func() time.Time
}

func New(store storage.RecordStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Persist builds the record and writes it. The session's one-shot guard is consumed
// before the write, so a failed write is never retried.
func (r *Recorder) Persist(ctx context.Context, session *domain.Session) (string, error) {
	if !session.MarkPersisted() {
		return "", ErrAlreadyPersisted
	}

	at := r.now().UTC()
	record := BuildRecord(session, at)

	if err := r.store.Save(ctx, record); err != nil {
		log.Printf("recorder: failed to persist %s: %v", record.Key, err)
		return record.Key, &domain.PersistenceError{Key: record.Key, Cause: err}
	}

	log.Printf("recorder: persisted %s (%d answers)", record.Key, len(session.Answers))
	return record.Key, nil
}

// Key returns the composite document key for a candidate at a moment. Anything but letters
// and digits becomes "_", so the key is a valid file name and passes every store.
func Key(candidateName string, at time.Time) string {
	name := strings.Trim(unsafeRun.ReplaceAllString(candidateName, "_"), "_")
	if name == "" {
		name = "candidate"
	}
	stamp := strings.ReplaceAll(at.UTC().Format(time.RFC3339Nano), ":", "-")
	return name + "_" + stamp
}

// BuildRecord converts a session into its durable form.
func BuildRecord(session *domain.Session, at time.Time) *storage.InterviewRecord {
	transcript := make([]storage.QA, 0, len(session.Answers))
	for _, a := range session.Answers {
		if a.Index < 0 || a.Index >= len(session.Questions) {
			continue
		}
		transcript = append(transcript, storage.QA{
			Question: session.Questions[a.Index],
			Answer:   a.Text,
			Source:   string(a.Source),
		})
	}

	return &storage.InterviewRecord{
		Key:                 Key(session.Setup.CandidateName, at),
		SessionID:           session.ID,
		Name:                session.Setup.CandidateName,
		Role:                session.Setup.Role,
		Questions:           append([]string(nil), session.Questions...),
		Responses:           session.Responses(),
		Transcript:          transcript,
		InitialEmotion:      session.Setup.InitialEmotion,
		QuestionCount:       session.Setup.QuestionCount,
		ActualQuestionCount: len(session.Questions),
		Difficulty:          string(session.Setup.Difficulty),
		JobDescription:      truncateRunes(session.Setup.JobDescription, MaxJobDescriptionRunes),
		Fallback:            session.Fallback,
		Timestamp:           at.UTC(),
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
