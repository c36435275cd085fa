package recorder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mock-interview/internal/domain"
	"mock-interview/internal/storage"
)

type failingStore struct {
	calls int
}

func (f *failingStore) Save(context.Context, *storage.InterviewRecord) error {
	f.calls++
	return errors.New("store unreachable")
}

func (f *failingStore) Load(context.Context, string) (*storage.InterviewRecord, error) {
	return nil, storage.ErrNotFound
}

func (f *failingStore) List(context.Context) ([]string, error) { return nil, nil }

func completedSession(t *testing.T) *domain.Session {
	t.Helper()
	s := domain.NewSession(domain.Setup{
		CandidateName:  "Grace  Brewster Hopper",
		Role:           "Backend Developer",
		JobDescription: strings.Repeat("é", 600),
		Difficulty:     domain.DifficultyBasic,
		QuestionCount:  3,
		InitialEmotion: "happy",
	})
	if err := s.SetQuestions([]string{"Q1", "Q2", "Q3"}, true); err != nil {
		t.Fatalf("set questions: %v", err)
	}
	at := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.Record(i, "answer", domain.AnswerSourceManual, at); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		s.Advance()
	}
	return s
}

func TestKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 12, 0, 0, 123000000, time.FixedZone("X", 3600))
	tests := map[string]string{
		" Ada  Lovelace ":  "Ada_Lovelace_2026-10-15T11-00-00.123Z",
		"Jean/Paul Sartre": "Jean_Paul_Sartre_2026-10-15T11-00-00.123Z",
		`C:\Users\..`:      "C_Users_2026-10-15T11-00-00.123Z",
		"José Núñez":       "José_Núñez_2026-10-15T11-00-00.123Z",
		"../":              "candidate_2026-10-15T11-00-00.123Z",
	}
	for name, want := range tests {
		if got := Key(name, at); got != want {
			t.Errorf("Key(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestPersistUnsafeCandidateName(t *testing.T) {
	t.Parallel()

	store := storage.NewFileStore(t.TempDir())
	rec := New(store)
	session := completedSession(t)
	session.Setup.CandidateName = "Jean/Paul Sartre"

	key, err := rec.Persist(context.Background(), session)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if strings.ContainsAny(key, `/\:`) {
		t.Fatalf("key %q is not path safe", key)
	}
	saved, err := store.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("load %q: %v", key, err)
	}
	if saved.Name != "Jean/Paul Sartre" {
		t.Fatalf("record must keep the original name, got %q", saved.Name)
	}
}

func TestPersistWritesOnce(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	rec := New(store)
	rec.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	session := completedSession(t)

	key, err := rec.Persist(context.Background(), session)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if key != "Grace_Brewster_Hopper_2026-10-15T09-00-00Z" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := rec.Persist(context.Background(), session); !errors.Is(err, ErrAlreadyPersisted) {
		t.Fatalf("expected ErrAlreadyPersisted, got %v", err)
	}

	keys, _ := store.List(context.Background())
	if len(keys) != 1 {
		t.Fatalf("expected one record, got %v", keys)
	}
	saved, err := store.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len([]rune(saved.JobDescription)) != MaxJobDescriptionRunes {
		t.Fatalf("job description not truncated: %d runes", len([]rune(saved.JobDescription)))
	}
	if saved.Responses["Q2"] != "answer" || len(saved.Transcript) != 3 || !saved.Fallback {
		t.Fatalf("unexpected record %+v", saved)
	}
	if saved.QuestionCount != 3 || saved.ActualQuestionCount != 3 || saved.Difficulty != "basic" || saved.InitialEmotion != "happy" {
		t.Fatalf("unexpected record metadata %+v", saved)
	}
}

func TestPersistFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	store := &failingStore{}
	rec := New(store)
	session := completedSession(t)

	_, err := rec.Persist(context.Background(), session)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || perr.Key == "" {
		t.Fatalf("expected PersistenceError with key, got %v", err)
	}
	if _, err := rec.Persist(context.Background(), session); !errors.Is(err, ErrAlreadyPersisted) {
		t.Fatalf("expected guard to block a retry, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected a single write attempt, got %d", store.calls)
	}
}
