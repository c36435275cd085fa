package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. Stored values are copied on the way in and
// out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]InterviewRecord
	setups  map[string]SetupRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]InterviewRecord),
		setups:  make(map[string]SetupRecord),
	}
}

func (s *MemoryStore) Save(_ context.Context, record *InterviewRecord) error {
	if err := validateKey(record.Key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Key]; exists {
		return ErrAlreadyExists
	}
	s.records[record.Key] = copyRecord(*record)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (*InterviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyRecord(record)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) CreateSetup(_ context.Context, setup *SetupRecord) error {
	if err := validateKey(setup.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.setups[setup.ID]; exists {
		return ErrAlreadyExists
	}
	s.setups[setup.ID] = *setup
	return nil
}

func (s *MemoryStore) GetSetup(_ context.Context, id string) (*SetupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setup, ok := s.setups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &setup, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]InterviewRecord)
	s.setups = make(map[string]SetupRecord)
	return nil
}

func copyRecord(r InterviewRecord) InterviewRecord {
	r.Questions = append([]string(nil), r.Questions...)
	r.Transcript = append([]QA(nil), r.Transcript...)
	responses := make(map[string]string, len(r.Responses))
	for k, v := range r.Responses {
		responses[k] = v
	}
	r.Responses = responses
	return r
}
