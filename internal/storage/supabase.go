package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds the PostgREST connection and table names.
type SupabaseConfig struct {
	URL         string
	APIKey      string
	Table       string
	SetupsTable string
}

// SupabaseStore writes records as rows; the tables need a unique constraint on key and id.
type SupabaseStore struct {
	client      *supabase.Client
	table       string
	setupsTable string
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", ErrInvalidConfig)
	}
	if cfg.Table == "" {
		cfg.Table = "interviews"
	}
	if cfg.SetupsTable == "" {
		cfg.SetupsTable = "setups"
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{
		client:      client,
		table:       cfg.Table,
		setupsTable: cfg.SetupsTable,
	}, nil
}

func (s *SupabaseStore) Save(_ context.Context, record *InterviewRecord) error {
	if err := validateKey(record.Key); err != nil {
		return err
	}
	_, _, err := s.client.From(s.table).Insert(record, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to insert interview: %w", err)
	}
	return nil
}

func (s *SupabaseStore) Load(_ context.Context, key string) (*InterviewRecord, error) {
	var records []InterviewRecord
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("key", key).
		ExecuteTo(&records)
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func (s *SupabaseStore) List(_ context.Context) ([]string, error) {
	var rows []struct {
		Key string `json:"key"`
	}
	_, err := s.client.From(s.table).
		Select("key", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SupabaseStore) CreateSetup(_ context.Context, setup *SetupRecord) error {
	if err := validateKey(setup.ID); err != nil {
		return err
	}
	_, _, err := s.client.From(s.setupsTable).Insert(setup, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to insert setup: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetSetup(_ context.Context, id string) (*SetupRecord, error) {
	var setups []SetupRecord
	_, err := s.client.From(s.setupsTable).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&setups)
	if err != nil {
		return nil, fmt.Errorf("failed to get setup: %w", err)
	}
	if len(setups) == 0 {
		return nil, ErrNotFound
	}
	return &setups[0], nil
}

func (s *SupabaseStore) Close() error { return nil }
