package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	interviewPrefix = "interview_"
	setupsDir       = "setups"
)

// FileStore writes one JSON file per record under a results directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "results"
	}
	return &FileStore{dir: dir}
}

// Save writes the record; an existing file for the key is never replaced.
func (s *FileStore) Save(_ context.Context, record *InterviewRecord) error {
	if err := validateKey(record.Key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", s.dir, err)
	}
	return writeNew(filepath.Join(s.dir, interviewPrefix+record.Key+".json"), record)
}

func (s *FileStore) Load(_ context.Context, key string) (*InterviewRecord, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var record InterviewRecord
	if err := readJSON(filepath.Join(s.dir, interviewPrefix+key+".json"), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns saved keys in lexical order.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", s.dir, err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, interviewPrefix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, interviewPrefix), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) CreateSetup(_ context.Context, setup *SetupRecord) error {
	if err := validateKey(setup.ID); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, setupsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return writeNew(filepath.Join(dir, setup.ID+".json"), setup)
}

func (s *FileStore) GetSetup(_ context.Context, id string) (*SetupRecord, error) {
	if err := validateKey(id); err != nil {
		return nil, err
	}
	var setup SetupRecord
	if err := readJSON(filepath.Join(s.dir, setupsDir, id+".json"), &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

func (s *FileStore) Close() error { return nil }

func writeNew(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
