package storage

import "context"

// RecordStore keeps completed interviews. Save never overwrites: writing an existing key
// returns ErrAlreadyExists.
type RecordStore interface {
	Save(ctx context.Context, record *InterviewRecord) error
	Load(ctx context.Context, key string) (*InterviewRecord, error)
	List(ctx context.Context) ([]string, error)
}

// SetupStore keeps interview setups.
type SetupStore interface {
	CreateSetup(ctx context.Context, setup *SetupRecord) error
	// GetSetup returns ErrNotFound for unknown ids.
	GetSetup(ctx context.Context, id string) (*SetupRecord, error)
}

// Store is implemented by every driver.
type Store interface {
	RecordStore
	SetupStore
	Close() error
}
