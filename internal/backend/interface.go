package backend

import (
	"context"

	"finboard/internal/auth"
	"finboard/internal/dataservice"
	"finboard/internal/store/memory"
	"finboard/internal/store/relational"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the data service and the stores behind it.
type BackendResult struct {
	Data *dataservice.Service
	// Primary is nil for the memory backend or when the database could not
	// be opened.
	Primary  *relational.Store
	Fallback *memory.Store
	Owners   auth.OwnerResolver
	Cleanup  CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// DSN is the SQLite file path or the Postgres URL.
	DSN string

	// Owner used when the request context carries none.
	OwnerID    string
	OwnerEmail string
}

// BackendType represents the type of backend
type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Dialect maps relational backend types to their SQL dialect.
func (bt BackendType) Dialect() (relational.Dialect, bool) {
	switch bt {
	case PostgresBackend:
		return relational.Postgres, true
	case SQLiteBackend:
		return relational.SQLite, true
	default:
		return "", false
	}
}
