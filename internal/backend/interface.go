package backend

import (
	"context"

	"google.golang.org/api/option"

	"homepay/internal/sheets"
	"homepay/internal/sheets/google"
	"homepay/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything opened for one backend. Store is set when
// the SQLite store is in use, as the document backend or for the journal,
// outbox and job runs. ClientOptions is set when Google credentials are
// configured.
type BackendResult struct {
	Type          BackendType
	Locator       sheets.Locator
	Uploader      sheets.Uploader
	Store         *storage.SQLiteRepository
	ClientOptions []option.ClientOption
	Cleanup       CleanupFunc

	config  Config
	creator creator
}

// creator makes a blank yearly document on local backends.
type creator func(ctx context.Context, name string) (sheets.Document, error)

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the locator and stores described by config.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Document opens this name instead of the current year's document.
	Document string
	// SeedFile fills a new memory document.
	SeedFile string

	// SQLite store, also used by the journal when Journal is set
	SQLiteDBPath string
	Journal      bool

	// Google Sheets specific
	SpreadsheetID string
	DriveFolderID string
	Auth          google.Auth

	// Workbook directory
	XLSXDir string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	XLSXBackend   BackendType = "xlsx"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, SQLiteBackend, XLSXBackend:
		return true
	default:
		return false
	}
}

// Local reports whether documents of this backend can be created on demand.
func (bt BackendType) Local() bool {
	return bt != SheetsBackend
}
