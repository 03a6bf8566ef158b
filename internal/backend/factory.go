package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"homepay/internal/cache"
	"homepay/internal/schema"
	"homepay/internal/sheets"
	"homepay/internal/sheets/google"
	"homepay/internal/sheets/memory"
	"homepay/internal/sheets/xlsx"
	"homepay/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{Type: config.Type, config: config}
	var cleanups []CleanupFunc
	res.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*BackendResult, error) {
		if cerr := res.Cleanup(); cerr != nil {
			f.logger.Warn("Cleanup after failed backend creation", "error", cerr)
		}
		return nil, err
	}

	if config.Type == SQLiteBackend || config.Journal {
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize SQLite repository: %w", err))
		}
		res.Store = repo
		cleanups = append(cleanups, repo.Close)
	}

	if config.Auth.Configured() {
		opts, err := google.ClientOptions(ctx, config.Auth)
		if err != nil {
			return fail(fmt.Errorf("failed to build Google credentials: %w", err))
		}
		res.ClientOptions = opts
	}

	var err error
	switch config.Type {
	case MemoryBackend:
		err = f.createMemoryBackend(res)
	case SheetsBackend:
		var stop CleanupFunc
		stop, err = f.createSheetsBackend(ctx, res)
		if stop != nil {
			cleanups = append(cleanups, stop)
		}
	case SQLiteBackend:
		err = f.createSQLiteBackend(res)
	case XLSXBackend:
		var closeDir CleanupFunc
		closeDir, err = f.createXLSXBackend(res)
		if closeDir != nil {
			cleanups = append(cleanups, closeDir)
		}
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return fail(err)
	}
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(res *BackendResult) error {
	loc := memory.NewLocator()
	seed := res.config.SeedFile
	res.Locator = loc
	res.creator = func(_ context.Context, name string) (sheets.Document, error) {
		doc := memory.New(name)
		if seed != "" {
			var err error
			if doc, err = memory.NewFromFile(name, seed); err != nil {
				return nil, err
			}
		}
		loc.Add(doc)
		return doc, nil
	}

	f.logger.Info("Initialized memory backend", "seed_file", seed)
	return nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, res *BackendResult) (CleanupFunc, error) {
	loc, err := google.NewLocator(ctx, res.config.DriveFolderID, res.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	res.Locator = loc
	res.Uploader = loc

	caches := cache.NewManager()
	caches.Register("document_names", loc.Names())
	caches.StartCleanup(5 * time.Minute)

	f.logger.Info("Initialized Google Sheets backend",
		"folder", res.config.DriveFolderID,
		"spreadsheet_id", res.config.SpreadsheetID)
	return func() error { caches.Stop(); return nil }, nil
}

func (f *DefaultFactory) createSQLiteBackend(res *BackendResult) error {
	repo := res.Store
	res.Locator = repo
	res.creator = func(ctx context.Context, name string) (sheets.Document, error) {
		doc, err := repo.Create(ctx, name)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	f.logger.Info("Initialized SQLite backend", "db_path", res.config.SQLiteDBPath)
	return nil
}

func (f *DefaultFactory) createXLSXBackend(res *BackendResult) (CleanupFunc, error) {
	dir, err := xlsx.NewDir(res.config.XLSXDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook directory: %w", err)
	}
	res.Locator = dir
	res.Uploader = dir
	res.creator = func(ctx context.Context, name string) (sheets.Document, error) {
		w, err := dir.Create(ctx, name)
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	f.logger.Info("Initialized workbook backend", "dir", res.config.XLSXDir)
	return dir.Close, nil
}

// Current opens the document the application works on: the configured
// spreadsheet id or document name, else the yearly document of year. Local
// backends create a blank document when none exists yet.
func (r *BackendResult) Current(ctx context.Context, layout *schema.Layout, year int) (sheets.Document, error) {
	if id := r.config.SpreadsheetID; id != "" {
		doc, err := r.Locator.Open(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet %s: %w", id, err)
		}
		return doc, nil
	}
	name := r.config.Document
	if name == "" {
		name = layout.DocumentName(year)
	}
	doc, err := r.Locator.Find(ctx, name)
	if errors.Is(err, sheets.ErrNotFound) && r.creator != nil {
		slog.InfoContext(ctx, "Creating document", "document", name, "backend", r.Type)
		return r.creator(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", name, err)
	}
	return doc, nil
}

// Year opens the existing document of year.
func (r *BackendResult) Year(ctx context.Context, layout *schema.Layout, year int) (sheets.Document, error) {
	name := layout.DocumentName(year)
	doc, err := r.Locator.Find(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", name, err)
	}
	return doc, nil
}
