// Package storage keeps household documents, the operation journal and the
// notification outbox in a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"homepay/internal/sheets"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the grid batches.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// inTx runs fn inside a transaction.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Create registers an empty document. Sheet titles follow the year in the
// name when there is one.
func (r *SQLiteRepository) Create(ctx context.Context, name string) (*Document, error) {
	id := uuid.NewString()
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateDocument(ctx, id, name); err != nil {
			return fmt.Errorf("create document %s: %w", name, err)
		}
		year, err := sheets.DocumentYear(name)
		if err != nil {
			return nil
		}
		for s := sheets.Dashboard; s <= sheets.Summary; s++ {
			if err := q.UpsertTitle(ctx, id, int(s), sheets.SheetTitle(s, year)); err != nil {
				return fmt.Errorf("title sheet %d: %w", s, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Document created in SQLite", "id", id, "name", name)
	return r.document(id, name), nil
}

func (r *SQLiteRepository) document(id, name string) *Document {
	return &Document{repo: r, id: id, name: name}
}

// Find implements sheets.Locator
func (r *SQLiteRepository) Find(ctx context.Context, name string) (sheets.Document, error) {
	d, err := r.queries.GetDocumentByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", name, err)
	}
	return r.document(d.ID, d.Name), nil
}

// List implements sheets.Locator
func (r *SQLiteRepository) List(ctx context.Context, prefix string) ([]sheets.DocumentInfo, error) {
	rows, err := r.queries.ListDocuments(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]sheets.DocumentInfo, len(rows))
	for i, d := range rows {
		out[i] = sheets.DocumentInfo{ID: d.ID, Name: d.Name}
	}
	return out, nil
}

// Open implements sheets.Locator
func (r *SQLiteRepository) Open(ctx context.Context, id string) (sheets.Document, error) {
	d, err := r.queries.GetDocumentByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", id, err)
	}
	return r.document(d.ID, d.Name), nil
}

// Copy implements sheets.Locator. Only documents of this store can be copied.
func (r *SQLiteRepository) Copy(ctx context.Context, src sheets.Document, name string) (sheets.Document, error) {
	sd, ok := src.(*Document)
	if !ok || sd.repo != r {
		return nil, fmt.Errorf("sqlite store cannot copy %T", src)
	}
	id := uuid.NewString()
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateDocument(ctx, id, name); err != nil {
			return fmt.Errorf("create document %s: %w", name, err)
		}
		if err := q.CopyCells(ctx, id, sd.id); err != nil {
			return fmt.Errorf("copy cells: %w", err)
		}
		if err := q.CopyTitles(ctx, id, sd.id); err != nil {
			return fmt.Errorf("copy sheet titles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Document copied in SQLite", "source", sd.name, "name", name, "id", id)
	return r.document(id, name), nil
}

// JournalEntry records one applied mutation.
type JournalEntry struct {
	ID        string
	Document  string
	Operation string
	Month     int
	Detail    string
	Outcome   string
	CreatedAt time.Time
}

// Record appends e to the journal and returns its id.
func (r *SQLiteRepository) Record(ctx context.Context, e JournalEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Outcome == "" {
		e.Outcome = "ok"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := r.queries.InsertJournal(ctx, JournalRow{
		ID:        e.ID,
		Document:  e.Document,
		Operation: e.Operation,
		Month:     e.Month,
		Detail:    e.Detail,
		Outcome:   e.Outcome,
		CreatedAt: sql.NullTime{Time: e.CreatedAt, Valid: true},
	})
	if err != nil {
		return "", fmt.Errorf("record journal entry: %w", err)
	}
	slog.DebugContext(ctx, "Journal entry recorded", "id", e.ID, "operation", e.Operation, "month", e.Month)
	return e.ID, nil
}

// Recent returns the newest journal entries of document.
func (r *SQLiteRepository) Recent(ctx context.Context, document string, limit int) ([]JournalEntry, error) {
	rows, err := r.queries.ListJournal(ctx, document, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	out := make([]JournalEntry, len(rows))
	for i, e := range rows {
		out[i] = JournalEntry{
			ID:        e.ID,
			Document:  e.Document,
			Operation: e.Operation,
			Month:     e.Month,
			Detail:    e.Detail,
			Outcome:   e.Outcome,
			CreatedAt: e.CreatedAt.Time,
		}
	}
	return out, nil
}

// OutboxMessage is an email parked until it can be delivered.
type OutboxMessage struct {
	ID        string
	Kind      string
	To        []string
	Subject   string
	HTML      string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Enqueue parks m. Enqueuing an id twice keeps the first copy.
func (r *SQLiteRepository) Enqueue(ctx context.Context, m OutboxMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := r.queries.InsertOutbox(ctx, OutboxRow{
		ID:         m.ID,
		Kind:       m.Kind,
		Recipients: strings.Join(m.To, ","),
		Subject:    m.Subject,
		HTML:       m.HTML,
		CreatedAt:  sql.NullTime{Time: m.CreatedAt, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	slog.InfoContext(ctx, "Message parked in outbox", "id", m.ID, "kind", m.Kind)
	return nil
}

// Pending returns up to limit undelivered messages, oldest first.
func (r *SQLiteRepository) Pending(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := r.queries.PendingOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox: %w", err)
	}
	out := make([]OutboxMessage, len(rows))
	for i, m := range rows {
		out[i] = OutboxMessage{
			ID:        m.ID,
			Kind:      m.Kind,
			To:        splitRecipients(m.Recipients),
			Subject:   m.Subject,
			HTML:      m.HTML,
			Attempts:  m.Attempts,
			LastError: m.LastError,
			CreatedAt: m.CreatedAt.Time,
		}
	}
	return out, nil
}

// MarkSent marks a message as delivered.
func (r *SQLiteRepository) MarkSent(ctx context.Context, id string) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("mark outbox message sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. After maxAttempts the message stops
// being returned by Pending.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.queries.MarkOutboxFailed(ctx, id, msg, maxAttempts); err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	slog.WarnContext(ctx, "Outbox delivery failed", "id", id, "error", cause)
	return nil
}

// OutboxCount returns how many messages are in status.
func (r *SQLiteRepository) OutboxCount(ctx context.Context, status string) (int64, error) {
	n, err := r.queries.CountOutbox(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ sheets.Locator = (*SQLiteRepository)(nil)

// LastRun returns when job last ran; the zero time when it never did.
func (r *SQLiteRepository) LastRun(ctx context.Context, job string) (time.Time, error) {
	t, err := r.queries.GetJobRun(ctx, job)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last run of %s: %w", job, err)
	}
	return t, nil
}

// MarkRun stores a run of job.
func (r *SQLiteRepository) MarkRun(ctx context.Context, job string, at time.Time, outcome string) error {
	if err := r.queries.UpsertJobRun(ctx, job, at.UTC(), outcome); err != nil {
		return fmt.Errorf("mark run of %s: %w", job, err)
	}
	return nil
}
