package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DocumentRow struct {
	ID        string
	Name      string
	CreatedAt sql.NullTime
}

const createDocument = `INSERT INTO documents (id, name, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateDocument(ctx context.Context, id, name string) error {
	_, err := q.db.ExecContext(ctx, createDocument, id, name, time.Now().UTC())
	return err
}

const getDocumentByName = `SELECT id, name, created_at FROM documents WHERE name = ?`

func (q *Queries) GetDocumentByName(ctx context.Context, name string) (DocumentRow, error) {
	var d DocumentRow
	err := q.db.QueryRowContext(ctx, getDocumentByName, name).Scan(&d.ID, &d.Name, &d.CreatedAt)
	return d, err
}

const getDocumentByID = `SELECT id, name, created_at FROM documents WHERE id = ?`

func (q *Queries) GetDocumentByID(ctx context.Context, id string) (DocumentRow, error) {
	var d DocumentRow
	err := q.db.QueryRowContext(ctx, getDocumentByID, id).Scan(&d.ID, &d.Name, &d.CreatedAt)
	return d, err
}

const listDocuments = `SELECT id, name, created_at FROM documents WHERE substr(name, 1, length(?)) = ? ORDER BY name`

func (q *Queries) ListDocuments(ctx context.Context, prefix string) ([]DocumentRow, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const upsertValue = `INSERT INTO cells (document_id, sheet, row_num, col_num, value) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (document_id, sheet, row_num, col_num) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertValue(ctx context.Context, doc string, sheet, row, col int, value string) error {
	_, err := q.db.ExecContext(ctx, upsertValue, doc, sheet, row, col, value)
	return err
}

const upsertNote = `INSERT INTO cells (document_id, sheet, row_num, col_num, note) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (document_id, sheet, row_num, col_num) DO UPDATE SET note = excluded.note`

func (q *Queries) UpsertNote(ctx context.Context, doc string, sheet, row, col int, note string) error {
	_, err := q.db.ExecContext(ctx, upsertNote, doc, sheet, row, col, note)
	return err
}

const upsertBackground = `INSERT INTO cells (document_id, sheet, row_num, col_num, background) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (document_id, sheet, row_num, col_num) DO UPDATE SET background = excluded.background`

func (q *Queries) UpsertBackground(ctx context.Context, doc string, sheet, row, col int, color string) error {
	_, err := q.db.ExecContext(ctx, upsertBackground, doc, sheet, row, col, color)
	return err
}

const upsertValidation = `INSERT INTO cells (document_id, sheet, row_num, col_num, validation) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (document_id, sheet, row_num, col_num) DO UPDATE SET validation = excluded.validation`

func (q *Queries) UpsertValidation(ctx context.Context, doc string, sheet, row, col int, list string) error {
	_, err := q.db.ExecContext(ctx, upsertValidation, doc, sheet, row, col, list)
	return err
}

type CellRow struct {
	Row        int
	Col        int
	Value      string
	Note       string
	Background string
	Validation string
}

const getCellsInRange = `SELECT row_num, col_num, value, note, background, validation FROM cells
WHERE document_id = ? AND sheet = ? AND row_num BETWEEN ? AND ? AND col_num BETWEEN ? AND ?`

func (q *Queries) GetCellsInRange(ctx context.Context, doc string, sheet, row, col, lastRow, lastCol int) ([]CellRow, error) {
	rows, err := q.db.QueryContext(ctx, getCellsInRange, doc, sheet, row, lastRow, col, lastCol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CellRow
	for rows.Next() {
		var c CellRow
		if err := rows.Scan(&c.Row, &c.Col, &c.Value, &c.Note, &c.Background, &c.Validation); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const clearValues = `UPDATE cells SET value = ''
WHERE document_id = ? AND sheet = ? AND row_num BETWEEN ? AND ? AND col_num BETWEEN ? AND ?`

func (q *Queries) ClearValues(ctx context.Context, doc string, sheet, row, col, lastRow, lastCol int) error {
	_, err := q.db.ExecContext(ctx, clearValues, doc, sheet, row, lastRow, col, lastCol)
	return err
}

const copyCells = `INSERT INTO cells (document_id, sheet, row_num, col_num, value, note, background, validation)
SELECT ?, sheet, row_num, col_num, value, note, background, validation FROM cells WHERE document_id = ?`

func (q *Queries) CopyCells(ctx context.Context, dst, src string) error {
	_, err := q.db.ExecContext(ctx, copyCells, dst, src)
	return err
}

const copyTitles = `INSERT INTO sheet_titles (document_id, sheet, title)
SELECT ?, sheet, title FROM sheet_titles WHERE document_id = ?`

func (q *Queries) CopyTitles(ctx context.Context, dst, src string) error {
	_, err := q.db.ExecContext(ctx, copyTitles, dst, src)
	return err
}

const getTitle = `SELECT title FROM sheet_titles WHERE document_id = ? AND sheet = ?`

func (q *Queries) GetTitle(ctx context.Context, doc string, sheet int) (string, error) {
	var title string
	err := q.db.QueryRowContext(ctx, getTitle, doc, sheet).Scan(&title)
	return title, err
}

const upsertTitle = `INSERT INTO sheet_titles (document_id, sheet, title) VALUES (?, ?, ?)
ON CONFLICT (document_id, sheet) DO UPDATE SET title = excluded.title`

func (q *Queries) UpsertTitle(ctx context.Context, doc string, sheet int, title string) error {
	_, err := q.db.ExecContext(ctx, upsertTitle, doc, sheet, title)
	return err
}

type JournalRow struct {
	ID        string
	Document  string
	Operation string
	Month     int
	Detail    string
	Outcome   string
	CreatedAt sql.NullTime
}

const insertJournal = `INSERT INTO journal (id, document, operation, month, detail, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertJournal(ctx context.Context, e JournalRow) error {
	_, err := q.db.ExecContext(ctx, insertJournal, e.ID, e.Document, e.Operation, e.Month, e.Detail, e.Outcome, e.CreatedAt)
	return err
}

const listJournal = `SELECT id, document, operation, month, detail, outcome, created_at FROM journal
WHERE document = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`

func (q *Queries) ListJournal(ctx context.Context, document string, limit int) ([]JournalRow, error) {
	rows, err := q.db.QueryContext(ctx, listJournal, document, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JournalRow
	for rows.Next() {
		var e JournalRow
		if err := rows.Scan(&e.ID, &e.Document, &e.Operation, &e.Month, &e.Detail, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

type OutboxRow struct {
	ID         string
	Kind       string
	Recipients string
	Subject    string
	HTML       string
	Status     string
	Attempts   int
	LastError  string
	CreatedAt  sql.NullTime
}

const insertOutbox = `INSERT INTO outbox (id, kind, recipients, subject, html, created_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`

func (q *Queries) InsertOutbox(ctx context.Context, m OutboxRow) error {
	_, err := q.db.ExecContext(ctx, insertOutbox, m.ID, m.Kind, m.Recipients, m.Subject, m.HTML, m.CreatedAt)
	return err
}

const pendingOutbox = `SELECT id, kind, recipients, subject, html, status, attempts, last_error, created_at FROM outbox
WHERE status = 'pending' ORDER BY created_at, rowid LIMIT ?`

func (q *Queries) PendingOutbox(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := q.db.QueryContext(ctx, pendingOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OutboxRow
	for rows.Next() {
		var m OutboxRow
		if err := rows.Scan(&m.ID, &m.Kind, &m.Recipients, &m.Subject, &m.HTML, &m.Status, &m.Attempts, &m.LastError, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const markOutboxSent = `UPDATE outbox SET status = 'sent', sent_at = ?, attempts = attempts + 1 WHERE id = ?`

func (q *Queries) MarkOutboxSent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, time.Now().UTC(), id)
	return err
}

const markOutboxFailed = `UPDATE outbox
SET attempts = attempts + 1,
    last_error = ?,
    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END
WHERE id = ?`

func (q *Queries) MarkOutboxFailed(ctx context.Context, id, lastError string, maxAttempts int) error {
	_, err := q.db.ExecContext(ctx, markOutboxFailed, lastError, maxAttempts, id)
	return err
}

const countOutbox = `SELECT count(*) FROM outbox WHERE status = ?`

func (q *Queries) CountOutbox(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countOutbox, status).Scan(&n)
	return n, err
}

const getJobRun = `SELECT last_run FROM job_runs WHERE job = ?`

func (q *Queries) GetJobRun(ctx context.Context, job string) (time.Time, error) {
	var t time.Time
	err := q.db.QueryRowContext(ctx, getJobRun, job).Scan(&t)
	return t, err
}

const upsertJobRun = `INSERT INTO job_runs (job, last_run, outcome) VALUES (?, ?, ?)
ON CONFLICT (job) DO UPDATE SET last_run = excluded.last_run, outcome = excluded.outcome`

func (q *Queries) UpsertJobRun(ctx context.Context, job string, at time.Time, outcome string) error {
	_, err := q.db.ExecContext(ctx, upsertJobRun, job, at, outcome)
	return err
}
