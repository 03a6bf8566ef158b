package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"homepay/internal/cache"
	"homepay/internal/sheets"
)

const spreadsheetMime = "application/vnd.google-apps.spreadsheet"

// Locator finds yearly spreadsheets by name in Drive. Name lookups are
// cached; copies and uploads land in folder when one is set.
type Locator struct {
	drive  *drive.Service
	sheets *gsheet.Service
	folder string
	names  *cache.LRUCache[sheets.DocumentInfo]
}

// NewLocator builds the Drive and Sheets services from opts.
func NewLocator(ctx context.Context, folder string, opts ...goption.ClientOption) (*Locator, error) {
	d, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	s, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Locator{
		drive:  d,
		sheets: s,
		folder: folder,
		names:  cache.NewLRUCache[sheets.DocumentInfo](64, 10*time.Minute),
	}, nil
}

// Names exposes the name cache so it can be swept by a cache.Manager.
func (l *Locator) Names() *cache.LRUCache[sheets.DocumentInfo] { return l.names }

var errNoMatch = errors.New("no match")

func (l *Locator) Find(ctx context.Context, name string) (sheets.Document, error) {
	info, err := l.names.GetOrLoad(ctx, name, func(ctx context.Context) (sheets.DocumentInfo, error) {
		files, err := l.query(ctx, fmt.Sprintf("name = '%s'", escapeQuery(name)))
		if err != nil {
			return sheets.DocumentInfo{}, err
		}
		for _, f := range files {
			if f.Name == name {
				return f, nil
			}
		}
		return sheets.DocumentInfo{}, errNoMatch
	})
	if errors.Is(err, errNoMatch) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return NewGrid(l.sheets, info.ID, info.Name), nil
}

func (l *Locator) List(ctx context.Context, prefix string) ([]sheets.DocumentInfo, error) {
	files, err := l.query(ctx, fmt.Sprintf("name contains '%s'", escapeQuery(strings.TrimSpace(prefix))))
	if err != nil {
		return nil, err
	}
	var out []sheets.DocumentInfo
	for _, f := range files {
		if strings.HasPrefix(f.Name, prefix) {
			out = append(out, f)
			l.names.Set(f.Name, f)
		}
	}
	return out, nil
}

func (l *Locator) query(ctx context.Context, cond string) ([]sheets.DocumentInfo, error) {
	q := fmt.Sprintf("%s and mimeType = '%s' and trashed = false", cond, spreadsheetMime)
	if l.folder != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(l.folder))
	}
	var out []sheets.DocumentInfo
	err := l.drive.Files.List().Q(q).
		Fields("nextPageToken, files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, sheets.DocumentInfo{ID: f.Id, Name: f.Name})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("search drive: %w", err)
	}
	return out, nil
}

func (l *Locator) Open(ctx context.Context, id string) (sheets.Document, error) {
	f, err := l.drive.Files.Get(id).Fields("id, name").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sheets.ErrNotFound, id, err)
	}
	return NewGrid(l.sheets, f.Id, f.Name), nil
}

func (l *Locator) Copy(ctx context.Context, src sheets.Document, name string) (sheets.Document, error) {
	meta := &drive.File{Name: name}
	if l.folder != "" {
		meta.Parents = []string{l.folder}
	}
	f, err := l.drive.Files.Copy(src.ID(), meta).Fields("id, name").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", src.Name(), name, err)
	}
	l.names.Set(f.Name, sheets.DocumentInfo{ID: f.Id, Name: f.Name})
	slog.InfoContext(ctx, "Spreadsheet copied", "source", src.Name(), "name", f.Name, "id", f.Id)
	return NewGrid(l.sheets, f.Id, f.Name), nil
}

// Upload implements sheets.Uploader.
func (l *Locator) Upload(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	meta := &drive.File{Name: name, MimeType: mimeType}
	if l.folder != "" {
		meta.Parents = []string{l.folder}
	}
	f, err := l.drive.Files.Create(meta).Media(r).Fields("id, webViewLink").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	slog.InfoContext(ctx, "File uploaded", "name", name, "id", f.Id)
	return f.WebViewLink, nil
}

// Spreadsheet opens a spreadsheet by id without going through Drive.
func (l *Locator) Spreadsheet(ctx context.Context, id string) (*Grid, error) {
	ss, err := l.sheets.Spreadsheets.Get(id).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", id, err)
	}
	return NewGrid(l.sheets, id, ss.Properties.Title), nil
}

var (
	_ sheets.Locator  = (*Locator)(nil)
	_ sheets.Uploader = (*Locator)(nil)
)
