package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"homepay/internal/sheets"
)

const ext = ".xlsx"

// Dir is a directory of yearly workbooks named "<document>.xlsx".
type Dir struct {
	root string

	mu   sync.Mutex
	open map[string]*Workbook
}

// NewDir uses root, creating it when missing.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workbook dir %s: %w", root, err)
	}
	return &Dir{root: root, open: map[string]*Workbook{}}, nil
}

func (d *Dir) path(name string) string { return filepath.Join(d.root, name+ext) }

// Create writes a new blank workbook called name.
func (d *Dir) Create(_ context.Context, name string) (*Workbook, error) {
	p := d.path(name)
	if _, err := os.Stat(p); err == nil {
		return nil, fmt.Errorf("workbook %s already exists", p)
	}
	w, err := create(p, name)
	if err != nil {
		return nil, err
	}
	d.remember(w)
	return w, nil
}

func (d *Dir) Find(ctx context.Context, name string) (sheets.Document, error) {
	p := d.path(name)
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, name)
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	return d.Open(ctx, p)
}

func (d *Dir) List(_ context.Context, prefix string) ([]sheets.DocumentInfo, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.root, err)
	}
	var out []sheets.DocumentInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if strings.HasPrefix(name, prefix) {
			out = append(out, sheets.DocumentInfo{ID: filepath.Join(d.root, e.Name()), Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open accepts a workbook path or a bare document name.
func (d *Dir) Open(_ context.Context, id string) (sheets.Document, error) {
	p := id
	if !strings.HasSuffix(p, ext) {
		p = d.path(id)
	}
	d.mu.Lock()
	if w, ok := d.open[p]; ok {
		d.mu.Unlock()
		return w, nil
	}
	d.mu.Unlock()
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, id)
	}
	w, err := open(p, strings.TrimSuffix(filepath.Base(p), ext))
	if err != nil {
		return nil, err
	}
	return d.remember(w), nil
}

func (d *Dir) Copy(ctx context.Context, src sheets.Document, name string) (sheets.Document, error) {
	w, ok := src.(*Workbook)
	if !ok {
		return nil, fmt.Errorf("copy %s: not a workbook", src.Name())
	}
	p := d.path(name)
	if _, err := os.Stat(p); err == nil {
		return nil, fmt.Errorf("workbook %s already exists", p)
	}
	w.mu.Lock()
	buf, err := w.f.WriteToBuffer()
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", w.name, err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", p, err)
	}
	return d.Open(ctx, p)
}

// Upload stores a generated file next to the workbooks and returns its
// file URL.
func (d *Dir) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	p := filepath.Join(d.root, filepath.Base(name))
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return "file://" + p, nil
}

// Close releases every open workbook.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for p, w := range d.open {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.open, p)
	}
	return errors.Join(errs...)
}

func (d *Dir) remember(w *Workbook) *Workbook {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.open[w.path]; ok {
		_ = w.Close()
		return prev
	}
	d.open[w.path] = w
	return w
}

var (
	_ sheets.Locator  = (*Dir)(nil)
	_ sheets.Uploader = (*Dir)(nil)
)
