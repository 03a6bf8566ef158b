package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"homepay/internal/sheets"
)

type cellKey struct {
	sheet    sheets.SheetID
	row, col int
}

// Store is an in-memory household document. It implements sheets.Document,
// sheets.Formatter and sheets.Renamer.
type Store struct {
	mu          sync.Mutex
	id          string
	name        string
	cells       map[cellKey]string
	notes       map[cellKey]string
	backgrounds map[cellKey]string
	validations map[cellKey][]string
	titles      map[sheets.SheetID]string
	writes      int
}

// New returns an empty document named name. Sheet titles default to the
// year found in the name when there is one.
func New(name string) *Store {
	s := &Store{
		id:          "mem:" + name,
		name:        name,
		cells:       map[cellKey]string{},
		notes:       map[cellKey]string{},
		backgrounds: map[cellKey]string{},
		validations: map[cellKey][]string{},
		titles:      map[sheets.SheetID]string{},
	}
	if year, err := sheets.DocumentYear(name); err == nil {
		for id := sheets.Dashboard; id <= sheets.Summary; id++ {
			s.titles[id] = sheets.SheetTitle(id, year)
		}
	}
	return s
}

// NewFromFile seeds a document from a text file of "sheet,row,col,value"
// lines. Blank lines and lines starting with # are ignored.
func NewFromFile(name, path string) (*Store, error) {
	s := New(name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ",", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("seed %s:%d: want sheet,row,col,value", path, line)
		}
		var sheet, row, col int
		if _, err := fmt.Sscan(parts[0], &sheet); err != nil {
			return nil, fmt.Errorf("seed %s:%d: sheet: %w", path, line, err)
		}
		if _, err := fmt.Sscan(parts[1], &row); err != nil {
			return nil, fmt.Errorf("seed %s:%d: row: %w", path, line, err)
		}
		if _, err := fmt.Sscan(parts[2], &col); err != nil {
			return nil, fmt.Errorf("seed %s:%d: col: %w", path, line, err)
		}
		s.cells[cellKey{sheets.SheetID(sheet), row, col}] = parts[3]
	}
	return s, sc.Err()
}

func (s *Store) ID() string   { return s.id }
func (s *Store) Name() string { return s.name }
func (s *Store) URL() string  { return "memory://" + s.name }

func (s *Store) Get(_ context.Context, sheet sheets.SheetID, row, col int) (string, error) {
	if err := sheets.CheckBounds(row, col, 1, 1); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells[cellKey{sheet, row, col}], nil
}

func (s *Store) Set(_ context.Context, sheet sheets.SheetID, row, col int, value string) error {
	if err := sheets.CheckBounds(row, col, 1, 1); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(cellKey{sheet, row, col}, value)
	return nil
}

func (s *Store) GetRange(_ context.Context, sheet sheets.SheetID, row, col, height, width int) ([][]string, error) {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := sheets.Blank(height, width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			out[r][c] = s.cells[cellKey{sheet, row + r, col + c}]
		}
	}
	return out, nil
}

func (s *Store) SetRange(_ context.Context, sheet sheets.SheetID, row, col int, values [][]string) error {
	if err := sheets.CheckBounds(row, col, len(values), 0); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for r, line := range values {
		for c, v := range line {
			s.put(cellKey{sheet, row + r, col + c}, v)
		}
	}
	return nil
}

func (s *Store) Clear(_ context.Context, sheet sheets.SheetID, row, col, height, width int) error {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			s.put(cellKey{sheet, row + r, col + c}, "")
		}
	}
	return nil
}

func (s *Store) SetNote(_ context.Context, sheet sheets.SheetID, row, col int, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[cellKey{sheet, row, col}] = note
	return nil
}

// Note returns the note attached to a cell.
func (s *Store) Note(sheet sheets.SheetID, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[cellKey{sheet, row, col}]
}

func (s *Store) SetBackground(_ context.Context, sheet sheets.SheetID, row, col, height, width int, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			s.backgrounds[cellKey{sheet, row + r, col + c}] = color
		}
	}
	return nil
}

// Background returns the background color of a cell.
func (s *Store) Background(sheet sheets.SheetID, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backgrounds[cellKey{sheet, row, col}]
}

func (s *Store) SetValidationList(_ context.Context, sheet sheets.SheetID, row, col, height, width int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]string(nil), values...)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			s.validations[cellKey{sheet, row + r, col + c}] = list
		}
	}
	return nil
}

// ValidationList returns the allowed values attached to a cell.
func (s *Store) ValidationList(sheet sheets.SheetID, row, col int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.validations[cellKey{sheet, row, col}]...)
}

func (s *Store) SheetTitle(_ context.Context, sheet sheets.SheetID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titles[sheet], nil
}

func (s *Store) RenameSheet(_ context.Context, sheet sheets.SheetID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[sheet] = title
	return nil
}

// Writes counts cell mutations since creation. Tests use it to assert that
// an operation wrote nothing.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Snapshot returns every non-empty cell of sheet keyed by A1 notation.
func (s *Store) Snapshot(sheet sheets.SheetID) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.cells {
		if k.sheet == sheet && v != "" {
			out[sheets.A1(k.row, k.col)] = v
		}
	}
	return out
}

func (s *Store) put(k cellKey, v string) {
	s.writes++
	if v == "" {
		delete(s.cells, k)
		return
	}
	s.cells[k] = v
}

func (s *Store) clone(name string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := New(name)
	for k, v := range s.cells {
		c.cells[k] = v
	}
	for k, v := range s.notes {
		c.notes[k] = v
	}
	for k, v := range s.backgrounds {
		c.backgrounds[k] = v
	}
	for k, v := range s.validations {
		c.validations[k] = append([]string(nil), v...)
	}
	for k, v := range s.titles {
		c.titles[k] = v
	}
	return c
}

// Locator keeps documents by name.
type Locator struct {
	mu   sync.Mutex
	docs map[string]*Store
}

// NewLocator registers docs under their names.
func NewLocator(docs ...*Store) *Locator {
	l := &Locator{docs: map[string]*Store{}}
	for _, d := range docs {
		l.docs[d.name] = d
	}
	return l
}

// Add registers a document, replacing any with the same name.
func (l *Locator) Add(d *Store) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs[d.name] = d
}

func (l *Locator) Find(_ context.Context, name string) (sheets.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, name)
	}
	return d, nil
}

func (l *Locator) List(_ context.Context, prefix string) ([]sheets.DocumentInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sheets.DocumentInfo
	for name, d := range l.docs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, sheets.DocumentInfo{ID: d.id, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Locator) Open(_ context.Context, id string) (sheets.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.docs {
		if d.id == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, id)
}

func (l *Locator) Copy(_ context.Context, src sheets.Document, name string) (sheets.Document, error) {
	ms, ok := src.(*Store)
	if !ok {
		return nil, fmt.Errorf("memory locator cannot copy %T", src)
	}
	c := ms.clone(name)
	l.Add(c)
	return c, nil
}

var (
	_ sheets.Document  = (*Store)(nil)
	_ sheets.Formatter = (*Store)(nil)
	_ sheets.Renamer   = (*Store)(nil)
	_ sheets.Locator   = (*Locator)(nil)
)
