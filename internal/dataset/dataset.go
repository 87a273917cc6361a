package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no Reader accepts.
var ErrUnsupportedFormat = errors.New("unsupported data format")

// errStop ends a scan early once enough rows were collected.
var errStop = errors.New("stop scan")

// ReadError reports a dataset file that exists but could not be read or parsed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("Failed to read data from %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Options selects what a Reader returns.
type Options struct {
	// Limit caps the number of data rows (header excluded); <= 0 reads everything.
	Limit int
	// Sheet names an XLSX worksheet; empty means the first sheet.
	Sheet string
}

// Reader streams records from a tabular file. The first record passed to fn is the header.
// Returning a non-nil error from fn stops the scan and is returned unchanged.
type Reader interface {
	CanRead(filename string) bool
	Scan(path string, opt Options, fn func(record []string) error) error
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// Table is a rectangular sample of a dataset.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Formats lists the extensions understood by the registered readers.
func Formats() []string { return []string{".csv", ".tsv", ".xlsx"} }

func lookup(path string) (Reader, error) {
	for _, r := range registry {
		if r.CanRead(path) {
			return r, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = "(none)"
	}
	return nil, fmt.Errorf("%w: %s has extension %s (supported: %s)", ErrUnsupportedFormat, filepath.Base(path), ext, strings.Join(Formats(), ", "))
}

// Open reads the header and up to limit rows of the dataset at path.
func Open(path string, limit int) (*Table, error) {
	return OpenWith(path, Options{Limit: limit})
}

// OpenWith is Open with explicit reader options.
func OpenWith(path string, opt Options) (*Table, error) {
	r, err := lookup(path)
	if err != nil {
		return nil, err
	}
	t := &Table{Name: filepath.Base(path)}
	header := true
	err = r.Scan(path, opt, func(rec []string) error {
		if header {
			t.Columns = cloneRecord(rec)
			header = false
			return nil
		}
		if opt.Limit > 0 && len(t.Rows) >= opt.Limit {
			return errStop
		}
		t.Rows = append(t.Rows, normalizeWidth(rec, len(t.Columns)))
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, wrapRead(path, err)
	}
	if header {
		return nil, &ReadError{Path: path, Err: errors.New("file has no header row")}
	}
	return t, nil
}

// Snapshot writes the full dataset at src to dst as comma-separated CSV.
// XLSX input is converted; CSV/TSV input is re-encoded with a comma delimiter.
func Snapshot(src, dst string, opt Options) (int, error) {
	r, err := lookup(src)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	w := csv.NewWriter(f)
	rows := -1
	width := 0
	scanErr := r.Scan(src, Options{Sheet: opt.Sheet}, func(rec []string) error {
		if rows < 0 {
			width = len(rec)
		} else {
			rec = normalizeWidth(rec, width)
		}
		rows++
		return w.Write(rec)
	})
	w.Flush()
	closeErr := f.Close()
	if scanErr != nil {
		_ = os.Remove(dst)
		return 0, wrapRead(src, scanErr)
	}
	if rows < 0 {
		_ = os.Remove(dst)
		return 0, &ReadError{Path: src, Err: errors.New("file has no header row")}
	}
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close snapshot: %w", closeErr)
	}
	return rows, nil
}

func wrapRead(path string, err error) error {
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	return &ReadError{Path: path, Err: err}
}

func cloneRecord(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// normalizeWidth pads or cuts rec to width and returns a copy safe to retain.
func normalizeWidth(rec []string, width int) []string {
	out := make([]string, width)
	copy(out, rec)
	return out
}
