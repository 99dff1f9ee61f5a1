package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sw33tLie/spotscope/internal/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one CSV record keyed by header name.
type Row map[string]string

// Get returns the trimmed value of column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a whole CSV file with its header order preserved.
type Table struct {
	Header []string
	Rows   []Row
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	for _, h := range t.Header {
		if h == column {
			return true
		}
	}
	return false
}

// Read parses a CSV stream with a header row. A leading UTF-8 BOM is ignored.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", len(t.Rows)+2, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Writer streams rows in a fixed header order. Missing columns are written empty.
type Writer struct {
	header []string
	cw     *csv.Writer
	closer io.Closer
}

// NewWriter writes the header immediately.
func NewWriter(w io.Writer, header []string) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	return &Writer{header: header, cw: cw}, nil
}

// Create makes the parent directory of path and opens a Writer on it.
func Create(path string, header []string) (*Writer, error) {
	if _, err := utils.EnsureParent(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Header returns the column order of the writer.
func (w *Writer) Header() []string {
	return w.header
}

// Write emits one row and flushes it so partial output survives an interrupted run.
func (w *Writer) Write(row Row) error {
	rec := make([]string, len(w.header))
	for i, col := range w.header {
		rec[i] = row[col]
	}
	if err := w.cw.Write(rec); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

// Close flushes pending output and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.cw.Flush()
	err := w.cw.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// WriteFile writes a whole table to path.
func WriteFile(path string, t *Table) error {
	w, err := Create(path, t.Header)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// UnionHeader appends the columns of extra that base does not already have.
func UnionHeader(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, cols := range [][]string{base, extra} {
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
