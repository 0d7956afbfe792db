package attendance

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVStore appends records to a UTF-8 (with BOM) CSV file.
type CSVStore struct {
	mu       sync.Mutex
	path     string
	withKind bool
}

// NewCSVStore creates a store for path. withKind adds the kind column when
// the file is created; an existing file keeps its own layout.
func NewCSVStore(path string, withKind bool) *CSVStore {
	return &CSVStore{path: path, withKind: withKind}
}

// Path returns the file location.
func (s *CSVStore) Path() string {
	return s.path
}

// Append implements Store.
func (s *CSVStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	withKind, err := s.ensureFile()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open attendance file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(r.row(withKind)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write attendance row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write attendance row: %w", err)
	}
	return f.Close()
}

// ensureFile creates the file with BOM and header when missing or empty, and
// reports whether the file carries the kind column. Must be called with mu
// held.
func (s *CSVStore) ensureFile() (bool, error) {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		f, err := os.Open(s.path)
		if err != nil {
			return false, fmt.Errorf("failed to open attendance file: %w", err)
		}
		defer f.Close()
		header, err := csv.NewReader(bomReader(f)).Read()
		if err != nil {
			return false, fmt.Errorf("failed to read attendance header: %w", err)
		}
		return len(header) > len(Header), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat attendance file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return false, err
	}
	out, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to create attendance file: %w", err)
	}

	w := transform.NewWriter(out, unicode.UTF8BOM.NewEncoder())
	if err := WriteCSV(w, nil, s.withKind); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to write attendance header: %w", err)
	}
	if err := w.Close(); err != nil {
		out.Close()
		return false, err
	}
	return s.withKind, out.Close()
}

// Records implements Store. A missing file yields no records.
func (s *CSVStore) Records(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance file: %w", err)
	}
	defer f.Close()

	return ParseCSV(f)
}

// ParseCSV reads an attendance file or dump. The header row is skipped and
// short rows are ignored.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(bomReader(r))
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse attendance file: %w", err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if rec, ok := fromRow(row); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Dump implements Store. The file is copied verbatim minus the BOM.
func (s *CSVStore) Dump(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open attendance file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(w, bomReader(f))
	return err
}

// Close implements Store.
func (s *CSVStore) Close() error {
	return nil
}

func bomReader(r io.Reader) io.Reader {
	return transform.NewReader(bufio.NewReader(r), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
