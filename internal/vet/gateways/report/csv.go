package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/haukened/linkvet/internal/vet/domain"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("report sink is closed")

// CSVWriter writes verdict rows as delimiter separated values. The file is
// truncated and the header written when the writer is opened; each row is
// flushed as soon as it is written.
type CSVWriter struct {
	mu     sync.Mutex
	file   afero.File
	w      *csv.Writer
	rows   int
	closed bool
}

// NewCSVWriter creates (or truncates) path on fs and writes headers.
func NewCSVWriter(fs afero.Fs, path string, delimiter rune, headers []string) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = delimiter
	s := &CSVWriter{file: f, w: w}
	if err := s.writeRow(headers); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return s, nil
}

// Write appends one record.
func (s *CSVWriter) Write(rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.writeRow(rec.Fields()); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	s.rows++
	return nil
}

// Rows returns the number of records written, header excluded.
func (s *CSVWriter) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Close flushes and closes the underlying file. It is safe to call twice.
func (s *CSVWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *CSVWriter) writeRow(fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}
