// Package datalog writes per-tick records to numbered CSV files and manages
// the removable volume they live on.
package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// ErrNotOpen is returned by Write when no file is open.
var ErrNotOpen = errors.New("datalog: no log file open")

// Header is the first line of every log file.
const Header = "State, Time(ms), Current(mA), CurrentLP(mA), CurrentMAF(mA), RPM, Displacement(mm), Force(N)"

// maxFiles bounds the search for an unused file name.
const maxFiles = 10000

// Sink appends records to one CSV file at a time.
type Sink struct {
	dir  string
	f    io.WriteCloser
	w    *bufio.Writer
	path string
	rows int

	create func(path string) (io.WriteCloser, error)
}

// NewSink creates a Sink writing into dir.
func NewSink(dir string) *Sink {
	return &Sink{dir: dir, create: createExclusive}
}

func createExclusive(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// NextPath returns the first dataN.csv in dir that does not exist.
func NextPath(dir string) (string, error) {
	for n := 0; n < maxFiles; n++ {
		p := filepath.Join(dir, "data"+strconv.Itoa(n)+".csv")
		_, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("no free log file name in %s", dir)
}

// Open creates the next numbered file and writes the header.
// Any file still open is closed first.
func (s *Sink) Open() (string, error) {
	if s.f != nil {
		if err := s.Close(); err != nil {
			return "", err
		}
	}

	p, err := NextPath(s.dir)
	if err != nil {
		return "", err
	}
	f, err := s.create(p)
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}

	// The header is flushed so a full or read-only volume fails here.
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(Header + "\n"); err == nil {
		err = w.Flush()
	}
	if err != nil {
		return "", multierr.Append(fmt.Errorf("write header: %w", err), f.Close())
	}

	s.f = f
	s.w = w
	s.path = p
	s.rows = 0
	return p, nil
}

// Write appends one record.
func (s *Sink) Write(r logic.Record) error {
	if s.w == nil {
		return ErrNotOpen
	}
	if _, err := s.w.WriteString(FormatRecord(r) + "\n"); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	s.rows++
	return nil
}

// Close flushes and closes the open file. Closing with nothing open is a no-op.
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.w.Flush()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f, s.w, s.path = nil, nil, ""
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// Path returns the open file, or "" if none.
func (s *Sink) Path() string { return s.path }

// Rows returns the number of records written to the open file.
func (s *Sink) Rows() int { return s.rows }

// FormatRecord renders r as one CSV row in Header order.
func FormatRecord(r logic.Record) string {
	return fmt.Sprintf("%s, %d, %.2f, %.2f, %.2f, %.2f, %.3f, %.3f",
		r.State, r.TimeMs, r.CurrentMA, r.CurrentLP, r.CurrentMAF, r.RPM, r.DisplacementMM, r.ForceN)
}
