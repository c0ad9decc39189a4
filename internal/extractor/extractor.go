// Package extractor reads address book exports and turns their rows into normalized contact records.
package extractor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
)

// ErrSourceRead is matched by every SourceReadError.
var ErrSourceRead = errors.New("source read error")

// SourceReadError reports an address book export that cannot be read: the file is missing or
// corrupt, or it has no usable header. Line is 0 when the error is not tied to a line.
type SourceReadError struct {
	Path string
	Line int
	Err  error
}

func (e *SourceReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

func (e *SourceReadError) Is(target error) bool { return target == ErrSourceRead }

// RawRow is one row of the export, keyed by the role of each configured column.
type RawRow struct {
	EmailPrimary   string `csv:"email_primary"`
	EmailSecondary string `csv:"email_secondary"`
	FirstName      string `csv:"first_name"`
	LastName       string `csv:"last_name"`
	Phone          string `csv:"phone"`
}

// Stats counts the rows an extractor has consumed so far.
type Stats struct {
	Rows    int
	Skipped int
}

// rowReader yields the cells of one row per call and io.EOF at the end. It is the reader
// interface csvutil decodes from. Line reports the line the last row read started on.
type rowReader interface {
	Read() ([]string, error)
	Line() int
}

// Extractor yields the contact records of a single export, once. It is not safe for concurrent use.
type Extractor struct {
	path   string
	closer io.Closer
	src    *paddedReader
	dec    *csvutil.Decoder
	stats  Stats
}

// Open opens the export at path. Files ending in .xlsx are read from their first worksheet,
// everything else is read as comma separated text. The header row is consumed immediately.
func Open(path string, columns config.SourceConfig) (*Extractor, error) {
	var (
		src    rowReader
		closer io.Closer
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		src, closer, err = openSpreadsheet(path)
	default:
		src, closer, err = openDelimited(path)
	}
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	return newExtractor(path, src, closer, columns)
}

func newExtractor(path string, src rowReader, closer io.Closer, columns config.SourceConfig) (*Extractor, error) {
	header, err := src.Read()
	if err != nil {
		closer.Close()
		if errors.Is(err, io.EOF) {
			return nil, &SourceReadError{Path: path, Err: errors.New("no header row")}
		}
		return nil, &SourceReadError{Path: path, Line: 1, Err: err}
	}

	canonical, err := canonicalHeader(header, columns)
	if err != nil {
		closer.Close()
		return nil, &SourceReadError{Path: path, Line: 1, Err: err}
	}

	padded := &paddedReader{r: src, width: len(canonical)}
	dec, err := csvutil.NewDecoder(padded, canonical...)
	if err != nil {
		closer.Close()
		return nil, &SourceReadError{Path: path, Line: 1, Err: err}
	}
	return &Extractor{path: path, closer: closer, src: padded, dec: dec}, nil
}

// Next returns the next contact record. Rows without a usable email address are skipped.
// It returns io.EOF once the export is exhausted.
func (e *Extractor) Next() (model.ContactRecord, error) {
	for {
		var row RawRow
		if err := e.dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return model.ContactRecord{}, io.EOF
			}
			return model.ContactRecord{}, &SourceReadError{Path: e.path, Line: e.errorLine(err), Err: err}
		}
		e.stats.Rows++

		record, ok := Normalize(row)
		if !ok {
			e.stats.Skipped++
			logger.Debug("row skipped, no usable email", "line", e.src.Line())
			continue
		}
		return record, nil
	}
}

// errorLine returns the line a decode error belongs to, or 0 when the reader failed without
// telling where.
func (e *Extractor) errorLine(err error) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.StartLine
	}
	if e.src.err != nil {
		return 0
	}
	return e.src.Line()
}

// Records returns the remaining records as a sequence. Iteration stops after the first error.
func (e *Extractor) Records() iter.Seq2[model.ContactRecord, error] {
	return func(yield func(model.ContactRecord, error) bool) {
		for {
			record, err := e.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

// Stats returns the number of data rows read and skipped so far.
func (e *Extractor) Stats() Stats {
	return e.stats
}

// Close releases the underlying file.
func (e *Extractor) Close() error {
	return e.closer.Close()
}

// ReadAll extracts every contact record of the export at path.
func ReadAll(path string, columns config.SourceConfig) ([]model.ContactRecord, Stats, error) {
	ex, err := Open(path, columns)
	if err != nil {
		return nil, Stats{}, err
	}
	defer ex.Close()

	var records []model.ContactRecord
	for record, err := range ex.Records() {
		if err != nil {
			return nil, ex.Stats(), err
		}
		records = append(records, record)
	}
	return records, ex.Stats(), nil
}

// canonicalHeader replaces the configured column names with the csv tags of RawRow. Columns
// that play no role get a unique placeholder name so the decoder ignores them.
func canonicalHeader(header []string, columns config.SourceConfig) ([]string, error) {
	roles := map[string]string{
		columns.EmailPrimaryColumn:   "email_primary",
		columns.EmailSecondaryColumn: "email_secondary",
		columns.FirstNameColumn:      "first_name",
		columns.LastNameColumn:       "last_name",
		columns.PhoneColumn:          "phone",
	}

	canonical := make([]string, len(header))
	taken := make(map[string]bool)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		role, ok := roles[name]
		if ok && !taken[role] {
			canonical[i] = role
			taken[role] = true
			continue
		}
		canonical[i] = fmt.Sprintf("_column_%d", i)
	}

	if !taken["email_primary"] && !taken["email_secondary"] {
		return nil, fmt.Errorf("no email column (%q or %q) in header %v",
			columns.EmailPrimaryColumn, columns.EmailSecondaryColumn, header)
	}
	return canonical, nil
}

// paddedReader makes every row exactly as wide as the header. Short rows are filled with empty
// cells and surplus cells are dropped.
type paddedReader struct {
	r     rowReader
	width int
	err   error // last read error
}

func (p *paddedReader) Read() ([]string, error) {
	row, err := p.r.Read()
	p.err = err
	if err != nil {
		return nil, err
	}
	if len(row) > p.width {
		return row[:p.width], nil
	}
	for len(row) < p.width {
		row = append(row, "")
	}
	return row, nil
}

func (p *paddedReader) Line() int { return p.r.Line() }
