package extractor

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// openDelimited opens a comma separated export. Quoting is handled leniently and rows may have
// differing numbers of fields, as address book exports often do.
func openDelimited(path string) (rowReader, io.Closer, error) {
	f, err := os.Open(path) // nosemgrep
	if err != nil {
		return nil, nil, err
	}
	reader := csv.NewReader(stripBOM(f))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return &delimitedReader{r: reader}, f, nil
}

// delimitedReader remembers where the last record started. Quoted fields may span several lines,
// so the record count alone does not tell.
type delimitedReader struct {
	r    *csv.Reader
	line int
}

func (d *delimitedReader) Read() ([]string, error) {
	row, err := d.r.Read()
	if err == nil {
		d.line, _ = d.r.FieldPos(0)
	}
	return row, err
}

func (d *delimitedReader) Line() int { return d.line }

// stripBOM drops a leading UTF-8 byte order mark.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// sheetReader reads the rows of one worksheet.
type sheetReader struct {
	rows *excelize.Rows
	line int
}

func (s *sheetReader) Read() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	s.line++
	return s.rows.Columns()
}

func (s *sheetReader) Line() int { return s.line }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openSpreadsheet opens the first worksheet of an Excel workbook.
func openSpreadsheet(path string) (rowReader, io.Closer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, nil, errors.New("workbook has no worksheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	closer := closerFunc(func() error {
		return errors.Join(rows.Close(), f.Close())
	})
	return &sheetReader{rows: rows}, closer, nil
}
