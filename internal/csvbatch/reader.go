// Package csvbatch streams a CSV file into fixed-size batches of raw rows
// and normalizes raw rows into canonical product records.
package csvbatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingHeader is returned when the file has no header row.
var ErrMissingHeader = errors.New("csv file must include a header row")

// Row is one data row keyed by header field name, with its original line
// number in the file (the header counts as line 1).
type Row struct {
	Line   int
	Fields map[string]string
}

// Reader iterates a CSV file in fixed-size batches. It does not validate
// field values; that is the normalizer's job.
type Reader struct {
	filePath  string
	batchSize int
}

func NewReader(filePath string, batchSize int) *Reader {
	return &Reader{filePath: filePath, batchSize: batchSize}
}

// CountRows counts data rows (excluding the header). This is an independent
// full pass over the file, not cached from batch iteration.
func (r *Reader) CountRows() (int, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	total := 0
	for i := 0; ; i++ {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read csv record: %w", err)
		}
		if i == 0 {
			continue // skip header
		}
		total++
	}
	return total, nil
}

// Batches opens the file and returns a single-pass batch iterator. It fails
// with ErrMissingHeader when the file is empty.
func (r *Reader) Batches() (*BatchIterator, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		f.Close()
		return nil, ErrMissingHeader
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	fields := make([]string, len(header))
	for i, name := range header {
		fields[i] = strings.TrimSpace(name)
	}

	return &BatchIterator{
		file:      f,
		reader:    cr,
		header:    fields,
		batchSize: r.batchSize,
		line:      1, // header line
	}, nil
}

// BatchIterator yields ordered batches of rows until the file is exhausted.
type BatchIterator struct {
	file      *os.File
	reader    *csv.Reader
	header    []string
	batchSize int
	line      int
}

// Next returns the next batch, or io.EOF when no rows remain.
func (it *BatchIterator) Next() ([]Row, error) {
	batch := make([]Row, 0, it.batchSize)
	for len(batch) < it.batchSize {
		record, err := it.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		it.line++
		fields := make(map[string]string, len(it.header))
		for i, name := range it.header {
			if name == "" {
				continue
			}
			if i < len(record) {
				fields[name] = record[i]
			} else {
				fields[name] = ""
			}
		}
		batch = append(batch, Row{Line: it.line, Fields: fields})
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (it *BatchIterator) Close() error {
	return it.file.Close()
}
