package csvbatch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	return path
}

func makeCSV(rows int) string {
	var b strings.Builder
	b.WriteString("sku,name,price,active\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "SKU-%d,Product %d,%d.50,true\n", i, i, i)
	}
	return b.String()
}

func collectBatches(t *testing.T, r *Reader) [][]Row {
	t.Helper()
	it, err := r.Batches()
	if err != nil {
		t.Fatalf("failed to open batches: %v", err)
	}
	defer it.Close()

	var batches [][]Row
	for {
		batch, err := it.Next()
		if err == io.EOF {
			return batches
		}
		if err != nil {
			t.Fatalf("failed to read batch: %v", err)
		}
		batches = append(batches, batch)
	}
}

func TestReader_CountRows(t *testing.T) {
	path := writeCSV(t, makeCSV(7))

	total, err := NewReader(path, 3).CountRows()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 7 {
		t.Errorf("expected 7 rows, got %d", total)
	}
}

func TestReader_CountRows_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	total, err := NewReader(path, 3).CountRows()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0 rows, got %d", total)
	}
}

func TestReader_BatchCoverage(t *testing.T) {
	// ceil(R/N) batches covering lines 2..R+1 with no gaps or repeats
	cases := []struct {
		rows      int
		batchSize int
		batches   int
	}{
		{rows: 10, batchSize: 3, batches: 4},
		{rows: 10, batchSize: 10, batches: 1},
		{rows: 10, batchSize: 25, batches: 1},
		{rows: 9, batchSize: 3, batches: 3},
		{rows: 1, batchSize: 1, batches: 1},
	}

	for _, tc := range cases {
		path := writeCSV(t, makeCSV(tc.rows))
		batches := collectBatches(t, NewReader(path, tc.batchSize))

		if len(batches) != tc.batches {
			t.Errorf("rows=%d batch=%d: expected %d batches, got %d", tc.rows, tc.batchSize, tc.batches, len(batches))
			continue
		}

		seen := make(map[int]bool)
		count := 0
		for _, batch := range batches {
			for _, row := range batch {
				count++
				if seen[row.Line] {
					t.Errorf("rows=%d batch=%d: duplicate line %d", tc.rows, tc.batchSize, row.Line)
				}
				seen[row.Line] = true
			}
		}
		if count != tc.rows {
			t.Errorf("rows=%d batch=%d: expected %d total rows, got %d", tc.rows, tc.batchSize, tc.rows, count)
		}
		for line := 2; line <= tc.rows+1; line++ {
			if !seen[line] {
				t.Errorf("rows=%d batch=%d: missing line %d", tc.rows, tc.batchSize, line)
			}
		}
	}
}

func TestReader_FieldMapping(t *testing.T) {
	path := writeCSV(t, "sku,name,price\nA1,Widget,9.99\n")

	batches := collectBatches(t, NewReader(path, 10))
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected a single row, got %v", batches)
	}

	row := batches[0][0]
	if row.Line != 2 {
		t.Errorf("expected line 2, got %d", row.Line)
	}
	if row.Fields["sku"] != "A1" || row.Fields["name"] != "Widget" || row.Fields["price"] != "9.99" {
		t.Errorf("unexpected field map: %v", row.Fields)
	}
}

func TestReader_ShortRecordPadsFields(t *testing.T) {
	path := writeCSV(t, "sku,name,price\nA1,Widget\n")

	batches := collectBatches(t, NewReader(path, 10))
	row := batches[0][0]
	if row.Fields["price"] != "" {
		t.Errorf("expected empty price for short record, got %q", row.Fields["price"])
	}
}

func TestReader_MissingHeader(t *testing.T) {
	path := writeCSV(t, "")

	_, err := NewReader(path, 10).Batches()
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}
}

func TestReader_HeaderOnly(t *testing.T) {
	path := writeCSV(t, "sku,name,price\n")

	batches := collectBatches(t, NewReader(path, 10))
	if len(batches) != 0 {
		t.Errorf("expected no batches, got %d", len(batches))
	}
}
