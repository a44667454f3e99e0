// Package dataset loads series for the command line tools: CSV files with
// one sample per row and YAML manifests listing several of them.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names recognised in a CSV header (case-insensitive).
const (
	ColTimestamp = "timestamp"
	ColTIn       = "t_in"
	ColTOut      = "t_out"
	ColQIn       = "q_in"
)

// Table is one series read from a CSV file. Timestamps is nil when the file
// has no timestamp column.
type Table struct {
	Timestamps []time.Time
	TIn        []float64
	TOut       []float64
	QIn        []float64
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.TIn) }

// ReadCSVFile reads the CSV file at path.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses a header row followed by one sample per row. Columns are
// matched by name and may appear in any order; unknown columns are ignored.
// Timestamps must be RFC3339.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{ColTIn, ColTOut, ColQIn} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	tsCol, hasTS := cols[ColTimestamp]

	t := &Table{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		var vals [3]float64
		for k, name := range []string{ColTIn, ColTOut, ColQIn} {
			field := strings.TrimSpace(rec[cols[name]])
			if vals[k], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
		}
		t.TIn = append(t.TIn, vals[0])
		t.TOut = append(t.TOut, vals[1])
		t.QIn = append(t.QIn, vals[2])
		if hasTS {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[tsCol]))
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, ColTimestamp, err)
			}
			t.Timestamps = append(t.Timestamps, ts)
		}
	}
	if t.Len() == 0 {
		return nil, errors.New("no data rows")
	}
	return t, nil
}
