// Package dataset reads and writes flat per-trial records as JSON Lines or
// CSV.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beliefshift/internal/trial"
)

var ErrEmpty = errors.New("dataset: no header or records")

// Format is the on-disk layout of a dataset.
type Format int

const (
	JSONL Format = iota
	CSV
)

func (f Format) String() string {
	if f == CSV {
		return "csv"
	}
	return "jsonl"
}

// FormatFor picks the format from the file extension: .csv is CSV, anything
// else is JSON Lines.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return CSV
	}
	return JSONL
}

// Table is a decoded dataset: the header in source order and one field map
// per record.
type Table struct {
	Header []string
	Rows   []map[string]any
}

// Read decodes a dataset. JSON Lines records keep JSON numbers as
// json.Number; CSV cells are strings.
func Read(r io.Reader, f Format) (*Table, error) {
	if f == CSV {
		return readCSV(r)
	}
	return readJSONL(r)
}

func readJSONL(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	t := &Table{}
	seen := map[string]bool{}
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			if !seen[k] {
				keys = append(keys, k)
				seen[k] = true
			}
		}
		sort.Strings(keys)
		t.Header = append(t.Header, keys...)
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// ReadTable opens and decodes path, choosing the format by extension.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	t, err := Read(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Trials validates the header against cols and decodes every row.
func (t *Table) Trials(cols trial.Columns) ([]trial.Trial, error) {
	if err := cols.CheckHeader(t.Header); err != nil {
		return nil, err
	}
	return cols.DecodeAll(t.Rows)
}

// ReadFile reads path and decodes its records into trials.
func ReadFile(path string, cols trial.Columns) ([]trial.Trial, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	trials, err := t.Trials(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trials, nil
}

// Row is an output record: its keys in column order and a text rendering of
// each value for CSV. JSON Lines output uses the row's JSON encoding.
type Row interface {
	Keys() []string
	String(key string) string
}

// Write encodes rows. The CSV header is the union of keys in first-seen order.
func Write[R Row](w io.Writer, rows []R, f Format) error {
	if f == CSV {
		return writeCSV(w, rows)
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func writeCSV[R Row](w io.Writer, rows []R) error {
	var header []string
	seen := map[string]bool{}
	for _, r := range rows {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(header))
	for i, r := range rows {
		for j, h := range header {
			rec[j] = r.String(h)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and writes rows in the format its extension picks.
func WriteFile[R Row](path string, rows []R) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	if err := Write(f, rows, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
