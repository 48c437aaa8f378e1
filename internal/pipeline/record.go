package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"beliefshift/internal/trial"
)

// Record is a source row plus the numeric columns computed for it. Metric
// columns keep insertion order; source fields are ordered by name.
type Record struct {
	Fields map[string]any
	names  []string
	values []float64
	index  map[string]int
}

func newRecord(fields map[string]any, names []string, values []float64) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	r := Record{Fields: fields, names: names, values: values, index: make(map[string]int, len(names))}
	for i, n := range names {
		r.index[n] = i
	}
	return r
}

// NewRecord wraps a source row with no computed columns.
func NewRecord(fields map[string]any) Record {
	return newRecord(fields, nil, nil)
}

// Set adds or replaces a computed column.
func (r *Record) Set(name string, v float64) {
	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[name]; ok {
		r.values[i] = v
		return
	}
	r.index[name] = len(r.names)
	// names may be shared with other records from the same batch.
	r.names = append(r.names[:len(r.names):len(r.names)], name)
	r.values = append(r.values, v)
}

// Columns lists the computed column names in order.
func (r Record) Columns() []string { return r.names }

// Keys lists source fields sorted by name, then computed columns. A source
// field shadowed by a computed column of the same name is listed once.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields)+len(r.names))
	for k := range r.Fields {
		if _, ok := r.index[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return append(keys, r.names...)
}

// Value returns a computed column or, failing that, the source field.
func (r Record) Value(key string) (any, bool) {
	if i, ok := r.index[key]; ok {
		return r.values[i], true
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Float returns key as a number. Computed columns may be NaN; source fields
// must parse as finite numbers.
func (r Record) Float(key string) (float64, bool) {
	if i, ok := r.index[key]; ok {
		return r.values[i], true
	}
	raw, ok := r.Fields[key]
	if !ok {
		return 0, false
	}
	v, err := trial.Float(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// String renders key for text output; non-finite numbers are empty.
func (r Record) String(key string) string {
	v, ok := r.Value(key)
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(bytes.Trim(b, `"`))
	}
}

// MarshalJSON writes an object in Keys order. Non-finite numbers become null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v, _ := r.Value(k)
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			buf.WriteString("null")
			continue
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
