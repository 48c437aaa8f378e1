// Package trial defines the per-trial record the analysis consumes and the
// mapping from source columns onto its semantic fields.
package trial

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingColumn    = errors.New("trial: missing required column")
	ErrMissingRelevance = errors.New("trial: missing relevance rating")
	ErrInvalidValue     = errors.New("trial: invalid value")
)

// Trial is one participant-by-item observation.
type Trial struct {
	PriorProbability     float64
	PosteriorProbability float64
	PriorConfidence      float64
	PosteriorConfidence  float64

	// Relevance is only meaningful when HasRelevance is set.
	Relevance    float64
	HasRelevance bool

	// Labels are condition labels used as group keys.
	Labels map[string]string
	// Fields holds every source column verbatim.
	Fields map[string]any
}

// Label returns the value of a condition label, or "" when absent.
func (t Trial) Label(name string) string { return t.Labels[name] }

// RowError ties a schema error to the row and column that caused it.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Columns names the source columns that carry each semantic field.
type Columns struct {
	PriorProbability     string   `json:"prior_probability" yaml:"prior_probability"`
	PosteriorProbability string   `json:"posterior_probability" yaml:"posterior_probability"`
	PriorConfidence      string   `json:"prior_confidence" yaml:"prior_confidence"`
	PosteriorConfidence  string   `json:"posterior_confidence" yaml:"posterior_confidence"`
	Relevance            string   `json:"relevance" yaml:"relevance"`
	Labels               []string `json:"labels" yaml:"labels"`
}

// DefaultColumns matches the experiment export.
func DefaultColumns() Columns {
	return Columns{
		PriorProbability:     "prior_sliderResponse",
		PosteriorProbability: "posterior_sliderResponse",
		PriorConfidence:      "prior_confidence",
		PosteriorConfidence:  "posterior_confidence",
		Relevance:            "relevance_sliderResponse",
		Labels:               []string{"StimID", "AnswerCertainty", "AnswerPolarity", "ContextType"},
	}
}

// WithDefaults fills every empty column name from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.PriorProbability == "" {
		c.PriorProbability = d.PriorProbability
	}
	if c.PosteriorProbability == "" {
		c.PosteriorProbability = d.PosteriorProbability
	}
	if c.PriorConfidence == "" {
		c.PriorConfidence = d.PriorConfidence
	}
	if c.PosteriorConfidence == "" {
		c.PosteriorConfidence = d.PosteriorConfidence
	}
	if c.Relevance == "" {
		c.Relevance = d.Relevance
	}
	if c.Labels == nil {
		c.Labels = d.Labels
	}
	return c
}

// Required lists the columns every record must carry.
func (c Columns) Required() []string {
	return []string{c.PriorProbability, c.PosteriorProbability, c.PriorConfidence, c.PosteriorConfidence}
}

// CheckHeader fails with ErrMissingColumn when a tabular header lacks a
// required column.
func (c Columns) CheckHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range c.Required() {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Decode maps one source record onto a Trial. row is used for error
// reporting only.
func (c Columns) Decode(row int, fields map[string]any) (Trial, error) {
	t := Trial{Fields: fields, Labels: make(map[string]string, len(c.Labels))}

	probs := []struct {
		col string
		dst *float64
	}{
		{c.PriorProbability, &t.PriorProbability},
		{c.PosteriorProbability, &t.PosteriorProbability},
	}
	for _, p := range probs {
		v, err := required(row, p.col, fields)
		if err != nil {
			return Trial{}, err
		}
		if v < 0 || v > 1 {
			return Trial{}, &RowError{Row: row, Column: p.col, Err: fmt.Errorf("%w: probability %g outside [0,1]", ErrInvalidValue, v)}
		}
		*p.dst = v
	}

	var err error
	if t.PriorConfidence, err = required(row, c.PriorConfidence, fields); err != nil {
		return Trial{}, err
	}
	if t.PosteriorConfidence, err = required(row, c.PosteriorConfidence, fields); err != nil {
		return Trial{}, err
	}

	if raw, ok := fields[c.Relevance]; ok && !blank(raw) {
		v, err := Float(raw)
		if err != nil {
			return Trial{}, &RowError{Row: row, Column: c.Relevance, Err: err}
		}
		if v < 0 || v > 1 {
			return Trial{}, &RowError{Row: row, Column: c.Relevance, Err: fmt.Errorf("%w: relevance %g outside [0,1]", ErrInvalidValue, v)}
		}
		t.Relevance, t.HasRelevance = v, true
	}

	for _, l := range c.Labels {
		if raw, ok := fields[l]; ok && raw != nil {
			t.Labels[l] = fmt.Sprint(raw)
		}
	}
	return t, nil
}

// DecodeAll decodes rows in order and stops at the first schema error.
func (c Columns) DecodeAll(rows []map[string]any) ([]Trial, error) {
	out := make([]Trial, 0, len(rows))
	for i, r := range rows {
		t, err := c.Decode(i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// RequireRelevance fails on the first trial without a relevance rating.
func RequireRelevance(trials []Trial) error {
	for i, t := range trials {
		if !t.HasRelevance {
			return &RowError{Row: i, Err: ErrMissingRelevance}
		}
	}
	return nil
}

// Relevances extracts the relevance vector in trial order.
func Relevances(trials []Trial) []float64 {
	out := make([]float64, len(trials))
	for i, t := range trials {
		out[i] = t.Relevance
	}
	return out
}

func required(row int, col string, fields map[string]any) (float64, error) {
	raw, ok := fields[col]
	if !ok || blank(raw) {
		return 0, &RowError{Row: row, Column: col, Err: ErrMissingColumn}
	}
	v, err := Float(raw)
	if err != nil {
		return 0, &RowError{Row: row, Column: col, Err: err}
	}
	return v, nil
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// Float converts a decoded cell (JSON number, numeric string, Go number) to
// a finite float64.
func Float(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x.String())
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x)
		}
		f = p
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %g is not finite", ErrInvalidValue, f)
	}
	return f, nil
}
