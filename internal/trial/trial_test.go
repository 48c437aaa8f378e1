package trial

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func row(overrides map[string]any) map[string]any {
	r := map[string]any{
		"prior_sliderResponse":     0.5,
		"posterior_sliderResponse": "0.9",
		"prior_confidence":         json.Number("2"),
		"posterior_confidence":     3,
		"relevance_sliderResponse": 0.7,
		"StimID":                   12,
		"AnswerCertainty":          "high_certainty",
		"AnswerPolarity":           "positive",
		"ContextType":              "neutral",
		"submission_id":            "abc",
	}
	for k, v := range overrides {
		if v == nil {
			delete(r, k)
			continue
		}
		r[k] = v
	}
	return r
}

func TestDecode(t *testing.T) {
	fields := row(nil)
	got, err := DefaultColumns().Decode(0, fields)
	if err != nil {
		t.Fatal(err)
	}
	want := Trial{
		PriorProbability:     0.5,
		PosteriorProbability: 0.9,
		PriorConfidence:      2,
		PosteriorConfidence:  3,
		Relevance:            0.7,
		HasRelevance:         true,
		Labels: map[string]string{
			"StimID":          "12",
			"AnswerCertainty": "high_certainty",
			"AnswerPolarity":  "positive",
			"ContextType":     "neutral",
		},
		Fields: fields,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_OptionalRelevance(t *testing.T) {
	for _, v := range []any{"", "  "} {
		got, err := DefaultColumns().Decode(0, row(map[string]any{"relevance_sliderResponse": v}))
		if err != nil {
			t.Fatal(err)
		}
		if got.HasRelevance {
			t.Errorf("relevance %q: HasRelevance = true", v)
		}
	}
	got, err := DefaultColumns().Decode(0, row(map[string]any{"relevance_sliderResponse": nil}))
	if err != nil {
		t.Fatal(err)
	}
	if got.HasRelevance {
		t.Error("absent relevance: HasRelevance = true")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		over   map[string]any
		want   error
		column string
	}{
		{"missing prior", map[string]any{"prior_sliderResponse": nil}, ErrMissingColumn, "prior_sliderResponse"},
		{"blank confidence", map[string]any{"posterior_confidence": ""}, ErrMissingColumn, "posterior_confidence"},
		{"probability above one", map[string]any{"posterior_sliderResponse": 1.5}, ErrInvalidValue, "posterior_sliderResponse"},
		{"non-numeric confidence", map[string]any{"prior_confidence": "high"}, ErrInvalidValue, "prior_confidence"},
		{"relevance out of range", map[string]any{"relevance_sliderResponse": -0.2}, ErrInvalidValue, "relevance_sliderResponse"},
		{"unsupported type", map[string]any{"prior_confidence": []int{1}}, ErrInvalidValue, "prior_confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultColumns().Decode(4, row(tt.over))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var re *RowError
			if !errors.As(err, &re) {
				t.Fatalf("error %v is not a *RowError", err)
			}
			if re.Row != 4 || re.Column != tt.column {
				t.Errorf("RowError at (%d, %q), want (4, %q)", re.Row, re.Column, tt.column)
			}
		})
	}
}

func TestDecodeAll_StopsAtFirstError(t *testing.T) {
	rows := []map[string]any{row(nil), row(nil), row(map[string]any{"prior_confidence": nil})}
	_, err := DefaultColumns().DecodeAll(rows)
	var re *RowError
	if !errors.As(err, &re) || re.Row != 2 {
		t.Fatalf("error = %v, want RowError at row 2", err)
	}
}

func TestRequireRelevance(t *testing.T) {
	trials, err := DefaultColumns().DecodeAll([]map[string]any{
		row(nil),
		row(map[string]any{"relevance_sliderResponse": nil}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := RequireRelevance(trials[:1]); err != nil {
		t.Errorf("RequireRelevance on labeled trials: %v", err)
	}
	err = RequireRelevance(trials)
	if !errors.Is(err, ErrMissingRelevance) {
		t.Fatalf("error = %v, want ErrMissingRelevance", err)
	}
	if diff := cmp.Diff([]float64{0.7, 0}, Relevances(trials)); diff != "" {
		t.Errorf("Relevances mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckHeader(t *testing.T) {
	c := DefaultColumns()
	if err := c.CheckHeader([]string{"prior_sliderResponse", " posterior_sliderResponse", "prior_confidence", "posterior_confidence"}); err != nil {
		t.Errorf("CheckHeader on complete header: %v", err)
	}
	err := c.CheckHeader([]string{"prior_sliderResponse", "prior_confidence"})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("error = %v, want ErrMissingColumn", err)
	}
}

func TestColumns_WithDefaults(t *testing.T) {
	got := Columns{Relevance: "helpfulness", Labels: []string{}}.WithDefaults()
	want := DefaultColumns()
	want.Relevance = "helpfulness"
	want.Labels = []string{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithDefaults mismatch (-want +got):\n%s", diff)
	}
}
