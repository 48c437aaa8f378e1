package format_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"beliefshift/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Family", "Regime", "Loss")
	tb.Row("beta_kl", "separate", -0.4213)
	tb.Row("kl", "separate", math.Inf(1))
	out := tb.String()

	// Headers are upper-cased by the ASCII style.
	for _, want := range []string{"FAMILY", "BETA_KL", "-0.4213", "INF"} {
		if !strings.Contains(strings.ToUpper(out), want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	// ASCII uses box-drawing characters from StyleLight
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
	if tb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tb.Len())
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Group", "Count", "Mean")
	tb.Row("high_certainty", 30, 0.61)
	out := tb.String()

	if !strings.Contains(out, "| Group") {
		t.Errorf("expected markdown header with '| Group':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Family", "Evaluations")
	tb.Row("beta_kl", 100)
	tb.Row("beta_entropy_change", 200)
	tb.Footer("TOTAL", 300)
	out := tb.String()

	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "300") {
		t.Errorf("expected footer TOTAL 300 in output:\n%s", out)
	}
}

func TestCSV_Table(t *testing.T) {
	tb := format.NewTable(format.CSV)
	tb.Header("a", "b")
	tb.Row("x", 1.5)
	out := tb.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines:\n%s", len(lines), out)
	}
	if !strings.EqualFold(lines[0], "a,b") || lines[1] != "x,1.5" {
		t.Errorf("unexpected CSV output:\n%s", out)
	}
}

func TestColumns_RightAlign(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Name", "Value")
	tb.Row("evaluations", 12345)
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	if out := tb.String(); !strings.Contains(out, "12345") {
		t.Errorf("expected '12345' in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want format.Mode
	}{
		{"ascii", format.ASCII},
		{"Markdown", format.Markdown},
		{" md ", format.Markdown},
		{"csv", format.CSV},
	}
	for _, tt := range tests {
		got, err := format.ParseMode(tt.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Error("ParseMode(html) succeeded")
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5"},
		{-0.123456789, "-0.123457"},
		{1e-9, "1e-09"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		if got := format.Float(tt.in); got != tt.want {
			t.Errorf("Float(%g) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
	}
	for _, tt := range tests {
		if got := format.FmtDuration(tt.d); got != tt.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"6f1c2d9e-8b7a-4c3d-9e2f-1a0b3c4d5e6f", 8, "6f1c2..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := format.Truncate(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}
