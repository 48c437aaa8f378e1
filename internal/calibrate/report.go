package calibrate

import (
	"fmt"
	"strings"

	"beliefshift/internal/display"
	"beliefshift/internal/format"
)

// ParamsTable renders one row per fit with the vector and its loss under
// every objective. CSV output keeps machine column names only.
func ParamsTable(r *Report, m format.Mode) string {
	tb := format.NewTable(m)
	tb.Header("metric", "regime", "a_fit", "b_fit", "g_fit",
		"pearson", "mse", "std", "centrality", "pearson_reg", "evaluations")
	for _, f := range r.Fits {
		tb.Row(f.Name(), f.Regime.String(),
			f.Params.Scale, f.Params.Growth, f.Params.Compression,
			f.Losses.Pearson, f.Losses.MSE, f.Losses.Std, f.Losses.Centrality, f.Losses.PearsonReg,
			f.Evaluations)
	}
	if m != format.CSV {
		tb.Columns(
			format.ColumnConfig{Number: 3, Align: format.AlignRight},
			format.ColumnConfig{Number: 4, Align: format.AlignRight},
			format.ColumnConfig{Number: 5, Align: format.AlignRight},
			format.ColumnConfig{Number: 11, Align: format.AlignRight},
		)
	}
	return tb.String()
}

// FormatReport produces the human-readable calibration report.
func FormatReport(r *Report, m format.Mode) string {
	if m == format.CSV {
		return ParamsTable(r, m)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "=== Calibration Report ===\n")
	fmt.Fprintf(&b, "Mode:      %s\n", display.Mode(r.Mode.String()))
	fmt.Fprintf(&b, "Objective: %s (%s)\n", display.Objective(r.Objective.String()), r.Objective)
	fmt.Fprintf(&b, "Trials:    %d\n", r.Trials)
	fmt.Fprintf(&b, "Elapsed:   %s\n\n", format.FmtDuration(r.Elapsed))
	b.WriteString(ParamsTable(r, m))
	b.WriteString("\n\n")
	for _, f := range r.Fits {
		if f.Regime == RegimeJoint && !f.Aggregate() {
			continue
		}
		fmt.Fprintf(&b, "%-40s %s  best %s = %s\n",
			display.FamilyWithCode(f.Name()), f.Params, r.Objective, format.Float(f.Loss))
	}
	return b.String()
}

// GridTable renders grid points by ascending loss. top <= 0 renders all.
func GridTable(g *GridReport, m format.Mode, top int) string {
	tb := format.NewTable(m)
	header := []string{"rank", "index", "a", "b", "r", "avg"}
	for _, f := range g.Families {
		header = append(header, f.String())
	}
	tb.Header(header...)
	for i, p := range g.Ranked() {
		if top > 0 && i >= top {
			break
		}
		row := []any{i + 1, p.Index, p.Params.Scale, p.Params.Growth, p.Params.Compression, p.Loss}
		for _, l := range p.Losses {
			row = append(row, l)
		}
		tb.Row(row...)
	}
	if m != format.CSV {
		tb.Footer("", "", "", "", "evaluations", g.Evaluations)
	}
	return tb.String()
}
