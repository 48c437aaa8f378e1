package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"beliefshift/internal/dataset"
	"beliefshift/internal/metric"
	"beliefshift/internal/pipeline"
)

type summarizeFlags struct {
	input   string
	output  string
	groupBy string
	columns string
	rank    bool
}

func newSummarizeCmd(a *app) *cobra.Command {
	var fl summarizeFlags
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Describe scored trials per condition",
		Long: `Summarize groups scored trials by condition labels and prints count,
quartiles and mean of each metric column per group.

With --rank each metric column is also ranked against the relevance
ratings; with --output the trials are written back with the rank and
group-mean columns added.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummarize(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fl.input, "input", "", "Scored trials (output of apply)")
	f.StringVar(&fl.output, "output", "", "Write trials with rank and group-mean columns here")
	f.StringVar(&fl.groupBy, "group-by", "", "Comma-separated label columns (default from config)")
	f.StringVar(&fl.columns, "columns", "", "Comma-separated columns to describe (default: every metric column present)")
	f.BoolVar(&fl.rank, "rank", false, "Add rank and rank-difference columns against relevance")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// metricColumns picks the header names that are metric score columns.
func metricColumns(header []string) []string {
	known := map[string]bool{}
	for _, n := range metric.Names() {
		known[n] = true
	}
	var out []string
	for _, h := range header {
		base := strings.TrimSuffix(h, "_joint")
		if known[h] || known[base] {
			out = append(out, h)
		}
	}
	return out
}

func runSummarize(cmd *cobra.Command, a *app, fl summarizeFlags) error {
	tbl, err := a.readTable(fl.input)
	if err != nil {
		return err
	}
	if len(tbl.Rows) == 0 {
		return fmt.Errorf("%s: %w", fl.input, dataset.ErrEmpty)
	}

	present := map[string]bool{}
	for _, h := range tbl.Header {
		present[h] = true
	}
	var groupBy []string
	if cmd.Flags().Changed("group-by") {
		groupBy = splitList(fl.groupBy)
		for _, g := range groupBy {
			if !present[g] {
				return fmt.Errorf("group-by column %q not in %s", g, fl.input)
			}
		}
	} else {
		for _, g := range a.cfg.Summary.GroupBy {
			if present[g] {
				groupBy = append(groupBy, g)
			}
		}
	}
	columns := a.cfg.Summary.Columns
	if cmd.Flags().Changed("columns") {
		columns = splitList(fl.columns)
	}
	if len(columns) == 0 {
		columns = metricColumns(tbl.Header)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%s: no metric columns found; run apply first or pass --columns", fl.input)
	}

	records := make([]pipeline.Record, len(tbl.Rows))
	for i, row := range tbl.Rows {
		records[i] = pipeline.NewRecord(row)
	}
	described := columns
	if fl.rank {
		rel := a.cfg.Columns.Relevance
		if err := pipeline.RankDiffs(records, rel, columns); err != nil {
			return err
		}
		for _, c := range columns {
			described = append(described[:len(described):len(described)], c+"_rank_diff")
		}
	}

	groups := pipeline.Summarize(records, described, groupBy)
	fmt.Fprintln(cmd.OutOrStdout(), pipeline.SummaryTable(groups, groupBy, described, a.cfg.OutputMode()))
	a.log.Info("summary", "trials", len(records), "groups", len(groups), "columns", len(described))

	if fl.output == "" {
		return nil
	}
	pipeline.GroupMeans(records, columns, groupBy)
	return dataset.WriteFile(fl.output, records)
}
