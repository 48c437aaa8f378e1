package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/format"
	"beliefshift/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored calibration and grid runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.runStore()
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.ListRuns()
			if err != nil {
				return err
			}
			tb := format.NewTable(a.cfg.OutputMode())
			tb.Header("id", "kind", "mode", "objective", "families", "trials", "elapsed", "created", "source")
			for _, r := range runs {
				tb.Row(r.ID, r.Kind, r.Mode, r.Objective, strings.Join(r.Families, ","), r.Trials,
					format.FmtDuration(r.Elapsed), r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					format.Truncate(r.Source, 40))
			}
			if a.cfg.OutputMode() != format.CSV {
				tb.Footer("", "", "", "", "", "", "", "runs", len(runs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			return nil
		},
	}
	cmd.AddCommand(newRunsShowCmd(a))
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the fits or grid surface of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.runStore()
			if err != nil {
				return err
			}
			defer st.Close()
			out, err := showRun(st, args[0], a.cfg.OutputMode(), top)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "Grid rows to print, best first (0 = all)")
	return cmd
}

// runStore opens the configured store, falling back to the default path.
func (a *app) runStore() (store.Store, error) {
	path := a.cfg.DB
	if path == "" {
		path = store.DefaultDBPath
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return s, nil
}

func showRun(st store.Store, id string, m format.Mode, top int) (string, error) {
	run, err := st.GetRun(id)
	if err != nil {
		return "", err
	}
	switch run.Kind {
	case store.KindGrid:
		points, err := st.LoadGrid(run.ID)
		if err != nil {
			return "", err
		}
		fams, err := parseFamilies(strings.Join(run.Families, ","))
		if err != nil {
			return "", err
		}
		g := &calibrate.GridReport{
			Families:    fams,
			Points:      points,
			Evaluations: len(points),
			Trials:      run.Trials,
			Elapsed:     run.Elapsed,
		}
		return calibrate.GridTable(g, m, top), nil
	default:
		fits, err := st.LoadFits(run.ID)
		if err != nil {
			return "", err
		}
		return calibrate.ParamsTable(&calibrate.Report{Fits: fits}, m), nil
	}
}
