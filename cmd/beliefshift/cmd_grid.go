package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beliefshift/internal/calibrate"
)

type gridFlags struct {
	training    string
	scale       string
	growth      string
	compression string
	objective   string
	families    string
	noCompress  bool
	parallel    int
	top         int
}

func newGridCmd(a *app) *cobra.Command {
	var fl gridFlags
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Evaluate the joint loss over a parameter grid",
		Long: `Grid evaluates the joint objective at every (scale, growth, compression)
point of a Cartesian grid and prints the best points.

Axes are given as linear:<start>:<stop>:<n>, log:<start>:<stop>:<n> or
values:<v1>,<v2>,...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrid(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fl.training, "training", "", "Training trials (JSONL or CSV) with relevance ratings")
	f.StringVar(&fl.scale, "scale", "", "Scale axis (default linear:2.01:5:12)")
	f.StringVar(&fl.growth, "growth", "", "Growth axis (default linear:1.01:5:12)")
	f.StringVar(&fl.compression, "compression", "", "Compression axis (default 1.1^k ladder)")
	f.StringVar(&fl.objective, "objective", "", "Objective: pearson, mse, std, centrality or pearson_reg")
	f.StringVar(&fl.families, "families", "", "Comma-separated families in the joint loss")
	f.BoolVar(&fl.noCompress, "no-compress", false, "Search scale and growth only")
	f.IntVar(&fl.parallel, "parallel", 0, "Worker count (0 = config default)")
	f.IntVar(&fl.top, "top", 20, "Rows to print, best first (0 = all)")
	_ = cmd.MarkFlagRequired("training")
	return cmd
}

func gridConfig(cmd *cobra.Command, base calibrate.Config, fl gridFlags) (calibrate.Config, error) {
	cfg := base
	cfg.Mode = calibrate.ModeGrid
	f := cmd.Flags()
	axes := []struct {
		flag string
		val  string
		dst  *calibrate.AxisSpec
	}{
		{"scale", fl.scale, &cfg.Grid.Scale},
		{"growth", fl.growth, &cfg.Grid.Growth},
		{"compression", fl.compression, &cfg.Grid.Compression},
	}
	for _, ax := range axes {
		if !f.Changed(ax.flag) {
			continue
		}
		spec, err := calibrate.ParseAxis(ax.val)
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", ax.flag, err)
		}
		*ax.dst = spec
	}
	if f.Changed("objective") {
		o, err := calibrate.ParseObjective(fl.objective)
		if err != nil {
			return cfg, err
		}
		cfg.Objective = o
	}
	if f.Changed("families") {
		fams, err := parseFamilies(fl.families)
		if err != nil {
			return cfg, err
		}
		cfg.Families = fams
	}
	if f.Changed("no-compress") {
		cfg.Compress = !fl.noCompress
	}
	if f.Changed("parallel") {
		cfg.Parallel = fl.parallel
	}
	return cfg, cfg.Validate()
}

func runGrid(cmd *cobra.Command, a *app, fl gridFlags) error {
	cfg, err := gridConfig(cmd, a.cfg.Calibration, fl)
	if err != nil {
		return err
	}
	train, err := a.readTrials(fl.training)
	if err != nil {
		return err
	}
	eng, err := calibrate.NewEngine(cfg, a.engineOptions()...)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, err := eng.Grid(ctx, train)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), calibrate.GridTable(g, a.cfg.OutputMode(), fl.top))
	if best, ok := g.Best(); ok {
		a.log.Info("grid best", "params", best.Params.String(), "loss", best.Loss)
	} else {
		a.log.Warn("no grid point produced a finite loss", "points", len(g.Points))
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		id, err := st.SaveGrid(g, fl.training)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		a.log.Info("run saved", "run", id, "db", a.cfg.DB)
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s\n", id)
	}
	if a.rec != nil {
		a.rec.FinishGrid(g)
	}
	return a.writeMetrics()
}
