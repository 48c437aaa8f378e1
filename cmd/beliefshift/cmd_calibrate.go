package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/dataset"
	"beliefshift/internal/pipeline"
)

type calibrateFlags struct {
	training   string
	input      string
	output     string
	mode       string
	objective  string
	families   string
	firstOrder bool
	noCompress bool
	method     string
	maxEvals   int
}

func newCalibrateCmd(a *app) *cobra.Command {
	var fl calibrateFlags
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Fit linking and compression parameters on a training set",
		Long: `Calibrate fits the certainty-to-concentration link (scale * growth^c) and
the utility compression exponent of each metric family so its scores best
track the relevance ratings of the training trials.

With --input and --output the fitted parameters are applied to another
dataset in the same run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalibrate(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fl.training, "training", "", "Training trials (JSONL or CSV) with relevance ratings")
	f.StringVar(&fl.input, "input", "", "Trials to score with the fitted parameters")
	f.StringVar(&fl.output, "output", "", "Where to write the scored trials (required with --input)")
	f.StringVar(&fl.mode, "mode", "", "Calibration mode: separate, joint or both")
	f.StringVar(&fl.objective, "objective", "", "Objective: pearson, mse, std, centrality or pearson_reg")
	f.StringVar(&fl.families, "families", "", "Comma-separated families to calibrate (default: the second-order set)")
	f.BoolVar(&fl.firstOrder, "first-order", false, "Also calibrate compression for kl and entropy_change")
	f.BoolVar(&fl.noCompress, "no-compress", false, "Use raw scores; do not fit the compression exponent")
	f.StringVar(&fl.method, "method", "", "Local search: nelder-mead or bfgs")
	f.IntVar(&fl.maxEvals, "max-evaluations", 0, "Objective evaluations per fit (0 = config default)")
	_ = cmd.MarkFlagRequired("training")
	return cmd
}

// calibrationConfig applies command flags over the loaded config.
func calibrationConfig(cmd *cobra.Command, base calibrate.Config, fl calibrateFlags) (calibrate.Config, error) {
	cfg := base
	f := cmd.Flags()
	if f.Changed("mode") {
		m, err := calibrate.ParseMode(fl.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
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
	if f.Changed("first-order") {
		cfg.FirstOrder = fl.firstOrder
	}
	if f.Changed("no-compress") {
		cfg.Compress = !fl.noCompress
	}
	if f.Changed("method") {
		m, err := calibrate.ParseMethod(fl.method)
		if err != nil {
			return cfg, err
		}
		cfg.Optimizer.Method = m
	}
	if f.Changed("max-evaluations") {
		cfg.Optimizer.MaxEvaluations = fl.maxEvals
	}
	return cfg, nil
}

func runCalibrate(cmd *cobra.Command, a *app, fl calibrateFlags) error {
	if fl.input != "" && fl.output == "" {
		return fmt.Errorf("--output is required with --input")
	}
	cfg, err := calibrationConfig(cmd, a.cfg.Calibration, fl)
	if err != nil {
		return err
	}
	if cfg.Mode == calibrate.ModeGrid {
		return fmt.Errorf("mode grid is served by the grid command")
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
	rep, err := eng.Calibrate(ctx, train)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, calibrate.FormatReport(rep, a.cfg.OutputMode()))

	st, err := a.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		id, err := st.SaveReport(rep, fl.training)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		a.log.Info("run saved", "run", id, "db", a.cfg.DB)
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s\n", id)
	}

	if fl.input != "" {
		if err := applyFile(a, fl.input, fl.output, rep.ParamSet(), a.cfg.Apply); err != nil {
			return err
		}
	}
	if a.rec != nil {
		a.rec.FinishReport(rep)
	}
	return a.writeMetrics()
}

// applyFile scores every trial of input and writes the records to output.
func applyFile(a *app, input, output string, params calibrate.ParamSet, opts pipeline.Options) error {
	trials, err := a.readTrials(input)
	if err != nil {
		return err
	}
	records, err := pipeline.Apply(trials, params, opts)
	if err != nil {
		return fmt.Errorf("apply %s: %w", input, err)
	}
	if err := dataset.WriteFile(output, records); err != nil {
		return err
	}
	a.log.Info("scored trials written", "trials", len(records), "output", output)
	return nil
}
