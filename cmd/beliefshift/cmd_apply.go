package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/store"
)

type applyFlags struct {
	input       string
	output      string
	run         string
	families    string
	noRescale   bool
	skipInvalid bool
}

func newApplyCmd(a *app) *cobra.Command {
	var fl applyFlags
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Score trials with every metric family",
		Long: `Apply appends a score column per metric family (and per regime for the
second-order families) to every trial. Parameters come from a stored
calibration run (--run) or the defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fl.input, "input", "", "Trials to score (JSONL or CSV)")
	f.StringVar(&fl.output, "output", "", "Output file; the extension selects JSONL or CSV")
	f.StringVar(&fl.run, "run", "", "Stored calibration run whose parameters to apply")
	f.StringVar(&fl.families, "families", "", "Comma-separated families to score (default: all)")
	f.BoolVar(&fl.noRescale, "no-rescale", false, "Omit the *_scaled columns")
	f.BoolVar(&fl.skipInvalid, "skip-invalid", false, "Write empty cells for out-of-domain inputs instead of failing")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runApply(cmd *cobra.Command, a *app, fl applyFlags) error {
	opts := a.cfg.Apply
	f := cmd.Flags()
	if f.Changed("families") {
		fams, err := parseFamilies(fl.families)
		if err != nil {
			return err
		}
		opts.Families = fams
	}
	if f.Changed("no-rescale") {
		opts.Rescale = !fl.noRescale
	}
	if f.Changed("skip-invalid") {
		opts.SkipInvalid = fl.skipInvalid
	}

	params := calibrate.NewParamSet()
	if fl.run != "" {
		st, err := a.runStore()
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.GetRun(fl.run)
		if err != nil {
			return err
		}
		if run.Kind != store.KindCalibrate {
			return fmt.Errorf("run %s is a %s run; apply needs a calibrate run", run.ID, run.Kind)
		}
		if params, err = store.LoadParamSet(st, run.ID); err != nil {
			return err
		}
		a.log.Info("parameters loaded", "run", run.ID, "joint", params.HasJoint())
	}
	return applyFile(a, fl.input, fl.output, params, opts)
}
