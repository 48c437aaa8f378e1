package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/config"
	"beliefshift/internal/dataset"
	"beliefshift/internal/logging"
	"beliefshift/internal/metric"
	"beliefshift/internal/store"
	"beliefshift/internal/telemetry"
	"beliefshift/internal/trial"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries the loaded configuration to every subcommand.
type app struct {
	flags struct {
		config      string
		logLevel    string
		logFormat   string
		format      string
		db          string
		metricsFile string
		where       string
	}
	cfg config.Config
	log *slog.Logger
	rec *telemetry.Recorder
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "beliefshift",
		Short: "Score belief updates and calibrate them against relevance ratings",
		Long: `beliefshift computes first- and second-order belief-update metrics for
prior/posterior probability and confidence reports, and fits the
certainty-to-concentration link and utility compression that best predict
human relevance ratings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.config, "config", "", "Config file (YAML or JSON; default ./"+config.DefaultFile+" when present)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&a.flags.format, "format", "", "Table format: ascii, markdown or csv")
	f.StringVar(&a.flags.db, "db", "", "SQLite run store path (default: none, or "+store.DefaultDBPath+" for runs)")
	f.StringVar(&a.flags.metricsFile, "metrics-file", "", "Write Prometheus text-format metrics to this path")
	f.StringVar(&a.flags.where, "where", "", `Keep only input rows matching this expression, e.g. 'ContextType == "polar"'`)

	root.AddCommand(
		newCalibrateCmd(a),
		newGridCmd(a),
		newApplyCmd(a),
		newSummarizeCmd(a),
		newFamiliesCmd(a),
		newRunsCmd(a),
	)
	return root
}

// load resolves config file, environment and persistent flags, in
// increasing precedence, and initializes logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.config)
	if err != nil {
		return err
	}
	pf := cmd.Flags()
	if pf.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if pf.Changed("log-format") {
		cfg.Log.Format = a.flags.logFormat
	}
	if pf.Changed("format") {
		cfg.Output = a.flags.format
	}
	if pf.Changed("db") {
		cfg.DB = a.flags.db
	}
	if pf.Changed("metrics-file") {
		cfg.MetricsFile = a.flags.metricsFile
	}
	if pf.Changed("where") {
		cfg.Where = a.flags.where
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())

	a.cfg = cfg
	a.log = logging.New("cli")
	if cfg.MetricsFile != "" {
		a.rec = telemetry.NewRecorder()
	}
	return nil
}

// openStore opens the configured run store, or returns nil when none is
// configured.
func (a *app) openStore() (store.Store, error) {
	if a.cfg.DB == "" {
		return nil, nil
	}
	s, err := store.Open(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return s, nil
}

// engineOptions wires logging and, when enabled, telemetry into an engine.
func (a *app) engineOptions() []calibrate.Option {
	opts := []calibrate.Option{calibrate.WithLogger(logging.New("calibrate"))}
	if a.rec != nil {
		opts = append(opts, calibrate.WithObserver(a.rec))
	}
	return opts
}

// readTable reads a dataset and applies the configured row filter.
func (a *app) readTable(path string) (*dataset.Table, error) {
	tbl, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}
	f, err := dataset.CompileFilter(a.cfg.Where)
	if err != nil {
		return nil, err
	}
	kept, err := tbl.Where(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f != nil {
		a.log.Info("rows filtered", "input", path, "where", f.String(), "kept", len(kept.Rows), "of", len(tbl.Rows))
	}
	return kept, nil
}

// readTrials reads a dataset, filters it and decodes trials.
func (a *app) readTrials(path string) ([]trial.Trial, error) {
	tbl, err := a.readTable(path)
	if err != nil {
		return nil, err
	}
	trials, err := tbl.Trials(a.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trials, nil
}

func (a *app) writeMetrics() error {
	if a.rec == nil {
		return nil
	}
	if err := a.rec.WriteFile(a.cfg.MetricsFile); err != nil {
		return err
	}
	a.log.Info("metrics written", "path", a.cfg.MetricsFile)
	return nil
}

// parseFamilies resolves a comma-separated list of registry names.
func parseFamilies(list string) ([]metric.Family, error) {
	var out []metric.Family
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, err := metric.ParseFamily(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func splitList(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
