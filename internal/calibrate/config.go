package calibrate

import (
	"errors"
	"fmt"
	"strings"

	"beliefshift/internal/metric"
)

// Mode selects which fits a calibration run produces.
type Mode int

const (
	ModeSeparate Mode = iota + 1
	ModeJoint
	ModeBoth
	ModeGrid
)

var modeNames = [...]string{
	ModeSeparate: "separate",
	ModeJoint:    "joint",
	ModeBoth:     "both",
	ModeGrid:     "grid",
}

func (m Mode) String() string {
	if m > 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a calibration mode by name.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for m := ModeSeparate; m <= ModeGrid; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown calibration mode %q (want separate, joint, both or grid)", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Separate reports whether per-family vectors are fitted.
func (m Mode) Separate() bool { return m == ModeSeparate || m == ModeBoth }

// Joint reports whether a shared vector is fitted.
func (m Mode) Joint() bool { return m == ModeJoint || m == ModeBoth }

var ErrInvalidConfig = errors.New("calibrate: invalid config")

// Config enumerates everything a calibration run depends on.
type Config struct {
	// Families to calibrate. Empty selects DefaultFamilies(FirstOrder).
	Families   []metric.Family `json:"families" yaml:"families"`
	FirstOrder bool            `json:"first_order" yaml:"first_order"`
	Mode       Mode            `json:"mode" yaml:"mode"`
	Objective  Objective       `json:"objective" yaml:"objective"`
	// Compress searches the compression exponent; when false scores are
	// used as is.
	Compress  bool      `json:"compress" yaml:"compress"`
	Init      Params    `json:"init" yaml:"init"`
	Bounds    Bounds    `json:"bounds" yaml:"bounds"`
	Optimizer Optimizer `json:"optimizer" yaml:"optimizer"`
	Grid      GridSpec  `json:"grid" yaml:"grid"`
	// Parallel bounds the grid worker pool.
	Parallel int `json:"parallel" yaml:"parallel"`
}

// DefaultConfig is a separate pearson calibration of the second-order
// families.
func DefaultConfig() Config {
	return Config{
		Mode:      ModeSeparate,
		Objective: ObjectivePearson,
		Compress:  true,
		Init:      DefaultParams(),
		Bounds:    DefaultBounds(),
		Optimizer: DefaultOptimizer(),
		Grid:      DefaultGrid(),
		Parallel:  1,
	}
}

// DefaultFamilies are the families calibrated when none are named.
func DefaultFamilies(firstOrder bool) []metric.Family {
	fams := []metric.Family{
		metric.FamilyBetaKL,
		metric.FamilyBetaEntropyChange,
		metric.FamilyBetaBayesFactorUtility,
		metric.FamilyPureSecondOrderChange,
	}
	if firstOrder {
		fams = append(fams, metric.FamilyKL, metric.FamilyEntropyChange)
	}
	return fams
}

// SelectedFamilies resolves the families a run calibrates.
func (c Config) SelectedFamilies() []metric.Family {
	if len(c.Families) > 0 {
		return c.Families
	}
	return DefaultFamilies(c.FirstOrder)
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	if _, err := ParseMode(c.Mode.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := ParseObjective(c.Objective.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, f := range c.Families {
		if _, ok := metric.Lookup(f); !ok {
			return fmt.Errorf("%w: unknown family %d", ErrInvalidConfig, int(f))
		}
	}
	if err := c.Bounds.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("%w: parallel must be >= 0, got %d", ErrInvalidConfig, c.Parallel)
	}
	if c.Mode == ModeGrid {
		if _, err := c.Grid.shape(c.Compress); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// searchSpace returns the start point and box for one fit. Pinned link
// dimensions stand for first-order families, whose scores ignore the link.
func (c Config) searchSpace(pinLink bool) (x0, lower, upper []float64) {
	b := c.Bounds
	init := c.Init
	if pinLink {
		b.Scale, b.Growth = Pinned(init.Scale), Pinned(init.Growth)
	}
	if !c.Compress {
		init.Compression = NoCompression
		b.Compression = Pinned(NoCompression)
	}
	return init.vector(), b.lower(), b.upper()
}

func (c Config) workers() int {
	if c.Parallel < 1 {
		return 1
	}
	return c.Parallel
}
