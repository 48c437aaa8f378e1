// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, column names, and equality comparisons.
package display

import "strings"

// --- Metric Families ---

var families = map[string]string{
	"kl":                        "Binary KL Divergence",
	"kl_utility":                "KL Utility",
	"entropy_change":            "Entropy Change",
	"log_bayes_factor":          "Log Bayes Factor",
	"bayes_factor_utility":      "Bayes Factor Utility (polar)",
	"posterior_distance":        "Posterior Distance from Indifference",
	"belief_change":             "Absolute Belief Change",
	"beta_kl":                   "Beta KL Divergence",
	"beta_kl_utility":           "Beta KL Utility",
	"beta_entropy_change":       "Beta Entropy Change",
	"beta_parameter_distance":   "Beta Parameter Distance",
	"beta_bayes_factor_utility": "Beta Bayes Factor Utility",
	"pure_second_order_change":  "Pure Second-Order Change",
	"joint":                     "Joint (all families)",
}

// Family returns the human-readable name for a metric family code. A
// "_joint" suffix is rendered as a regime qualifier.
// "beta_kl_joint" -> "Beta KL Divergence [joint]".
func Family(code string) string {
	if name, ok := families[code]; ok {
		return name
	}
	if base, ok := strings.CutSuffix(code, "_joint"); ok {
		if name, ok := families[base]; ok {
			return name + " [joint]"
		}
	}
	return code
}

// FamilyWithCode returns "Beta KL Divergence (beta_kl)" format.
func FamilyWithCode(code string) string {
	name := Family(code)
	if name == code {
		return code
	}
	return name + " (" + code + ")"
}

// --- Objectives ---

var objectives = map[string]string{
	"pearson":     "Negative Pearson r",
	"mse":         "Mean Squared Error",
	"std":         "Negative Dispersion",
	"centrality":  "Centrality",
	"pearson_reg": "Regularized Pearson",
}

// Objective returns the human-readable name for an objective code.
// "pearson" -> "Negative Pearson r".
func Objective(code string) string {
	if name, ok := objectives[code]; ok {
		return name
	}
	return code
}

// --- Calibration Modes ---

var modes = map[string]string{
	"separate": "Separate",
	"joint":    "Joint",
	"both":     "Separate + Joint",
	"grid":     "Grid Search",
}

// Mode returns the human-readable name for a calibration mode code.
func Mode(code string) string {
	if name, ok := modes[code]; ok {
		return name
	}
	return code
}

// --- Column Names ---

// Column humanizes a derived column name.
// "posterior_beta_for_beta_kl_joint_a" -> "posterior beta for Beta KL Divergence [joint] (a)".
func Column(name string) string {
	var shape string
	rest := name
	for _, s := range []string{"_a", "_b"} {
		if r, ok := strings.CutSuffix(rest, s); ok && strings.Contains(r, "_beta_for_") {
			rest, shape = r, s[1:]
			break
		}
	}
	scaled := false
	if r, ok := strings.CutSuffix(rest, "_scaled"); ok {
		rest, scaled = r, true
	}
	for _, side := range []string{"prior", "posterior"} {
		if fam, ok := strings.CutPrefix(rest, side+"_beta_for_"); ok {
			rest = side + " beta for " + Family(fam)
			return decorate(rest, shape, scaled)
		}
	}
	return decorate(Family(rest), shape, scaled)
}

func decorate(s, shape string, scaled bool) string {
	if scaled {
		s += ", scaled"
	}
	if shape != "" {
		s += " (" + shape + ")"
	}
	return s
}
