package display

import "testing"

func TestFamily(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"kl", "Binary KL Divergence"},
		{"beta_kl", "Beta KL Divergence"},
		{"beta_kl_joint", "Beta KL Divergence [joint]"},
		{"pure_second_order_change", "Pure Second-Order Change"},
		{"joint", "Joint (all families)"},
		{"unknown", "unknown"},
		{"unknown_joint", "unknown_joint"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Family(tc.code); got != tc.want {
			t.Errorf("Family(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestFamilyWithCode(t *testing.T) {
	if got := FamilyWithCode("beta_kl"); got != "Beta KL Divergence (beta_kl)" {
		t.Errorf("got %q", got)
	}
	if got := FamilyWithCode("unknown"); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestObjectiveAndMode(t *testing.T) {
	if got := Objective("pearson_reg"); got != "Regularized Pearson" {
		t.Errorf("Objective(pearson_reg) = %q", got)
	}
	if got := Objective("bogus"); got != "bogus" {
		t.Errorf("Objective(bogus) = %q", got)
	}
	if got := Mode("both"); got != "Separate + Joint" {
		t.Errorf("Mode(both) = %q", got)
	}
}

func TestColumn(t *testing.T) {
	cases := []struct {
		name, want string
	}{
		{"kl", "Binary KL Divergence"},
		{"kl_scaled", "Binary KL Divergence, scaled"},
		{"beta_kl_joint", "Beta KL Divergence [joint]"},
		{"prior_beta_for_beta_kl_a", "prior beta for Beta KL Divergence (a)"},
		{"posterior_beta_for_beta_entropy_change_joint_b", "posterior beta for Beta Entropy Change [joint] (b)"},
		{"relevance_sliderResponse", "relevance_sliderResponse"},
	}
	for _, tc := range cases {
		if got := Column(tc.name); got != tc.want {
			t.Errorf("Column(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
