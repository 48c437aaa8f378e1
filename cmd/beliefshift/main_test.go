package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTrials writes n JSONL trials whose relevance grows with the size of
// the belief update.
func writeTrials(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		fmt.Fprintf(&b, `{"StimID":"s%d","ContextType":"%s","prior_sliderResponse":0.5,"posterior_sliderResponse":%g,"prior_confidence":0.3,"posterior_confidence":%g,"relevance_sliderResponse":%g}`+"\n",
			i%3, []string{"a", "b"}[i%2], 0.5+0.4*x, 0.3+0.6*x, x)
	}
	path := filepath.Join(dir, "train.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func runID(t *testing.T, stderr string) string {
	t.Helper()
	for _, line := range strings.Split(stderr, "\n") {
		if id, ok := strings.CutPrefix(line, "run "); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no run id in stderr:\n%s", stderr)
	return ""
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestCalibrate_StoresRunAndApplies(t *testing.T) {
	dir := t.TempDir()
	train := writeTrials(t, dir, 12)
	db := filepath.Join(dir, "runs.db")
	scored := filepath.Join(dir, "scored.jsonl")
	metrics := filepath.Join(dir, "run.prom")

	stdout, stderr, err := execute(t, "calibrate",
		"--training", train, "--families", "beta_kl", "--max-evaluations", "150",
		"--db", db, "--metrics-file", metrics,
		"--input", train, "--output", scored)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Calibration Report")
	assert.Contains(t, stdout, "beta_kl")
	id := runID(t, stderr)

	recs := readRecords(t, scored)
	require.Len(t, recs, 12)
	for _, key := range []string{"StimID", "kl", "kl_scaled", "beta_kl", "beta_kl_scaled", "prior_beta_for_beta_kl_a"} {
		assert.Contains(t, recs[0], key)
	}
	assert.NotContains(t, recs[0], "beta_kl_joint")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `beliefshift_run_duration_seconds{kind="calibrate"}`)

	stdout, _, err = execute(t, "runs", "--db", db, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "calibrate")

	stdout, _, err = execute(t, "runs", "show", id, "--db", db, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, stdout, "beta_kl,separate")

	reapplied := filepath.Join(dir, "reapplied.csv")
	_, _, err = execute(t, "apply", "--input", train, "--output", reapplied, "--run", id, "--db", db, "--families", "beta_kl")
	require.NoError(t, err)
	data, err := os.ReadFile(reapplied)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Contains(t, header, "beta_kl_scaled")
	assert.NotContains(t, header, "entropy_change")
}

func TestGrid_SavesRun(t *testing.T) {
	dir := t.TempDir()
	train := writeTrials(t, dir, 10)
	db := filepath.Join(dir, "runs.db")

	stdout, stderr, err := execute(t, "grid", "--training", train, "--db", db, "--format", "csv",
		"--families", "beta_kl,beta_entropy_change",
		"--scale", "values:3,4", "--growth", "values:2", "--compression", "values:2", "--top", "0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.EqualFold(lines[0], "rank,index,a,b,r,avg,beta_kl,beta_entropy_change"), lines[0])

	id := runID(t, stderr)
	_, _, err = execute(t, "apply", "--input", train, "--output", filepath.Join(dir, "x.jsonl"), "--run", id, "--db", db)
	assert.ErrorContains(t, err, "apply needs a calibrate run")

	stdout, _, err = execute(t, "runs", "show", id, "--db", db, "--format", "csv")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 3)
}

func TestApply_DefaultsAndSummarize(t *testing.T) {
	dir := t.TempDir()
	train := writeTrials(t, dir, 9)
	scored := filepath.Join(dir, "scored.jsonl")

	_, _, err := execute(t, "apply", "--input", train, "--output", scored, "--no-rescale")
	require.NoError(t, err)
	recs := readRecords(t, scored)
	require.Len(t, recs, 9)
	assert.Contains(t, recs[0], "pure_second_order_change")
	assert.NotContains(t, recs[0], "kl_scaled")

	ranked := filepath.Join(dir, "ranked.jsonl")
	stdout, _, err := execute(t, "summarize", "--input", scored, "--output", ranked,
		"--group-by", "ContextType", "--columns", "kl,beta_kl", "--rank", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	// header plus two groups times four described columns
	assert.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[1], "a,kl,"), lines[1])

	out := readRecords(t, ranked)
	require.Len(t, out, 9)
	for _, key := range []string{"relevance_sliderResponse_rank", "kl_rank", "kl_rank_diff", "beta_kl_mean"} {
		assert.Contains(t, out[0], key)
	}
}

func TestSummarize_DefaultColumnsFromHeader(t *testing.T) {
	dir := t.TempDir()
	scored := filepath.Join(dir, "scored.csv")
	require.NoError(t, os.WriteFile(scored, []byte("StimID,beta_kl,beta_kl_joint,note\ns1,0.1,0.2,x\ns2,0.3,0.4,y\n"), 0o644))

	stdout, _, err := execute(t, "summarize", "--input", scored, "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "s1,beta_kl,1,"), lines[1])
	assert.NotContains(t, stdout, "note")
}

func TestFamilies(t *testing.T) {
	stdout, _, err := execute(t, "families", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, stdout, "beta_bayes_factor_utility")
	assert.Contains(t, stdout, "Pure Second-Order Change")
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	train := writeTrials(t, dir, 4)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing training", []string{"calibrate"}, "training"},
		{"input without output", []string{"calibrate", "--training", train, "--input", train}, "--output is required"},
		{"grid mode", []string{"calibrate", "--training", train, "--mode", "grid"}, "grid command"},
		{"unknown family", []string{"apply", "--input", train, "--output", filepath.Join(dir, "o.jsonl"), "--families", "nope"}, "unknown metric family"},
		{"bad axis", []string{"grid", "--training", train, "--scale", "cubic:1:2:3"}, "--scale"},
		{"bad format", []string{"families", "--format", "yaml"}, "yaml"},
		{"missing group column", []string{"summarize", "--input", train, "--group-by", "Nope", "--columns", "relevance_sliderResponse"}, "Nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply_WhereFiltersRows(t *testing.T) {
	dir := t.TempDir()
	train := writeTrials(t, dir, 9)
	scored := filepath.Join(dir, "scored.jsonl")

	_, _, err := execute(t, "apply", "--input", train, "--output", scored,
		"--families", "kl", "--where", `ContextType == "b" && posterior_confidence > 0.3`)
	require.NoError(t, err)
	recs := readRecords(t, scored)
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.Equal(t, "b", r["ContextType"])
	}

	_, _, err = execute(t, "apply", "--input", train, "--output", scored, "--where", "ContextType ==")
	assert.ErrorContains(t, err, "where")
}
