package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"beliefshift/internal/trial"
)

// Filter is a compiled boolean row predicate such as
//
//	ContextType == "polar" && posterior_confidence >= 0.5
//
// Fields are addressed by column name. Numeric cells (JSON numbers and CSV
// strings that parse as floats) are compared as numbers; absent fields are
// nil.
type Filter struct {
	src     string
	program *vm.Program
}

// CompileFilter parses src. An empty src yields a nil filter that keeps
// every row.
func CompileFilter(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	p, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return &Filter{src: src, program: p}, nil
}

func (f *Filter) String() string { return f.src }

// Match evaluates the predicate against one record.
func (f *Filter) Match(fields map[string]any) (bool, error) {
	env := make(map[string]any, len(fields))
	for k, v := range fields {
		env[k] = filterValue(v)
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.src, out)
	}
	return ok, nil
}

func filterValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return v
}

// Where returns a table holding the rows f keeps, in order. A nil filter
// returns t unchanged.
func (t *Table) Where(f *Filter) (*Table, error) {
	if f == nil {
		return t, nil
	}
	out := &Table{Header: t.Header}
	for i, row := range t.Rows {
		ok, err := f.Match(row)
		if err != nil {
			return nil, &trial.RowError{Row: i, Err: err}
		}
		if ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
