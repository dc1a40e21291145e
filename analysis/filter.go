package analysis

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled boolean expression over a diagnostic, e.g.
// `code == "invalidInteractiveSyntaxes" && line > 3`.
type Filter struct {
	source  string
	program *vm.Program
}

// filterEnv is the environment filter expressions are evaluated against.
// Line and character are one-based.
type filterEnv struct {
	Line      int    `expr:"line"`
	Character int    `expr:"character"`
	Severity  string `expr:"severity"`
	Source    string `expr:"source"`
	Code      string `expr:"code"`
	Message   string `expr:"message"`
	Fix       string `expr:"fix"`
}

// CompileFilter compiles a filter expression. The expression must evaluate
// to a boolean.
func CompileFilter(source string) (*Filter, error) {
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("analysis: invalid filter %q: %w", source, err)
	}

	return &Filter{source: source, program: program}, nil
}

// String returns the filter source.
func (f *Filter) String() string {
	return f.source
}

// Match reports whether d satisfies the filter.
func (f *Filter) Match(d Diagnostic) (bool, error) {
	out, err := expr.Run(f.program, filterEnv{
		Line:      d.Range.Start.Line + 1,
		Character: d.Range.Start.Character + 1,
		Severity:  d.Severity.String(),
		Source:    d.Source,
		Code:      d.Code,
		Message:   d.Message,
		Fix:       d.Fix,
	})
	if err != nil {
		return false, fmt.Errorf("analysis: evaluate filter %q: %w", f.source, err)
	}

	ok, _ := out.(bool)

	return ok, nil
}

// Apply returns the diagnostics that satisfy the filter. A nil filter keeps all.
func (f *Filter) Apply(diagnostics []Diagnostic) ([]Diagnostic, error) {
	if f == nil {
		return diagnostics, nil
	}

	kept := diagnostics[:0:0]

	for _, d := range diagnostics {
		ok, err := f.Match(d)
		if err != nil {
			return nil, err
		}

		if ok {
			kept = append(kept, d)
		}
	}

	return kept, nil
}
