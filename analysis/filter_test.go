package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/mongols/analysis"
)

func TestCompileFilter(t *testing.T) {
	t.Parallel()

	diags := analysis.Scan("use a\nshow dbs\nshow tables\nuse b")
	require.Len(t, diags, 4)

	tests := []struct {
		name  string
		expr  string
		lines []int
	}{
		{name: "always", expr: "true", lines: []int{1, 2, 3, 4}},
		{name: "by line", expr: "line > 2", lines: []int{3, 4}},
		{name: "by fix", expr: `fix startsWith "use("`, lines: []int{1, 4}},
		{name: "by message", expr: `message contains "getCollectionNames"`, lines: []int{3}},
		{name: "by severity and code", expr: `severity == "error" && code == "invalidInteractiveSyntaxes"`, lines: []int{1, 2, 3, 4}},
		{name: "by column", expr: "character != 1", lines: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := analysis.CompileFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, f.String())

			kept, err := f.Apply(diags)
			require.NoError(t, err)

			var lines []int
			for _, d := range kept {
				lines = append(lines, d.Range.Start.Line+1)
			}

			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	t.Parallel()

	_, err := analysis.CompileFilter("line +")
	require.Error(t, err)

	_, err = analysis.CompileFilter("line + 1")
	require.Error(t, err, "non-boolean expressions are rejected")

	_, err = analysis.CompileFilter("unknown == 1")
	require.Error(t, err)
}

func TestFilter_NilKeepsAll(t *testing.T) {
	t.Parallel()

	var f *analysis.Filter

	diags := analysis.Scan("show dbs")
	kept, err := f.Apply(diags)
	require.NoError(t, err)
	assert.Equal(t, diags, kept)
}
