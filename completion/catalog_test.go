package completion //nolint:testpackage // Exercises unexported rendering helpers.

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/rlch/mongols/analysis"
)

func TestIsValidPropertyName(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"cocktailbars": true,
		"$system":      true,
		"_id":          true,
		"coll2":        true,
		"":             false,
		"2coll":        false,
		"coll-name":    false,
		"coll.name":    false,
		"coll name":    false,
		"straße":       false,
	}

	for name, want := range tests {
		assert.Equal(t, want, isValidPropertyName(name), "name %q", name)
	}
}

func TestCollectionItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		line  string
		pos   analysis.Position
		want  []Item
	}{
		{
			name:  "valid names are plain",
			names: []string{"orders"},
			line:  "db.",
			pos:   analysis.Position{Character: 3},
			want:  []Item{{Label: "orders", Kind: KindFolder}},
		},
		{
			name:  "quotes are escaped",
			names: []string{"it's"},
			line:  "db.",
			pos:   analysis.Position{Line: 2, Character: 3},
			want: []Item{{
				Label:      "it's",
				Kind:       KindFolder,
				FilterText: "db.it's",
				TextEdit: &TextEdit{
					Range: analysis.Selection{
						Start: analysis.Position{Line: 2},
						End:   analysis.Position{Line: 2, Character: 3},
					},
					NewText: `db['it\'s']`,
				},
			}},
		},
		{
			name:  "wide characters before cursor",
			names: []string{"a-b"},
			line:  "/* 😀 */ db.x",
			pos:   analysis.Position{Character: 12},
			want: []Item{{
				Label:      "a-b",
				Kind:       KindFolder,
				FilterText: "/* 😀 */ db.a-bx",
				TextEdit: &TextEdit{
					Range: analysis.Selection{
						End: analysis.Position{Character: 13},
					},
					NewText: "/* 😀 */ db['a-b']x",
				},
			}},
		},
		{
			name:  "typed prefix is replaced",
			names: []string{"my-coll"},
			line:  "db.my",
			pos:   analysis.Position{Character: 5},
			want: []Item{{
				Label:      "my-coll",
				Kind:       KindFolder,
				FilterText: "db.my-coll",
				TextEdit: &TextEdit{
					Range:   analysis.Selection{End: analysis.Position{Character: 5}},
					NewText: "db['my-coll']",
				},
			}},
		},
		{
			name:  "typed prefix with a chain after the cursor",
			names: []string{"my-coll"},
			line:  "x = db.my.find()",
			pos:   analysis.Position{Character: 9},
			want: []Item{{
				Label:      "my-coll",
				Kind:       KindFolder,
				FilterText: "x = db.my-coll.find()",
				TextEdit: &TextEdit{
					Range:   analysis.Selection{End: analysis.Position{Character: 16}},
					NewText: "x = db['my-coll'].find()",
				},
			}},
		},
		{
			name:  "subscript string is not rewritten",
			names: []string{"my-coll"},
			line:  "db['']",
			pos:   analysis.Position{Character: 4},
			want:  []Item{{Label: "my-coll", Kind: KindFolder}},
		},
		{
			name:  "getCollection argument is not rewritten",
			names: []string{"my-coll"},
			line:  "db.getCollection('my')",
			pos:   analysis.Position{Character: 20},
			want:  []Item{{Label: "my-coll", Kind: KindFolder}},
		},
		{
			name: "no names",
			line: "db.",
			pos:  analysis.Position{Character: 3},
			want: []Item{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := collectionItems(tt.names, tt.line, tt.pos)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("collectionItems() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Item{}, clone(nil))

	src := []Item{{Label: "find"}}
	dst := clone(src)
	dst[0].Label = "changed"
	assert.Equal(t, "find", src[0].Label)
}
