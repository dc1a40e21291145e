package completion

import (
	"regexp"
	"slices"
	"strings"

	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/shellapi"
)

// catalogs holds the fixed shell API items, built once per Resolver.
type catalogs struct {
	database          []Item
	collection        []Item
	cursor            []Item
	aggregationCursor []Item
	streams           []Item
	streamProcessor   []Item
	stages            []Item
	systemVariables   []Item
	globals           []Item
}

func newCatalogs(api *shellapi.Signatures) catalogs {
	return catalogs{
		database:          entryItems(api.Database, KindMethod),
		collection:        entryItems(api.Collection, KindMethod),
		cursor:            entryItems(api.Cursor, KindMethod),
		aggregationCursor: entryItems(api.AggregationCursor, KindMethod),
		streams:           entryItems(api.Streams, KindMethod),
		streamProcessor:   entryItems(api.StreamProcessor, KindMethod),
		stages:            entryItems(api.Stages, KindKeyword),
		systemVariables:   entryItems(api.SystemVariables, KindConstant),
		globals: append(
			entryItems(api.Globals, KindModule),
			entryItems(api.BSON, KindFunction)...,
		),
	}
}

func entryItems(entries []shellapi.Entry, kind Kind) []Item {
	items := make([]Item, 0, len(entries))

	for _, e := range entries {
		items = append(items, Item{
			Label:         e.Name,
			Kind:          kind,
			Detail:        e.Example,
			Documentation: e.Documentation(),
		})
	}

	return items
}

func nameItems(names []string, kind Kind) []Item {
	items := make([]Item, 0, len(names))

	for _, name := range names {
		items = append(items, Item{Label: name, Kind: kind})
	}

	return items
}

func clone(items []Item) []Item {
	if items == nil {
		return []Item{}
	}

	return slices.Clone(items)
}

var propertyName = regexp.MustCompile(`^[a-zA-Z0-9$_]+$`)

// isValidPropertyName reports whether name can follow `db.` unquoted.
func isValidPropertyName(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}

	return propertyName.MatchString(name)
}

// collectionItems renders collection names for the cursor at pos on line.
// After db.<prefix>, names that are not valid property names rewrite the
// line so the member access becomes a bracket access: db.my<cursor> turns
// into db['my-coll'], keeping the text on both sides. Inside db['...'] and
// db.getCollection('...') the name is already quoted and needs no edit.
func collectionItems(names []string, line string, pos analysis.Position) []Item {
	items := make([]Item, 0, len(names))

	before, after := analysis.SplitAt(line, pos.Character)
	dot, member := memberAccessStart(before)

	for _, name := range names {
		item := Item{Label: name, Kind: KindFolder}

		if member && !isValidPropertyName(name) {
			item.FilterText = before[:dot] + "." + name + after
			item.TextEdit = &TextEdit{
				Range: analysis.Selection{
					Start: analysis.Position{Line: pos.Line, Character: 0},
					End:   analysis.Position{Line: pos.Line, Character: analysis.UTF16Len(line)},
				},
				NewText: before[:dot] + "['" + quote(name) + "']" + after,
			}
		}

		items = append(items, item)
	}

	return items
}

// memberAccessStart returns the byte offset of the `.` that precedes the
// property prefix at the end of before. ok is false when the prefix is not
// a member access, e.g. inside a string literal.
func memberAccessStart(before string) (dot int, ok bool) {
	i := len(before)
	for i > 0 && isPropertyByte(before[i-1]) {
		i--
	}

	if i == 0 || before[i-1] != '.' {
		return 0, false
	}

	return i - 1, true
}

func isPropertyByte(b byte) bool {
	return b == '$' || b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(name string) string {
	return quoteReplacer.Replace(name)
}
