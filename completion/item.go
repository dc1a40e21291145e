package completion

import "github.com/rlch/mongols/analysis"

// Kind is a completion item kind. Values match the LSP CompletionItemKind
// numbering so they convert without a table.
type Kind int

// Item kinds.
const (
	KindMethod   Kind = 2
	KindFunction Kind = 3
	KindField    Kind = 5
	KindVariable Kind = 6
	KindModule   Kind = 9
	KindKeyword  Kind = 14
	KindFolder   Kind = 19
	KindConstant Kind = 21
)

// TextEdit replaces Range with NewText when the item is accepted.
type TextEdit struct {
	Range   analysis.Selection
	NewText string
}

// Item is one completion candidate.
type Item struct {
	Label string
	Kind  Kind

	// Detail is a short example of the candidate in use.
	Detail string

	// Documentation is Markdown.
	Documentation string

	FilterText string
	TextEdit   *TextEdit
}
