// Package analysis implements static analysis of MongoDB playground scripts:
// cursor-state resolution for completion, selection classification, and
// diagnostics for legacy interactive shell syntax.
package analysis

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.uber.org/zap"
)

// Visitor resolves a CompletionState from playground text.
// It is safe for concurrent use; every call parses with its own parser.
type Visitor struct {
	logger *zap.Logger
}

// NewVisitor creates a Visitor. A nil logger disables logging.
func NewVisitor(logger *zap.Logger) *Visitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Visitor{logger: logger}
}

// ResolveAt prepares text for the cursor at pos and resolves its state.
func (v *Visitor) ResolveAt(ctx context.Context, text string, pos Position) CompletionState {
	prepared := Prepare(text, pos)

	return v.Resolve(ctx, prepared.Text, prepared.Cursor)
}

// Resolve parses text and walks it once, running every check on every node.
// Unparseable input yields the zero CompletionState.
func (v *Visitor) Resolve(ctx context.Context, text string, sel Selection) CompletionState {
	src := []byte(text)

	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		v.logger.Debug("parse failed", zap.Error(err))

		return CompletionState{}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		v.logger.Debug("source has syntax errors, using default completion state")

		return CompletionState{}
	}

	w := &walker{
		src: src,
		sel: toSpan(strings.Split(text, "\n"), sel),
	}
	w.visit(root)

	v.logger.Debug("resolved completion state", zap.Any("state", w.state))

	return w.state
}

// ExportMode classifies the selected text as a query, an aggregation or neither.
func (v *Visitor) ExportMode(ctx context.Context, text string, sel Selection) ExportMode {
	return v.Resolve(ctx, text, sel).Mode()
}

// NamespaceForSelection returns the database and collection in effect at sel.
func (v *Visitor) NamespaceForSelection(ctx context.Context, text string, sel Selection) (database, collection string) {
	state := v.Resolve(ctx, text, sel)

	return state.DatabaseName, state.CollectionName
}

// check is one independent predicate over a node. Checks never short-circuit
// each other; the last node that satisfies a check decides its flag.
type check func(n *sitter.Node, w *walker)

var checks = []check{
	checkUseCall,
	checkDatabaseName,
	checkCollectionName,
	checkCollectionNamePosition,
	checkShellMethod,
	checkCursorMethod,
	checkDbCall,
	checkObjectKey,
	checkBSONSelection,
	checkGlobalSymbol,
	checkStreamProcessor,
	checkSystemVariable,
}

// walker accumulates state during a single pre-order traversal.
type walker struct {
	src   []byte
	sel   span
	state CompletionState
}

func (w *walker) visit(n *sitter.Node) {
	for _, c := range checks {
		c(n, w)
	}

	for i := range int(n.NamedChildCount()) {
		w.visit(n.NamedChild(i))
	}
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}

	return n.Content(w.src)
}

func (w *walker) hasSentinel(n *sitter.Node) bool {
	return n != nil && strings.Contains(w.text(n), Sentinel)
}

// surrounds reports whether n strictly encloses the selection.
func (w *walker) surrounds(n *sitter.Node) bool {
	return pointLess(n.StartPoint(), w.sel.start) && pointLess(w.sel.end, n.EndPoint())
}

// within reports whether n lies on the selection's lines and inside its columns.
func (w *walker) within(n *sitter.Node) bool {
	start, end := n.StartPoint(), n.EndPoint()

	return start.Row == w.sel.start.Row &&
		end.Row == w.sel.end.Row &&
		start.Column >= w.sel.start.Column &&
		end.Column <= w.sel.end.Column
}

// endsBefore reports whether p precedes the selection start.
func (w *walker) endsBefore(p sitter.Point) bool {
	return pointLess(p, w.sel.start)
}
