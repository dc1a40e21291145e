package analysis

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Node types of the tree-sitter JavaScript grammar.
const (
	nodeIdentifier          = "identifier"
	nodeMember              = "member_expression"
	nodeSubscript           = "subscript_expression"
	nodeCall                = "call_expression"
	nodeArguments           = "arguments"
	nodeString              = "string"
	nodeTemplateString      = "template_string"
	nodeTemplateSubstitute  = "template_substitution"
	nodeObject              = "object"
	nodePair                = "pair"
	nodeShorthandProperty   = "shorthand_property_identifier"
	nodeArray               = "array"
	nodeVariableDeclarator  = "variable_declarator"
	nodeExpressionStatement = "expression_statement"
	nodeComment             = "comment"
)

// cursorChainMethods return the cursor they are called on, so completion
// after them still offers cursor methods.
var cursorChainMethods = map[string]bool{
	"addOption":           true,
	"allowDiskUse":        true,
	"allowPartialResults": true,
	"batchSize":           true,
	"collation":           true,
	"comment":             true,
	"hint":                true,
	"limit":               true,
	"max":                 true,
	"maxAwaitTimeMS":      true,
	"maxTimeMS":           true,
	"min":                 true,
	"noCursorTimeout":     true,
	"projection":          true,
	"readConcern":         true,
	"readPref":            true,
	"returnKey":           true,
	"showRecordId":        true,
	"skip":                true,
	"sort":                true,
	"tailable":            true,
}

func checkUseCall(n *sitter.Node, w *walker) {
	if n.Type() != nodeCall || !isIdentifier(w, n.ChildByFieldName("function"), "use") {
		return
	}

	arg := singleArgument(n)
	if arg == nil {
		return
	}

	if _, ok := literalValue(w, arg, true); ok && w.hasSentinel(arg) {
		w.state.IsUseCallExpression = true
	}
}

func checkDatabaseName(n *sitter.Node, w *walker) {
	if n.Type() != nodeCall || !isIdentifier(w, n.ChildByFieldName("function"), "use") {
		return
	}

	arg := singleArgument(n)
	if arg == nil || arg.Type() != nodeString || w.hasSentinel(arg) {
		return
	}

	if !pointLessEq(n.EndPoint(), w.sel.start) {
		return
	}

	if name, ok := literalValue(w, arg, false); ok {
		w.state.DatabaseName = name
	}
}

// checkCollectionName captures the collection of a handle that is itself
// the object of a further member access: db.coll.find, db['coll'].find,
// db.getCollection('coll').find.
func checkCollectionName(n *sitter.Node, w *walker) {
	if n.Type() != nodeMember {
		return
	}

	if pointLess(w.sel.start, n.StartPoint()) {
		return
	}

	name, ok := collectionHandle(w, n.ChildByFieldName("object"))
	if !ok || strings.Contains(name, Sentinel) {
		return
	}

	w.state.CollectionName = name
}

func checkCollectionNamePosition(n *sitter.Node, w *walker) {
	switch n.Type() {
	case nodeMember:
		if isIdentifier(w, n.ChildByFieldName("object"), "db") && w.hasSentinel(n.ChildByFieldName("property")) {
			w.state.IsCollectionName = true
		}
	case nodeSubscript:
		index := n.ChildByFieldName("index")
		if isIdentifier(w, n.ChildByFieldName("object"), "db") && index != nil &&
			index.Type() == nodeString && w.hasSentinel(index) {
			w.state.IsCollectionName = true
		}
	case nodeCall:
		if !isDbMethod(w, n.ChildByFieldName("function"), "getCollection") {
			return
		}

		arg := singleArgument(n)
		if arg != nil && arg.Type() == nodeString && w.hasSentinel(arg) {
			w.state.IsCollectionName = true
		}
	}
}

func checkShellMethod(n *sitter.Node, w *walker) {
	if n.Type() != nodeMember || !w.hasSentinel(n.ChildByFieldName("property")) {
		return
	}

	name, ok := collectionHandle(w, n.ChildByFieldName("object"))
	if ok && !strings.Contains(name, Sentinel) {
		w.state.IsShellMethod = true
	}
}

func checkCursorMethod(n *sitter.Node, w *walker) {
	if n.Type() != nodeMember || !w.hasSentinel(n.ChildByFieldName("property")) {
		return
	}

	switch cursorSource(w, n.ChildByFieldName("object")) {
	case "find":
		w.state.IsFindCursor = true
	case "aggregate":
		w.state.IsAggregationCursor = true
	}
}

// checkDbCall matches a statement that is exactly db.<cursor>, including
// the dot on the next line or after whitespace.
func checkDbCall(n *sitter.Node, w *walker) {
	if n.Type() != nodeExpressionStatement {
		return
	}

	expr := firstNamedChild(n)
	if expr == nil || expr.Type() != nodeMember {
		return
	}

	if isIdentifier(w, expr.ChildByFieldName("object"), "db") && w.hasSentinel(expr.ChildByFieldName("property")) {
		w.state.IsDbCallExpression = true
	}
}

func checkObjectKey(n *sitter.Node, w *walker) {
	if n.Type() != nodeObject {
		return
	}

	for _, child := range namedChildren(n) {
		var key *sitter.Node

		switch child.Type() {
		case nodePair:
			key = child.ChildByFieldName("key")
		case nodeShorthandProperty:
			key = child
		default:
			continue
		}

		if !w.hasSentinel(key) {
			continue
		}

		w.state.IsObjectKey = true

		if isPipelineStage(w, n) {
			w.state.IsStage = true
		}
	}
}

// checkBSONSelection marks whether the object or array literal directly at
// the selection is an object or an array.
func checkBSONSelection(n *sitter.Node, w *walker) {
	switch n.Type() {
	case nodeArray:
		if w.surrounds(n) {
			for _, el := range namedChildren(n) {
				markLiteralWithin(w, el)
			}
		}
	case nodeCall:
		args := n.ChildByFieldName("arguments")
		if args != nil && w.surrounds(n) {
			for _, arg := range namedChildren(args) {
				markLiteralWithin(w, arg)
			}
		}
	case nodeVariableDeclarator:
		name, value := n.ChildByFieldName("name"), n.ChildByFieldName("value")
		if name != nil && value != nil && w.endsBefore(name.EndPoint()) {
			markLiteralWithin(w, value)
		}
	case nodePair:
		key, value := n.ChildByFieldName("key"), n.ChildByFieldName("value")
		if key != nil && value != nil && w.endsBefore(key.EndPoint()) {
			markLiteralWithin(w, value)
		}
	}
}

func markLiteralWithin(w *walker, n *sitter.Node) {
	if !w.within(n) {
		return
	}

	switch n.Type() {
	case nodeObject:
		w.state.IsObject = true
	case nodeArray:
		w.state.IsArray = true
	}
}

func checkGlobalSymbol(n *sitter.Node, w *walker) {
	if n.Type() != nodeExpressionStatement {
		return
	}

	expr := firstNamedChild(n)
	if expr != nil && expr.Type() == nodeIdentifier && w.hasSentinel(expr) {
		w.state.IsGlobalSymbol = true
	}
}

func checkStreamProcessor(n *sitter.Node, w *walker) {
	if n.Type() != nodeMember || !w.hasSentinel(n.ChildByFieldName("property")) {
		return
	}

	object := n.ChildByFieldName("object")
	if isIdentifier(w, object, "sp") {
		w.state.IsStreamProcessorName = true

		return
	}

	if object != nil && object.Type() == nodeMember &&
		isIdentifier(w, object.ChildByFieldName("object"), "sp") &&
		!w.hasSentinel(object.ChildByFieldName("property")) {
		w.state.IsStreamProcessorMethod = true
	}
}

func checkSystemVariable(n *sitter.Node, w *walker) {
	if n.Type() != nodeString || !w.hasSentinel(n) {
		return
	}

	if value, ok := literalValue(w, n, false); ok && strings.HasPrefix(value, "$$") {
		w.state.IsSystemVariable = true
	}
}

// collectionHandle returns the collection name when n is db.<ident>,
// db['name'] or db.getCollection('name').
func collectionHandle(w *walker, n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}

	switch n.Type() {
	case nodeMember:
		property := n.ChildByFieldName("property")
		if isIdentifier(w, n.ChildByFieldName("object"), "db") && property != nil {
			return w.text(property), true
		}
	case nodeSubscript:
		index := n.ChildByFieldName("index")
		if isIdentifier(w, n.ChildByFieldName("object"), "db") && index != nil && index.Type() == nodeString {
			return literalValue(w, index, false)
		}
	case nodeCall:
		if !isDbMethod(w, n.ChildByFieldName("function"), "getCollection") {
			return "", false
		}

		if arg := singleArgument(n); arg != nil && arg.Type() == nodeString {
			return literalValue(w, arg, false)
		}
	}

	return "", false
}

// cursorSource follows a call chain through cursor-preserving methods and
// returns the method that produced the cursor ("find", "aggregate", ...).
func cursorSource(w *walker, n *sitter.Node) string {
	for n != nil && n.Type() == nodeCall {
		callee := n.ChildByFieldName("function")
		if callee == nil || callee.Type() != nodeMember {
			return ""
		}

		method := w.text(callee.ChildByFieldName("property"))
		if !cursorChainMethods[method] {
			return method
		}

		n = callee.ChildByFieldName("object")
	}

	return ""
}

// isPipelineStage reports whether object is an element of the pipeline
// array passed to aggregate().
func isPipelineStage(w *walker, object *sitter.Node) bool {
	array := object.Parent()
	if array == nil || array.Type() != nodeArray {
		return false
	}

	args := array.Parent()
	if args == nil || args.Type() != nodeArguments {
		return false
	}

	call := args.Parent()
	if call == nil || call.Type() != nodeCall {
		return false
	}

	callee := call.ChildByFieldName("function")

	return callee != nil && callee.Type() == nodeMember &&
		w.text(callee.ChildByFieldName("property")) == "aggregate"
}

func isIdentifier(w *walker, n *sitter.Node, name string) bool {
	return n != nil && n.Type() == nodeIdentifier && w.text(n) == name
}

func isDbMethod(w *walker, n *sitter.Node, method string) bool {
	return n != nil && n.Type() == nodeMember &&
		isIdentifier(w, n.ChildByFieldName("object"), "db") &&
		w.text(n.ChildByFieldName("property")) == method
}

// literalValue returns the unquoted value of a string literal, or of a
// template literal without substitutions when templates is set.
func literalValue(w *walker, n *sitter.Node, templates bool) (string, bool) {
	switch n.Type() {
	case nodeString:
	case nodeTemplateString:
		if !templates {
			return "", false
		}

		for _, child := range namedChildren(n) {
			if child.Type() == nodeTemplateSubstitute {
				return "", false
			}
		}
	default:
		return "", false
	}

	text := w.text(n)
	if len(text) < 2 {
		return "", false
	}

	return text[1 : len(text)-1], true
}

func singleArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != nodeArguments {
		return nil
	}

	children := namedChildren(args)
	if len(children) != 1 {
		return nil
	}

	return children[0]
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}

	return children[0]
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	children := make([]*sitter.Node, 0, count)

	for i := range count {
		child := n.NamedChild(i)
		if child == nil || child.Type() == nodeComment {
			continue
		}

		children = append(children, child)
	}

	return children
}
