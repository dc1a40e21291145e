package lsp

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/protocol"

	"github.com/rlch/mongols/analysis"
)

// Code action titles.
const (
	titleFixOne = "Fix this interactive syntax problem"
	titleFixAll = "Fix all interactive syntax problems"
)

// CodeAction handles textDocument/codeAction requests. Every legacy-syntax
// diagnostic in the request gets a quick fix; when the document has more
// than one, a fix-all action is added.
func (s *Server) CodeAction(_ context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	actions := []protocol.CodeAction{}
	docURI := params.TextDocument.URI

	for _, d := range params.Context.Diagnostics {
		fix, ok := diagnosticFix(d)
		if !ok {
			continue
		}

		actions = append(actions, protocol.CodeAction{
			Title:       titleFixOne,
			Kind:        protocol.QuickFix,
			Diagnostics: []protocol.Diagnostic{d},
			IsPreferred: true,
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentURI][]protocol.TextEdit{
					docURI: {{Range: d.Range, NewText: fix}},
				},
			},
		})
	}

	if len(actions) == 0 {
		return actions, nil
	}

	doc, ok := s.getDocument(docURI)
	if !ok || len(doc.Diagnostics) < 2 {
		return actions, nil
	}

	edits := make([]protocol.TextEdit, 0, len(doc.Diagnostics))
	diagnostics := make([]protocol.Diagnostic, 0, len(doc.Diagnostics))

	for _, d := range doc.Diagnostics {
		edits = append(edits, protocol.TextEdit{Range: toRange(d.Range), NewText: d.Fix})
		diagnostics = append(diagnostics, convertDiagnostic(d))
	}

	actions = append(actions, protocol.CodeAction{
		Title:       titleFixAll,
		Kind:        protocol.QuickFix,
		Diagnostics: diagnostics,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{docURI: edits},
		},
	})

	return actions, nil
}

// diagnosticFix extracts the replacement text from a diagnostic this
// server published. The client round-trips Data as untyped JSON.
func diagnosticFix(d protocol.Diagnostic) (string, bool) {
	if d.Source != analysis.DiagnosticSource || fmt.Sprint(d.Code) != analysis.CodeInvalidInteractiveSyntaxes {
		return "", false
	}

	raw, err := json.Marshal(d.Data)
	if err != nil {
		return "", false
	}

	var data diagnosticData
	if err := json.Unmarshal(raw, &data); err != nil || data.Fix == "" {
		return "", false
	}

	return data.Fix, true
}
