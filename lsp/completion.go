package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/mongols/completion"
)

// Completion handles textDocument/completion requests.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return &protocol.CompletionList{Items: []protocol.CompletionItem{}}, nil
	}

	return s.complete(ctx, doc.Content, params.Position), nil
}

// complete resolves completions for a document snapshot.
func (s *Server) complete(ctx context.Context, text string, pos protocol.Position) *protocol.CompletionList {
	items := s.resolver.Complete(ctx, text, fromPosition(pos))

	s.logger.Debug("Completion",
		zap.Uint32("line", pos.Line),
		zap.Uint32("character", pos.Character),
		zap.Int("items", len(items)))

	list := &protocol.CompletionList{Items: make([]protocol.CompletionItem, 0, len(items))}
	for _, item := range items {
		list.Items = append(list.Items, convertItem(item))
	}

	return list
}

func convertItem(item completion.Item) protocol.CompletionItem {
	out := protocol.CompletionItem{
		Label:      item.Label,
		Kind:       protocol.CompletionItemKind(item.Kind),
		Detail:     item.Detail,
		FilterText: item.FilterText,
	}

	if item.Documentation != "" {
		out.Documentation = protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: item.Documentation,
		}
	}

	if item.TextEdit != nil {
		out.TextEdit = &protocol.TextEdit{
			Range:   toRange(item.TextEdit.Range),
			NewText: item.TextEdit.NewText,
		}
	}

	return out
}
