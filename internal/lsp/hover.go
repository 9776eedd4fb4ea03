package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/lsp/protocol"
	"github.com/shopware/php-typeinfer/internal/php"
)

const maxHoverExpression = 80

// hover handles textDocument/hover requests. It shows the candidate types of
// the innermost expression under the cursor.
func (s *Server) hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	result, err := s.expressionTypes(ctx, &protocol.ExpressionTypesParams{TextDocumentPositionParams: params.TextDocumentPositionParams})
	if err != nil {
		return nil, err
	}
	if result.Expression == "" || len(result.Types) == 0 {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: hoverMarkdown(result.Expression, result.Types),
		},
		Range: result.Range,
	}, nil
}

func hoverMarkdown(expression string, types []string) string {
	if idx := strings.IndexByte(expression, '\n'); idx >= 0 {
		expression = expression[:idx] + " …"
	}
	if runes := []rune(expression); len(runes) > maxHoverExpression {
		expression = string(runes[:maxHoverExpression]) + " …"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "```php\n%s\n```\n\n", expression)
	for _, t := range types {
		fmt.Fprintf(&sb, "- `%s`\n", displayType(t))
	}
	return sb.String()
}

// displayType prints class names fully qualified the way PHP code spells them.
func displayType(t string) string {
	if php.IsClassType(t) {
		return "\\" + t
	}
	return t
}

// expressionTypes handles php/expressionTypes requests
func (s *Server) expressionTypes(_ context.Context, params *protocol.ExpressionTypesParams) (*protocol.ExpressionTypesResult, error) {
	doc, ok := s.documentManager.GetDocument(params.TextDocument.URI)
	if !ok {
		return nil, fmt.Errorf("document not open: %s", params.TextDocument.URI)
	}

	offset := doc.Offset(params.Position)
	deducer := doc.Parsed.Deducer(s.metadata)
	result := &protocol.ExpressionTypesResult{Types: []string{}}

	id, types, err := deducer.DeduceAt(offset)
	if err != nil {
		return nil, err
	}
	if id != ast.None {
		tree := doc.Parsed.Tree
		meta := tree.Meta(id)
		result.Expression = tree.Text(id)
		result.Kind = ast.KindName(tree.Node(id))
		result.Range = &protocol.Range{
			Start: doc.Position(meta.Start),
			End:   doc.Position(meta.End),
		}
		if types != nil {
			result.Types = types
		}
	}

	if params.IncludeVariables {
		variables, err := deducer.ExpressionTypes(offset)
		if err != nil {
			return nil, err
		}
		result.Variables = variables
	}

	return result, nil
}
