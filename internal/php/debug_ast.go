package php

import (
	"fmt"
	"io"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// DumpCST writes the named nodes of a tree-sitter tree, one per line. Leaf
// nodes show their text, declarations the named fields the extractor reads.
func DumpCST(w io.Writer, node *tree_sitter.Node, content []byte) {
	dumpCSTNode(w, node, content, 0)
}

var dumpedFields = map[string][]string{
	"method_declaration":           {"name", "return_type", "parameters"},
	"function_definition":          {"name", "return_type"},
	"property_declaration":         {"type"},
	"property_promotion_parameter": {"name", "type"},
	"simple_parameter":             {"name", "type"},
	"const_declaration":            {"type"},
}

func dumpCSTNode(w io.Writer, node *tree_sitter.Node, content []byte, depth int) {
	if node == nil {
		return
	}
	indent := strings.Repeat("  ", depth)

	if node.NamedChildCount() == 0 {
		_, _ = fmt.Fprintf(w, "%s%s %q [%d:%d]\n", indent, node.Kind(), node.Utf8Text(content),
			node.StartPosition().Row+1, node.StartPosition().Column)
	} else {
		_, _ = fmt.Fprintf(w, "%s%s [%d:%d]\n", indent, node.Kind(), node.StartPosition().Row+1, node.StartPosition().Column)
	}

	for _, field := range dumpedFields[node.Kind()] {
		if child := node.ChildByFieldName(field); child != nil {
			_, _ = fmt.Fprintf(w, "%s  .%s = %s\n", indent, field, child.Utf8Text(content))
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		dumpCSTNode(w, node.NamedChild(i), content, depth+1)
	}
}
