package php

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// UseStatement is one imported name.
type UseStatement struct {
	Alias     string
	Name      string
	Kind      SymbolKind
	Line      int
	Namespace int
}

// NamespaceSpan is the line range a namespace declaration covers. EndLine is
// zero when the namespace runs to the end of the file.
type NamespaceSpan struct {
	Name      string
	StartLine int
	EndLine   int
}

// FileSymbols holds the namespace and import layout of one file. Names are
// resolved against it by line.
type FileSymbols struct {
	Namespaces []NamespaceSpan
	Uses       []UseStatement
}

// CollectFileSymbols reads namespace declarations and use statements from a
// parsed file.
func CollectFileSymbols(root *tree_sitter.Node, content []byte) *FileSymbols {
	fs := &FileSymbols{}
	if root == nil {
		return fs
	}
	fs.collect(root, content, -1)

	// Braceless namespaces run until the next namespace declaration
	for i := range fs.Namespaces {
		if fs.Namespaces[i].EndLine == 0 && i+1 < len(fs.Namespaces) {
			fs.Namespaces[i].EndLine = fs.Namespaces[i+1].StartLine - 1
		}
	}

	return fs
}

func (fs *FileSymbols) collect(node *tree_sitter.Node, content []byte, current int) int {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "namespace_definition":
			span := NamespaceSpan{
				StartLine: int(child.StartPosition().Row) + 1,
			}
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				span.Name = strings.Trim(nameNode.Utf8Text(content), "\\")
			}
			body := child.ChildByFieldName("body")
			if body != nil {
				span.EndLine = int(child.EndPosition().Row) + 1
			}
			fs.Namespaces = append(fs.Namespaces, span)
			index := len(fs.Namespaces) - 1
			if body != nil {
				fs.collect(body, content, index)
			} else {
				current = index
			}

		case "namespace_use_declaration":
			fs.Uses = append(fs.Uses, parseUseDeclaration(child, content, current)...)
		}
	}
	return current
}

func useKind(node *tree_sitter.Node, fallback SymbolKind) SymbolKind {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch strings.ToLower(child.Kind()) {
		case "function":
			return SymbolFunction
		case "const":
			return SymbolConstant
		}
	}
	return fallback
}

func parseUseDeclaration(node *tree_sitter.Node, content []byte, namespace int) []UseStatement {
	var uses []UseStatement
	kind := useKind(node, SymbolClass)
	line := int(node.StartPosition().Row) + 1

	// Group use statement (e.g., use Symfony\Component\{HttpFoundation\Request, ...})
	prefixNode := findChildByKind(node, "namespace_name")
	if prefixNode == nil {
		prefixNode = findChildByKind(node, "namespace_name_as_prefix")
	}
	groupNode := findChildByKind(node, "namespace_use_group")
	if groupNode != nil {
		prefix := ""
		if prefixNode != nil {
			prefix = strings.Trim(prefixNode.Utf8Text(content), "\\")
		}
		for i := uint(0); i < groupNode.NamedChildCount(); i++ {
			clause := groupNode.NamedChild(i)
			if clause == nil || (clause.Kind() != "namespace_use_clause" && clause.Kind() != "namespace_use_group_clause") {
				continue
			}
			if use, ok := parseUseClause(clause, content, prefix, useKind(clause, kind)); ok {
				use.Line, use.Namespace = line, namespace
				uses = append(uses, use)
			}
		}
		return uses
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause == nil || clause.Kind() != "namespace_use_clause" {
			continue
		}
		if use, ok := parseUseClause(clause, content, "", useKind(clause, kind)); ok {
			use.Line, use.Namespace = line, namespace
			uses = append(uses, use)
		}
	}
	return uses
}

func parseUseClause(clause *tree_sitter.Node, content []byte, prefix string, kind SymbolKind) (UseStatement, bool) {
	var nameNode, aliasNode *tree_sitter.Node
	if alias := clause.ChildByFieldName("alias"); alias != nil {
		aliasNode = alias
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() != "name" && child.Kind() != "qualified_name" {
			continue
		}
		if nameNode == nil {
			nameNode = child
		} else if aliasNode == nil {
			aliasNode = child
		}
	}
	if nameNode == nil {
		return UseStatement{}, false
	}

	name := strings.Trim(nameNode.Utf8Text(content), "\\")
	if prefix != "" {
		name = prefix + "\\" + name
	}

	alias := name
	if idx := strings.LastIndex(alias, "\\"); idx >= 0 {
		alias = alias[idx+1:]
	}
	if aliasNode != nil && !sameRange(aliasNode, nameNode) {
		alias = aliasNode.Utf8Text(content)
	}

	return UseStatement{Alias: alias, Name: name, Kind: kind}, true
}

func sameRange(a, b *tree_sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// NamespaceAt returns the index and name of the namespace covering line, -1
// and "" for global code.
func (fs *FileSymbols) NamespaceAt(line int) (int, string) {
	for i := len(fs.Namespaces) - 1; i >= 0; i-- {
		span := fs.Namespaces[i]
		if line >= span.StartLine && (span.EndLine == 0 || line <= span.EndLine) {
			return i, span.Name
		}
	}
	return -1, ""
}

// ResolverAt builds the alias resolver for the namespace covering line.
func (fs *FileSymbols) ResolverAt(line int) *AliasResolver {
	index, namespace := fs.NamespaceAt(line)
	var uses []UseStatement
	for _, use := range fs.Uses {
		if use.Namespace == index {
			uses = append(uses, use)
		}
	}
	return NewAliasResolver(namespace, uses)
}

// Resolve resolves name as seen from line. Primitive and special names are
// not resolvable and report false.
func (fs *FileSymbols) Resolve(name string, line int, kind SymbolKind) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	resolver := fs.ResolverAt(line)
	switch kind {
	case SymbolFunction:
		return resolver.ResolveFunction(name), true
	case SymbolConstant:
		return resolver.ResolveConstant(name), true
	default:
		if IsPrimitiveType(name) || IsSpecialType(name) {
			return "", false
		}
		return resolver.ResolveType(name), true
	}
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
