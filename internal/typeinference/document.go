package typeinference

import (
	"fmt"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
)

// Document is one parsed PHP file: its arena tree, the namespaces and
// imports needed to resolve names in it, and the symbols it declares.
type Document struct {
	Path    string
	Tree    *ast.Tree
	Symbols *php.FileSymbols
	Index   php.FileIndex
}

// ParseDocument parses content once and derives everything a Document holds
// from the same syntax tree.
func ParseDocument(path string, content []byte) (*Document, error) {
	parser, err := ast.NewParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tsTree := parser.Parse(content, nil)
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	return &Document{
		Path:    path,
		Tree:    ast.FromTreeSitter(root, content),
		Symbols: php.CollectFileSymbols(root, content),
		Index:   php.ExtractFile(path, root, content),
	}, nil
}

// Deducer returns a Deducer answering queries on d against meta.
func (d *Document) Deducer(meta Metadata) *Deducer {
	return NewDeducer(d.Tree, d.Symbols, meta)
}
