package indexer

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Indexer consumes parsed files. The FileScanner calls RemovedFiles for a
// file before indexing its new content.
type Indexer interface {
	ID() string
	Index(path string, node *tree_sitter.Node, fileContent []byte) error
	RemovedFiles(paths []string) error
	Close() error
	Clear() error
}
