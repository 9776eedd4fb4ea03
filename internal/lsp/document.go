package lsp

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/shopware/php-typeinfer/internal/lsp/protocol"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/typeinference"
)

// TextDocument represents a document open in the editor
type TextDocument struct {
	URI     string
	Path    string
	Text    []byte
	Version int
	Parsed  *typeinference.Document
}

// Offset converts an LSP position into a byte offset of the document.
func (d *TextDocument) Offset(pos protocol.Position) uint {
	return d.Parsed.Tree.OffsetAt(pos.Line, pos.Character)
}

// Position converts a byte offset into an LSP position.
func (d *TextDocument) Position(offset uint) protocol.Position {
	if offset > uint(len(d.Text)) {
		offset = uint(len(d.Text))
	}
	before := d.Text[:offset]
	line := bytes.Count(before, []byte("\n"))
	lineStart := bytes.LastIndexByte(before, '\n') + 1
	return protocol.Position{Line: line, Character: int(offset) - lineStart}
}

// DocumentManager keeps the open documents parsed. The symbols they declare
// are published to an in-memory overlay so unsaved class-likes are visible
// to deductions before the file is indexed.
type DocumentManager struct {
	documents map[string]*TextDocument
	overlay   *php.MemoryIndex
	mu        sync.RWMutex
}

// NewDocumentManager creates a new document manager
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*TextDocument),
		overlay:   php.NewMemoryIndex(),
	}
}

// Overlay returns the symbols declared by the open documents.
func (m *DocumentManager) Overlay() *php.MemoryIndex {
	return m.overlay
}

// OpenDocument adds or replaces a document
func (m *DocumentManager) OpenDocument(uri string, text string, version int) error {
	path := uriToPath(uri)
	parsed, err := typeinference.ParseDocument(path, []byte(text))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", uri, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.documents[uri] = &TextDocument{
		URI:     uri,
		Path:    path,
		Text:    []byte(text),
		Version: version,
		Parsed:  parsed,
	}
	m.overlay.SetFile(path, parsed.Index)
	return nil
}

// UpdateDocument updates an existing document. Out of order versions are
// ignored.
func (m *DocumentManager) UpdateDocument(uri string, text string, version int) error {
	m.mu.RLock()
	doc, ok := m.documents[uri]
	m.mu.RUnlock()
	if ok && version != 0 && version < doc.Version {
		return nil
	}
	return m.OpenDocument(uri, text, version)
}

// CloseDocument removes a document
func (m *DocumentManager) CloseDocument(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc, ok := m.documents[uri]; ok {
		m.overlay.RemoveFile(doc.Path)
	}
	delete(m.documents, uri)
}

// GetDocument returns a document by URI
func (m *DocumentManager) GetDocument(uri string) (*TextDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[uri]
	return doc, ok
}

// Close drops all documents
func (m *DocumentManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range m.documents {
		m.overlay.RemoveFile(doc.Path)
	}
	m.documents = make(map[string]*TextDocument)
}

// uriToPath turns a file:// URI into a file system path. Anything else is
// returned unchanged.
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	path := strings.TrimPrefix(uri, "file://")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return path
}

func urisToPaths(uris []string) []string {
	paths := make([]string, len(uris))
	for i, uri := range uris {
		paths[i] = uriToPath(uri)
	}
	return paths
}
