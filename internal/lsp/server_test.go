package lsp

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopware/php-typeinfer/internal/indexer"
	"github.com/shopware/php-typeinfer/internal/lsp/protocol"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

const fooURI = "file:///project/src/Foo.php"

func request(t *testing.T, method string, params interface{}) *jsonrpc2.Request {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	msg := json.RawMessage(raw)
	return &jsonrpc2.Request{Method: method, Params: &msg, ID: jsonrpc2.ID{Num: 1}}
}

func openServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil)
	_, err := s.handle(context.Background(), nil, request(t, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: fooURI, LanguageID: "php", Version: 1, Text: fooSource},
	}))
	require.NoError(t, err)
	return s
}

func positionParams(line, character int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: fooURI},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

func TestServer_Initialize(t *testing.T) {
	s := NewServer(nil)
	result, err := s.handle(context.Background(), nil, request(t, "initialize", protocol.InitializeParams{
		RootURI: "file:///project",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/project", s.RootPath())

	capabilities := result.(map[string]interface{})["capabilities"].(map[string]interface{})
	assert.Equal(t, true, capabilities["hoverProvider"])
}

func TestServer_ExpressionTypes(t *testing.T) {
	s := openServer(t)

	result, err := s.handle(context.Background(), nil, request(t, "php/expressionTypes", protocol.ExpressionTypesParams{
		TextDocumentPositionParams: positionParams(5, 0),
	}))
	require.NoError(t, err)

	types := result.(*protocol.ExpressionTypesResult)
	assert.Equal(t, "$a", types.Expression)
	assert.Equal(t, []string{"Foo"}, types.Types)
	require.NotNil(t, types.Range)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 5, Character: 0},
		End:   protocol.Position{Line: 5, Character: 2},
	}, *types.Range)
}

func TestServer_ExpressionTypesUsesOpenDocumentSymbols(t *testing.T) {
	s := openServer(t)

	result, err := s.handle(context.Background(), nil, request(t, "php/expressionTypes", protocol.ExpressionTypesParams{
		TextDocumentPositionParams: positionParams(5, 5),
		IncludeVariables:           true,
	}))
	require.NoError(t, err)

	types := result.(*protocol.ExpressionTypesResult)
	assert.Equal(t, []string{"Baz"}, types.Types)
	assert.Equal(t, []string{"Foo"}, types.Variables["$a"])
}

func TestServer_ExpressionTypesOutsideExpression(t *testing.T) {
	s := openServer(t)

	result, err := s.handle(context.Background(), nil, request(t, "php/expressionTypes", protocol.ExpressionTypesParams{
		TextDocumentPositionParams: positionParams(0, 0),
	}))
	require.NoError(t, err)

	types := result.(*protocol.ExpressionTypesResult)
	assert.Empty(t, types.Expression)
	assert.Empty(t, types.Types)
	assert.Nil(t, types.Range)
}

func TestServer_ExpressionTypesUnknownDocument(t *testing.T) {
	s := NewServer(nil)

	_, err := s.handle(context.Background(), nil, request(t, "php/expressionTypes", protocol.ExpressionTypesParams{
		TextDocumentPositionParams: positionParams(0, 0),
	}))
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestServer_Hover(t *testing.T) {
	s := openServer(t)

	result, err := s.handle(context.Background(), nil, request(t, "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: positionParams(5, 1),
	}))
	require.NoError(t, err)

	hover := result.(*protocol.Hover)
	require.NotNil(t, hover)
	assert.Equal(t, protocol.Markdown, hover.Contents.Kind)
	assert.Equal(t, "```php\n$a\n```\n\n- `\\Foo`\n", hover.Contents.Value)
}

func TestServer_HoverAfterClose(t *testing.T) {
	s := openServer(t)

	_, err := s.handle(context.Background(), nil, request(t, "textDocument/didClose", protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: fooURI},
	}))
	require.NoError(t, err)

	result, err := s.handle(context.Background(), nil, request(t, "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: positionParams(5, 1),
	}))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestServer_UnknownMethod(t *testing.T) {
	s := NewServer(nil)

	_, err := s.handle(context.Background(), nil, request(t, "textDocument/unknown", map[string]string{}))
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)

	notification := request(t, "$/cancelRequest", map[string]int{"id": 1})
	notification.Notif = true
	result, err := s.handle(context.Background(), nil, notification)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestHoverMarkdown(t *testing.T) {
	value := hoverMarkdown("$this->items", []string{"App\\Item[]", "null"})
	assert.Equal(t, "```php\n$this->items\n```\n\n- `\\App\\Item[]`\n- `null`\n", value)

	value = hoverMarkdown("foo(\n  $x\n)", []string{"int"})
	assert.Contains(t, value, "foo( …")

	value = hoverMarkdown("$s = '"+strings.Repeat("é", 100)+"'", []string{"string"})
	assert.True(t, utf8.ValidString(value))
	assert.Contains(t, value, "```php\n$s = '"+strings.Repeat("é", 74)+" …\n```")
}

type fakeIndexer struct {
	closed int
}

func (f *fakeIndexer) ID() string { return "fake" }

func (f *fakeIndexer) Index(string, *tree_sitter.Node, []byte) error { return nil }

func (f *fakeIndexer) RemovedFiles([]string) error { return nil }

func (f *fakeIndexer) Close() error {
	f.closed++
	return nil
}

func (f *fakeIndexer) Clear() error { return nil }

func TestServer_IndexerRegistry(t *testing.T) {
	s := NewServer(nil)
	idx := &fakeIndexer{}
	s.RegisterIndexer(idx)

	got, ok := s.GetIndexer("fake")
	require.True(t, ok)
	assert.Same(t, idx, got)

	_, ok = s.GetIndexer("missing")
	assert.False(t, ok)

	require.NoError(t, s.CloseAll())
	require.NoError(t, s.CloseAll())
	assert.Equal(t, 1, idx.closed)
}

func TestServer_ShutdownClosesDocuments(t *testing.T) {
	s := openServer(t)

	_, err := s.handle(context.Background(), nil, &jsonrpc2.Request{Method: "shutdown", ID: jsonrpc2.ID{Num: 2}})
	require.NoError(t, err)

	_, ok := s.DocumentManager().GetDocument(fooURI)
	assert.False(t, ok)
}

func TestServer_NotifiesIndexUpdates(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Foo.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\nclass Foo {}\n"), 0o644))

	scanner, err := indexer.NewFileScanner(root, filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	s := NewServer(scanner)
	t.Cleanup(func() { _ = s.CloseAll() })

	serverSide, clientSide := net.Pipe()
	s.conn = jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}), jsonrpc2.HandlerWithError(s.handle))
	t.Cleanup(func() { _ = s.conn.Close() })

	updates := make(chan string, 4)
	client := jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
			updates <- req.Method
			return nil, nil
		}))
	t.Cleanup(func() { _ = client.Close() })

	s.indexFiles(context.Background(), []string{"file://" + path})
	select {
	case method := <-updates:
		assert.Equal(t, "php/indexUpdated", method)
	case <-time.After(5 * time.Second):
		t.Fatal("no index update notification")
	}

	s.removeFiles(context.Background(), []string{"file://" + path})
	select {
	case method := <-updates:
		assert.Equal(t, "php/indexUpdated", method)
	case <-time.After(5 * time.Second):
		t.Fatal("no index update notification after removal")
	}
}
