package lsp

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopware/php-typeinfer/internal/indexer"
	"github.com/shopware/php-typeinfer/internal/lsp/protocol"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/typeinference"
	"github.com/sourcegraph/jsonrpc2"
)

// Server represents the LSP server
type Server struct {
	rootPath        string
	conn            *jsonrpc2.Conn
	indexers        map[string]indexer.Indexer
	indexerMu       sync.RWMutex
	documentManager *DocumentManager
	metadata        typeinference.Metadata
	FileScanner     *indexer.FileScanner
	closeOnce       sync.Once
	closeErr        error
}

// NewServer creates a new LSP server. Open documents are consulted before
// the persistent sources.
func NewServer(filescanner *indexer.FileScanner, sources ...php.SymbolSource) *Server {
	documentManager := NewDocumentManager()
	s := &Server{
		indexers:        make(map[string]indexer.Indexer),
		documentManager: documentManager,
		metadata:        php.NewCatalog(append([]php.SymbolSource{documentManager.Overlay()}, sources...)...),
		FileScanner:     filescanner,
	}
	if filescanner != nil {
		filescanner.SetOnUpdate(s.indexUpdated)
	}
	return s
}

// indexUpdated tells the client that indexed files were added, changed or
// removed, including changes picked up by the file watcher.
func (s *Server) indexUpdated() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(context.Background(), "php/indexUpdated", map[string]interface{}{
		"message": "Index updated",
	}); err != nil {
		log.Printf("Error sending index update: %v", err)
	}
}

// RegisterIndexer adds an indexer to the registry and hands it to the
// file scanner
func (s *Server) RegisterIndexer(indexer indexer.Indexer) {
	s.indexerMu.Lock()
	defer s.indexerMu.Unlock()
	s.indexers[indexer.ID()] = indexer
	if s.FileScanner != nil {
		s.FileScanner.AddIndexer(indexer)
	}
}

// GetIndexer retrieves an indexer by ID
func (s *Server) GetIndexer(id string) (indexer.Indexer, bool) {
	s.indexerMu.RLock()
	defer s.indexerMu.RUnlock()
	indexer, ok := s.indexers[id]
	return indexer, ok
}

// indexAll builds or updates the symbol index.
// If forceReindex is true, every file is parsed again.
func (s *Server) indexAll(ctx context.Context, forceReindex bool) error {
	if s.FileScanner == nil {
		return nil
	}
	startTime := time.Now()

	if s.conn != nil {
		if err := s.conn.Notify(ctx, "php/indexingStarted", map[string]interface{}{
			"message": "Indexing started",
		}); err != nil {
			return err
		}
	}

	if forceReindex {
		if err := s.FileScanner.ClearHashes(); err != nil {
			return err
		}
	}

	if err := s.FileScanner.IndexAll(ctx); err != nil {
		return err
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Indexing completed in %s", elapsedTime)

	if s.conn != nil {
		if err := s.conn.Notify(ctx, "php/indexingCompleted", map[string]interface{}{
			"message":       "Indexing completed",
			"timeInSeconds": elapsedTime.Seconds(),
		}); err != nil {
			return err
		}
	}

	return nil
}

// CloseAll closes all registered indexers and resources. Only the first
// call does anything.
func (s *Server) CloseAll() error {
	s.closeOnce.Do(func() {
		s.documentManager.Close()

		// The file scanner owns the registered indexers
		if s.FileScanner != nil {
			s.closeErr = s.FileScanner.Close()
			return
		}

		s.indexerMu.RLock()
		defer s.indexerMu.RUnlock()
		for _, indexer := range s.indexers {
			if err := indexer.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

func (s *Server) Start(in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewBufferedStream(rwc{in, out}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle))
	s.conn = conn

	<-conn.DisconnectNotify()
	return nil
}

// rwc combines a reader and writer into a single ReadWriteCloser
type rwc struct {
	io.Reader
	io.Writer
}

// Close implements io.Closer
func (rwc) Close() error {
	return nil
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: err.Error()}
	}
	return nil
}

// handle processes incoming JSON-RPC requests and notifications
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if req.Method == "exit" {
		log.Println("Received exit notification, exiting")
		if err := conn.Close(); err != nil {
			log.Printf("error closing connection: %v", err)
		}
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.initialize(ctx, &params), nil

	case "initialized":
		go func() {
			if err := s.indexAll(context.Background(), false); err != nil {
				log.Printf("Error indexing: %v", err)
			}
		}()
		return nil, nil

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if !isPHP(params.TextDocument.URI) && params.TextDocument.LanguageID != "php" {
			return nil, nil
		}
		if err := s.documentManager.OpenDocument(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version); err != nil {
			log.Printf("Error opening document: %v", err)
		}
		return nil, nil

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if n := len(params.ContentChanges); n > 0 {
			if err := s.documentManager.UpdateDocument(params.TextDocument.URI, params.ContentChanges[n-1].Text, params.TextDocument.Version); err != nil {
				log.Printf("Error updating document: %v", err)
			}
		}
		return nil, nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.documentManager.CloseDocument(params.TextDocument.URI)
		return nil, nil

	case "textDocument/hover":
		var params protocol.HoverParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		hover, err := s.hover(ctx, &params)
		if err != nil {
			log.Printf("Error computing hover: %v", err)
			return nil, nil
		}
		return hover, nil

	case "php/expressionTypes":
		var params protocol.ExpressionTypesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		result, err := s.expressionTypes(ctx, &params)
		if err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		return result, nil

	case "php/forceReindex":
		go func() {
			if err := s.indexAll(context.Background(), true); err != nil {
				log.Printf("Error force reindexing: %v", err)
			}
		}()
		return map[string]interface{}{
			"message": "Force reindexing started",
		}, nil

	case "shutdown":
		if err := s.CloseAll(); err != nil {
			log.Printf("Error closing indexers: %v", err)
		}

		log.Println("Received shutdown request, waiting for exit notification")
		return nil, nil

	case "workspace/didCreateFiles":
		var params protocol.CreateFilesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		files := make([]string, len(params.Files))
		for i, file := range params.Files {
			files[i] = file.URI
		}
		s.indexFiles(ctx, files)
		return nil, nil

	case "workspace/didRenameFiles":
		var params protocol.RenameFilesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		oldFiles := make([]string, len(params.Files))
		newFiles := make([]string, len(params.Files))
		for i, file := range params.Files {
			oldFiles[i] = file.OldURI
			newFiles[i] = file.NewURI
		}

		s.removeFiles(ctx, oldFiles)
		s.indexFiles(ctx, newFiles)
		return nil, nil

	case "workspace/didDeleteFiles":
		var params protocol.DeleteFilesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		files := make([]string, len(params.Files))
		for i, file := range params.Files {
			files[i] = file.URI
		}
		s.removeFiles(ctx, files)
		return nil, nil

	case "workspace/didChangeWatchedFiles":
		var params protocol.DidChangeWatchedFilesParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		var changed, deleted []string
		for _, change := range params.Changes {
			if !isPHP(change.URI) {
				continue
			}
			switch protocol.FileChangeType(change.Type) {
			case protocol.FileCreated, protocol.FileChanged:
				changed = append(changed, change.URI)
			case protocol.FileDeleted:
				deleted = append(deleted, change.URI)
			}
		}

		s.indexFiles(ctx, changed)
		s.removeFiles(ctx, deleted)
		return nil, nil

	default:
		// Notifications need no response
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
	}
}

func (s *Server) indexFiles(ctx context.Context, uris []string) {
	if s.FileScanner == nil || len(uris) == 0 {
		return
	}
	if err := s.FileScanner.IndexFiles(ctx, urisToPaths(uris)); err != nil {
		log.Printf("Error indexing files: %v", err)
	}
}

func (s *Server) removeFiles(ctx context.Context, uris []string) {
	if s.FileScanner == nil || len(uris) == 0 {
		return
	}
	if err := s.FileScanner.RemoveFiles(ctx, urisToPaths(uris)); err != nil {
		log.Printf("Error removing files: %v", err)
	}
}

var phpFileFilters = []map[string]interface{}{
	{"pattern": map[string]interface{}{"glob": "**/*.php"}},
}

// initialize handles the LSP initialize request
func (s *Server) initialize(_ context.Context, params *protocol.InitializeParams) interface{} {
	s.extractRootPath(params)

	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"textDocumentSync": map[string]interface{}{
				"openClose": true,
				"change":    1, // Full sync
			},
			"hoverProvider": true,
			"workspace": map[string]interface{}{
				"fileOperations": map[string]interface{}{
					"didCreate": map[string]interface{}{"filters": phpFileFilters},
					"didRename": map[string]interface{}{"filters": phpFileFilters},
					"didDelete": map[string]interface{}{"filters": phpFileFilters},
				},
			},
		},
		"serverInfo": map[string]interface{}{
			"name": "php-typeinfer",
		},
	}
}

// extractRootPath extracts the root path from the initialize params
func (s *Server) extractRootPath(params *protocol.InitializeParams) {
	if params.RootPath != "" {
		s.rootPath = params.RootPath
		return
	}

	if params.RootURI != "" {
		s.rootPath = uriToPath(params.RootURI)
		return
	}

	if len(params.WorkspaceFolders) > 0 {
		s.rootPath = uriToPath(params.WorkspaceFolders[0].URI)
		return
	}

	s.rootPath, _ = os.Getwd()
}

// RootPath returns the workspace root announced by the client.
func (s *Server) RootPath() string {
	return s.rootPath
}

func (s *Server) DocumentManager() *DocumentManager {
	return s.documentManager
}

// isPHP reports whether uri names a PHP source file.
func isPHP(uri string) bool {
	return strings.HasSuffix(strings.ToLower(uri), ".php")
}
