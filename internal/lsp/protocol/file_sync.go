package protocol

// FileEvent represents a file event
type FileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

// FileChangeType represents the type of file change
type FileChangeType int

const (
	// FileCreated represents a file creation event
	FileCreated FileChangeType = 1
	// FileChanged represents a file change event
	FileChanged FileChangeType = 2
	// FileDeleted represents a file deletion event
	FileDeleted FileChangeType = 3
)

// DidChangeWatchedFilesParams represents the parameters for a didChangeWatchedFiles notification
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// CreateFilesParams represents the parameters for a workspace/willCreateFiles request
type CreateFilesParams struct {
	Files []FileCreate `json:"files"`
}

// FileCreate represents a file creation operation
type FileCreate struct {
	URI string `json:"uri"`
}

// RenameFilesParams represents the parameters for a workspace/willRenameFiles request
type RenameFilesParams struct {
	Files []FileRename `json:"files"`
}

// FileRename represents a file rename operation
type FileRename struct {
	OldURI string `json:"oldUri"`
	NewURI string `json:"newUri"`
}

// DeleteFilesParams represents the parameters for a workspace/willDeleteFiles request
type DeleteFilesParams struct {
	Files []FileDelete `json:"files"`
}

// FileDelete represents a file deletion operation
type FileDelete struct {
	URI string `json:"uri"`
}

// TextDocumentItem is a document transferred on open
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// DidOpenTextDocumentParams represents the parameters of textDocument/didOpen
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams represents the parameters of textDocument/didChange.
// The server syncs full documents, so the last change holds the whole text.
type DidChangeTextDocumentParams struct {
	TextDocument struct {
		URI     string `json:"uri"`
		Version int    `json:"version"`
	} `json:"textDocument"`
	ContentChanges []struct {
		Text string `json:"text"`
	} `json:"contentChanges"`
}

// DidCloseTextDocumentParams represents the parameters of textDocument/didClose
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}
