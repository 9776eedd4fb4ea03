package indexer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// DataIndexer stores msgpack encoded values of one type in a SQLite database.
// Every value has a lookup key and belongs to the file it was extracted from,
// so a file's values can be dropped as a unit when it changes.
type DataIndexer[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=10000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA auto_vacuum=INCREMENTAL",
	"PRAGMA wal_autocheckpoint=1000",
}

const schema = `
	CREATE TABLE IF NOT EXISTS data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		value BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_data_key ON data(key);

	CREATE TABLE IF NOT EXISTS files (
		file_path TEXT NOT NULL,
		data_id INTEGER NOT NULL,
		PRIMARY KEY (file_path, data_id),
		FOREIGN KEY (data_id) REFERENCES data(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_files_path ON files(file_path);
	CREATE INDEX IF NOT EXISTS idx_files_data_id ON files(data_id);
`

func NewDataIndexer[T any](dbPath string) (*DataIndexer[T], error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN and avoids SQLITE_BUSY on upgrade
	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &DataIndexer[T]{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file.
func (idx *DataIndexer[T]) Path() string {
	return idx.dbPath
}

func insertItem(tx *sql.Tx, filePath, key string, item any) error {
	data, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	result, err := tx.Exec("INSERT INTO data (key, value) VALUES (?, ?)", key, data)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	dataID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO files (file_path, data_id) VALUES (?, ?)", filePath, dataID); err != nil {
		return fmt.Errorf("failed to save file association: %w", err)
	}
	return nil
}

func deleteFile(tx *sql.Tx, filePath string) error {
	if _, err := tx.Exec(`DELETE FROM data WHERE id IN (SELECT data_id FROM files WHERE file_path = ?)`, filePath); err != nil {
		return fmt.Errorf("failed to delete data: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE file_path = ?", filePath); err != nil {
		return fmt.Errorf("failed to delete file associations: %w", err)
	}
	return nil
}

// SaveItem stores item under key and associates it with filePath.
func (idx *DataIndexer[T]) SaveItem(filePath, key string, item T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertItem(tx, filePath, key, item); err != nil {
		return err
	}
	return tx.Commit()
}

// BatchSaveItems stores items grouped by file path then key, in one transaction.
func (idx *DataIndexer[T]) BatchSaveItems(items map[string]map[string]T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for filePath, keyItems := range items {
		for key, item := range keyItems {
			if err := insertItem(tx, filePath, key, item); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ReplaceFileItems drops everything stored for filePath and stores items in
// its place, atomically.
func (idx *DataIndexer[T]) ReplaceFileItems(filePath string, items map[string]T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteFile(tx, filePath); err != nil {
		return err
	}
	for key, item := range items {
		if err := insertItem(tx, filePath, key, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func decodeRows[T any](rows *sql.Rows) ([]T, error) {
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		var item T
		if err := msgpack.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetValues returns every item stored under key, oldest first.
func (idx *DataIndexer[T]) GetValues(key string) ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query("SELECT value FROM data WHERE key = ? ORDER BY id", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return decodeRows[T](rows)
}

// GetFirstValue returns the oldest item stored under key.
func (idx *DataIndexer[T]) GetFirstValue(key string) (T, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var zero T
	rows, err := idx.db.Query("SELECT value FROM data WHERE key = ? ORDER BY id LIMIT 1", key)
	if err != nil {
		return zero, false, fmt.Errorf("failed to query data: %w", err)
	}
	items, err := decodeRows[T](rows)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

// Count returns the number of stored items.
func (idx *DataIndexer[T]) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var n int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM data").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count data: %w", err)
	}
	return n, nil
}

func (idx *DataIndexer[T]) BatchDeleteByFilePaths(filePaths []string) error {
	if len(filePaths) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, filePath := range filePaths {
		if err := deleteFile(tx, filePath); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (idx *DataIndexer[T]) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.Exec("DELETE FROM files; DELETE FROM data;"); err != nil {
		return err
	}

	_, err := idx.db.Exec("PRAGMA incremental_vacuum")
	return err
}

// Close optimizes and checkpoints the database before closing it.
func (idx *DataIndexer[T]) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, _ = idx.db.Exec("PRAGMA optimize")
	_, _ = idx.db.Exec("PRAGMA incremental_vacuum")
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	return idx.db.Close()
}
