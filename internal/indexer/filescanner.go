package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSkipDirs are directory names never scanned or watched.
var DefaultSkipDirs = []string{
	"node_modules",
	"var",
	"vendor-bin",
	"bin",
	"cache",
	".git",
	".github",
	".gitlab",
	".run",
	".idea",
	".vscode",
	"tests",
	"Tests",
}

const watchDebounce = 200 * time.Millisecond

// FileState is what the scanner remembers about an indexed file.
type FileState struct {
	Size    int64 `msgpack:"size"`
	ModTime int64 `msgpack:"mtime"`
}

// FileScanner finds PHP files below the index roots, parses the changed ones
// and hands them to the registered indexers.
type FileScanner struct {
	projectRoot string
	roots       []string
	skipDirs    map[string]bool
	state       *DataIndexer[FileState]
	indexer     []Indexer
	watcher     *fsnotify.Watcher
	watcherCtx  context.Context
	cancel      context.CancelFunc
	watcherWg   sync.WaitGroup
	onUpdate    func()
}

func NewFileScanner(projectRoot string, dbPath string) (*FileScanner, error) {
	state, err := NewDataIndexer[FileState](dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	fs := &FileScanner{
		projectRoot: projectRoot,
		roots:       []string{projectRoot},
		state:       state,
		indexer:     []Indexer{},
		watcherCtx:  ctx,
		cancel:      cancel,
	}
	fs.SetSkipDirs(DefaultSkipDirs)
	return fs, nil
}

func (fs *FileScanner) SetOnUpdate(onUpdate func()) {
	fs.onUpdate = onUpdate
}

// SetRoots limits scanning to the given directories. Relative roots are
// taken relative to the project root.
func (fs *FileScanner) SetRoots(roots []string) {
	if len(roots) == 0 {
		fs.roots = []string{fs.projectRoot}
		return
	}
	fs.roots = fs.roots[:0]
	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(fs.projectRoot, root)
		}
		fs.roots = append(fs.roots, filepath.Clean(root))
	}
}

func (fs *FileScanner) SetSkipDirs(dirs []string) {
	fs.skipDirs = make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		fs.skipDirs[dir] = true
	}
}

func (fs *FileScanner) AddIndexer(indexer Indexer) {
	fs.indexer = append(fs.indexer, indexer)
}

func (fs *FileScanner) isSkipped(path string) bool {
	relPath, err := filepath.Rel(fs.projectRoot, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(relPath, string(os.PathSeparator)) {
		if fs.skipDirs[part] {
			return true
		}
	}
	return false
}

func isScannedFile(path string) bool {
	if strings.HasSuffix(path, ".phar.php") {
		return false
	}
	return slices.Contains(scannedFileTypes, strings.ToLower(filepath.Ext(path)))
}

// StartWatcher re-indexes files below the roots when they change on disk.
// Events are debounced.
func (fs *FileScanner) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	fs.watcher = watcher
	fs.watcherWg.Add(1)

	go func() {
		defer fs.watcherWg.Done()
		defer func() { _ = watcher.Close() }()

		pendingAdds := make(map[string]bool)
		pendingRemoves := make(map[string]bool)
		debounceTimer := time.NewTimer(time.Hour)
		debounceTimer.Stop()

		resetTimer := func() {
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(watchDebounce)
		}

		processChanges := func() {
			if len(pendingAdds) > 0 {
				filesToAdd := make([]string, 0, len(pendingAdds))
				for file := range pendingAdds {
					filesToAdd = append(filesToAdd, file)
				}
				pendingAdds = make(map[string]bool)

				log.Printf("Processing %d changed/added files", len(filesToAdd))
				if err := fs.IndexFiles(fs.watcherCtx, filesToAdd); err != nil {
					log.Printf("Error indexing files: %v", err)
				}
			}

			if len(pendingRemoves) > 0 {
				filesToRemove := make([]string, 0, len(pendingRemoves))
				for file := range pendingRemoves {
					filesToRemove = append(filesToRemove, file)
				}
				pendingRemoves = make(map[string]bool)

				log.Printf("Processing %d deleted files", len(filesToRemove))
				if err := fs.RemoveFiles(fs.watcherCtx, filesToRemove); err != nil {
					log.Printf("Error removing files: %v", err)
				}
			}
		}

		for {
			select {
			case <-fs.watcherCtx.Done():
				processChanges()
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if fs.isSkipped(event.Name) {
					continue
				}

				fileInfo, err := os.Stat(event.Name)
				if err != nil {
					// Gone already, only removals are interesting
					if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && isScannedFile(event.Name) {
						pendingRemoves[event.Name] = true
						delete(pendingAdds, event.Name)
						resetTimer()
					}
					continue
				}

				if fileInfo.IsDir() {
					if event.Op&fsnotify.Create != 0 {
						if err := fs.addDirectoryToWatcher(event.Name); err != nil {
							log.Printf("Error adding directory to watcher: %v", err)
						}
					}
					continue
				}

				if !isScannedFile(event.Name) {
					continue
				}

				switch {
				case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
					pendingAdds[event.Name] = true
					delete(pendingRemoves, event.Name)
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					pendingRemoves[event.Name] = true
					delete(pendingAdds, event.Name)
				default:
					continue
				}
				resetTimer()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("File watcher error: %v", err)

			case <-debounceTimer.C:
				processChanges()
			}
		}
	}()

	for _, root := range fs.roots {
		if err := fs.addDirectoryToWatcher(root); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FileScanner) StopWatcher() {
	if fs.watcher != nil {
		fs.cancel()
		fs.watcherWg.Wait()
		fs.watcher = nil
	}
}

func (fs *FileScanner) addDirectoryToWatcher(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if fs.isSkipped(path) {
			return filepath.SkipDir
		}
		if err := fs.watcher.Add(path); err != nil {
			log.Printf("Error watching directory %s: %v", path, err)
		}
		return nil
	})
}

// Close stops the watcher and closes the file state and all indexers.
func (fs *FileScanner) Close() error {
	fs.StopWatcher()
	fs.cancel()

	var firstErr error
	for _, indexer := range fs.indexer {
		if err := indexer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close indexer %s: %w", indexer.ID(), err)
		}
	}
	if err := fs.state.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Files lists the PHP files below the roots.
func (fs *FileScanner) Files() ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, root := range fs.roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && fs.isSkipped(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if isScannedFile(path) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return files, nil
}

func (fs *FileScanner) IndexAll(ctx context.Context) error {
	files, err := fs.Files()
	if err != nil {
		return err
	}

	log.Printf("Found %d files to index", len(files))
	startTime := time.Now()

	if err := fs.IndexFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to index files: %w", err)
	}

	log.Printf("Indexing took %s", time.Since(startTime))
	return nil
}

// fileNeedsIndexing compares size and mtime with the stored state and reads
// the file when it changed.
func (fs *FileScanner) fileNeedsIndexing(path string) (bool, []byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, nil, nil, err
	}

	stored, found, err := fs.state.GetFirstValue(path)
	if err == nil && found && stored.Size == info.Size() && stored.ModTime == info.ModTime().UnixNano() {
		return false, nil, info, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, nil, info, err
	}
	return true, content, info, nil
}

// RemoveFiles drops the files from all indexers and forgets their state.
func (fs *FileScanner) RemoveFiles(ctx context.Context, paths []string) error {
	if err := fs.removeFilesFromIndexers(paths); err != nil {
		return err
	}
	if err := fs.state.BatchDeleteByFilePaths(paths); err != nil {
		return fmt.Errorf("failed to delete file state: %w", err)
	}

	if fs.onUpdate != nil {
		fs.onUpdate()
	}
	return nil
}

func (fs *FileScanner) removeFilesFromIndexers(paths []string) error {
	for _, indexer := range fs.indexer {
		if err := indexer.RemovedFiles(paths); err != nil {
			return fmt.Errorf("indexer %s: %w", indexer.ID(), err)
		}
	}
	return nil
}

func (fs *FileScanner) updateFileStates(files []fileWork) error {
	for _, file := range files {
		state := FileState{Size: file.info.Size(), ModTime: file.info.ModTime().UnixNano()}
		if err := fs.state.ReplaceFileItems(file.path, map[string]FileState{file.path: state}); err != nil {
			return err
		}
	}
	return nil
}

type fileWork struct {
	path    string
	content []byte
	info    os.FileInfo
}

// IndexFiles parses and indexes the changed files among files in parallel.
// Per-file errors are logged, not returned.
func (fs *FileScanner) IndexFiles(ctx context.Context, files []string) error {
	filtered := make([]string, 0, len(files))
	for _, path := range files {
		if !fs.isSkipped(path) && isScannedFile(path) {
			filtered = append(filtered, path)
		}
	}
	files = filtered
	if len(files) == 0 {
		return nil
	}

	workerCount := min(runtime.NumCPU()+2, 16)

	fileChan := make(chan string, 100)
	errChan := make(chan error, len(files)+workerCount)

	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parser, err := newPHPParser()
			if err != nil {
				errChan <- err
				for range fileChan {
				}
				return
			}
			defer parser.Close()

			const batchSize = 50
			batch := make([]fileWork, 0, batchSize)

			processBatch := func(items []fileWork) {
				if len(items) == 0 {
					return
				}

				paths := make([]string, 0, len(items))
				for _, item := range items {
					paths = append(paths, item.path)
				}
				if err := fs.removeFilesFromIndexers(paths); err != nil {
					errChan <- err
					return
				}

				for _, item := range items {
					tree := parser.Parse(item.content, nil)
					if tree == nil {
						errChan <- fmt.Errorf("failed to parse %s", item.path)
						continue
					}

					for _, indexer := range fs.indexer {
						if err := indexer.Index(item.path, tree.RootNode(), item.content); err != nil {
							errChan <- fmt.Errorf("%s: %w", item.path, err)
						}
					}
					tree.Close()
				}

				if err := fs.updateFileStates(items); err != nil {
					errChan <- err
				}
			}

			for path := range fileChan {
				needsIndexing, content, info, err := fs.fileNeedsIndexing(path)
				if err != nil || !needsIndexing {
					continue
				}

				batch = append(batch, fileWork{path: path, content: content, info: info})
				if len(batch) >= batchSize {
					processBatch(batch)
					batch = batch[:0]
				}
			}

			processBatch(batch)
		}()
	}

send:
	for _, path := range files {
		select {
		case <-ctx.Done():
			break send
		case fileChan <- path:
		}
	}
	close(fileChan)

	wg.Wait()
	close(errChan)

	for err := range errChan {
		log.Printf("Error processing file: %v", err)
	}

	if fs.onUpdate != nil {
		fs.onUpdate()
	}

	return ctx.Err()
}

// ClearHashes forgets all file state and clears the indexers, forcing a full
// re-index on the next run.
func (fs *FileScanner) ClearHashes() error {
	for _, indexer := range fs.indexer {
		if err := indexer.Clear(); err != nil {
			return err
		}
	}
	return fs.state.Clear()
}
