package php

import (
	"fmt"
	"path/filepath"

	"github.com/shopware/php-typeinfer/internal/indexer"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// PHPIndex persists the declared class-likes, functions and constants of
// every indexed file. It is kept current by the FileScanner and is a
// SymbolSource for the type deducer.
type PHPIndex struct {
	classes   *indexer.DataIndexer[PHPClass]
	functions *indexer.DataIndexer[PHPFunction]
	constants *indexer.DataIndexer[PHPConstant]
}

func NewPHPIndex(configDir string) (*PHPIndex, error) {
	classes, err := indexer.NewDataIndexer[PHPClass](filepath.Join(configDir, "php_classes.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open class index: %w", err)
	}

	functions, err := indexer.NewDataIndexer[PHPFunction](filepath.Join(configDir, "php_functions.db"))
	if err != nil {
		_ = classes.Close()
		return nil, fmt.Errorf("failed to open function index: %w", err)
	}

	constants, err := indexer.NewDataIndexer[PHPConstant](filepath.Join(configDir, "php_constants.db"))
	if err != nil {
		_ = classes.Close()
		_ = functions.Close()
		return nil, fmt.Errorf("failed to open constant index: %w", err)
	}

	return &PHPIndex{
		classes:   classes,
		functions: functions,
		constants: constants,
	}, nil
}

func (idx *PHPIndex) ID() string {
	return "php.index"
}

func (idx *PHPIndex) Index(path string, node *tree_sitter.Node, fileContent []byte) error {
	file := ExtractFile(path, node, fileContent)

	classes := make(map[string]PHPClass, len(file.Classes))
	for _, class := range file.Classes {
		classes[ClassKey(class.Name)] = class
	}
	if err := idx.classes.ReplaceFileItems(path, classes); err != nil {
		return fmt.Errorf("failed to save classes: %w", err)
	}

	functions := make(map[string]PHPFunction, len(file.Functions))
	for _, fn := range file.Functions {
		functions[ClassKey(fn.Name)] = fn
	}
	if err := idx.functions.ReplaceFileItems(path, functions); err != nil {
		return fmt.Errorf("failed to save functions: %w", err)
	}

	constants := make(map[string]PHPConstant, len(file.Constants))
	for _, constant := range file.Constants {
		constants[ConstantKey(constant.Name)] = constant
	}
	if err := idx.constants.ReplaceFileItems(path, constants); err != nil {
		return fmt.Errorf("failed to save constants: %w", err)
	}

	return nil
}

func (idx *PHPIndex) RemovedFiles(paths []string) error {
	if err := idx.classes.BatchDeleteByFilePaths(paths); err != nil {
		return err
	}
	if err := idx.functions.BatchDeleteByFilePaths(paths); err != nil {
		return err
	}
	return idx.constants.BatchDeleteByFilePaths(paths)
}

func (idx *PHPIndex) Close() error {
	var firstErr error
	for _, closeFn := range []func() error{idx.classes.Close, idx.functions.Close, idx.constants.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (idx *PHPIndex) Clear() error {
	if err := idx.classes.Clear(); err != nil {
		return err
	}
	if err := idx.functions.Clear(); err != nil {
		return err
	}
	return idx.constants.Clear()
}

// GetClass returns the first declaration of fqcn. Lookup errors count as
// not found.
func (idx *PHPIndex) GetClass(fqcn string) (*PHPClass, bool) {
	class, found, err := idx.classes.GetFirstValue(ClassKey(fqcn))
	if err != nil || !found {
		return nil, false
	}
	return &class, true
}

func (idx *PHPIndex) GetFunction(fqn string) (*PHPFunction, bool) {
	fn, found, err := idx.functions.GetFirstValue(ClassKey(fqn))
	if err != nil || !found {
		return nil, false
	}
	return &fn, true
}

func (idx *PHPIndex) GetConstant(fqn string) (*PHPConstant, bool) {
	constant, found, err := idx.constants.GetFirstValue(ConstantKey(fqn))
	if err != nil || !found {
		return nil, false
	}
	return &constant, true
}

// IndexStats counts the stored symbols.
type IndexStats struct {
	Classes   int
	Functions int
	Constants int
}

func (idx *PHPIndex) Stats() (IndexStats, error) {
	var stats IndexStats
	var err error
	if stats.Classes, err = idx.classes.Count(); err != nil {
		return stats, err
	}
	if stats.Functions, err = idx.functions.Count(); err != nil {
		return stats, err
	}
	stats.Constants, err = idx.constants.Count()
	return stats, err
}
