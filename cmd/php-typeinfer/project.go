package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/shopware/php-typeinfer/internal/config"
	"github.com/shopware/php-typeinfer/internal/indexer"
	"github.com/shopware/php-typeinfer/internal/php"
)

// project bundles the configuration and the persistent index of one project.
type project struct {
	cfg     *config.Config
	scanner *indexer.FileScanner
	index   *php.PHPIndex
}

func projectRoot() (string, error) {
	if rootPath != "" {
		return rootPath, nil
	}
	return os.Getwd()
}

// openProject loads the configuration and opens the caches. The index is not
// registered with the scanner yet.
func openProject() (*project, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	cleared, err := indexer.CheckAndMigrateCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	if cleared {
		log.Printf("Cache at %s was reset", cfg.CacheDir)
	}

	index, err := php.NewPHPIndex(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	scanner, err := indexer.NewFileScanner(cfg.Root, filepath.Join(cfg.CacheDir, "files.db"))
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	scanner.SetRoots(cfg.IndexRoots)
	scanner.SetSkipDirs(append(append([]string(nil), indexer.DefaultSkipDirs...), cfg.SkipDirs...))

	return &project{cfg: cfg, scanner: scanner, index: index}, nil
}

// Close closes the scanner, which owns the index once registered.
func (p *project) Close() error {
	return p.scanner.Close()
}
