package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IndexVersion is the schema version of everything stored in the cache
// directory. Bump it whenever a stored type changes shape, so existing caches
// are dropped and rebuilt.
const IndexVersion = 1

const versionFileName = "index_version"

// CheckAndMigrateCache clears cacheDir when its version file is missing,
// unreadable or outdated. It reports whether the cache was cleared.
func CheckAndMigrateCache(cacheDir string) (bool, error) {
	versionFile := filepath.Join(cacheDir, versionFileName)

	data, err := os.ReadFile(versionFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read version file: %w", err)
	}

	if err == nil {
		stored, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && stored == IndexVersion {
			return false, nil
		}
	}

	if err := clearCacheDir(cacheDir); err != nil {
		return false, fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := os.WriteFile(versionFile, []byte(strconv.Itoa(IndexVersion)), 0o644); err != nil {
		return false, fmt.Errorf("failed to write version: %w", err)
	}
	return true, nil
}

func clearCacheDir(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(cacheDir, 0o755)
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(cacheDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
