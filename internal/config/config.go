package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the optional per-project configuration file.
const FileName = ".php-typeinfer.yaml"

// Config is the project configuration. Relative paths are relative to Root.
type Config struct {
	Root       string   `yaml:"-"`
	CacheDir   string   `yaml:"cacheDir"`
	SkipDirs   []string `yaml:"skipDirs"`
	IndexRoots []string `yaml:"indexRoots"`
	Watch      *bool    `yaml:"watch"`
	LogFile    string   `yaml:"logFile"`
}

// Load reads the configuration of the project at root. A missing config file
// is not an error. Index roots default to the composer autoload roots and the
// cache directory to the per-project folder in the user config directory.
func Load(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg := &Config{Root: root}

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
		cfg.Root = root
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	if len(cfg.IndexRoots) == 0 {
		if cfg.IndexRoots, err = AutoloadRoots(root); err != nil {
			return nil, err
		}
	}
	for i, dir := range cfg.IndexRoots {
		cfg.IndexRoots[i] = cfg.abs(dir)
	}

	if cfg.CacheDir == "" {
		if cfg.CacheDir, err = ProjectCacheDir(root); err != nil {
			return nil, err
		}
	} else {
		cfg.CacheDir = cfg.abs(cfg.CacheDir)
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	if cfg.LogFile != "" {
		cfg.LogFile = cfg.abs(cfg.LogFile)
	}

	return cfg, nil
}

// WatchEnabled reports whether file changes are watched. Defaults to true.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

func (c *Config) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Root, path)
}

// ProjectCacheDir returns, and creates, the cache folder of the project at
// root inside the user config directory.
func ProjectCacheDir(root string) (string, error) {
	configDir, err := userConfigDir()
	if err != nil {
		return "", err
	}

	projectSlug := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(root)
	dir := filepath.Join(configDir, "php-typeinfer", projectSlug)

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to check directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return dir, nil
}

func userConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to get current user: %w", err)
		}
		return filepath.Join(usr.HomeDir, ".config"), nil
	}
	return configDir, nil
}
