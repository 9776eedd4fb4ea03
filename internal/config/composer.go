package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/tidwall/gjson"
)

// AutoloadRoots returns the directories composer.json autoloads from: the
// psr-4, psr-0 and classmap entries of autoload and autoload-dev, plus the
// vendor directory. It returns nil when the project has no composer.json.
func AutoloadRoots(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, "composer.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read composer.json: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("composer.json is not valid JSON")
	}

	var roots []string
	add := func(dir string) {
		if dir == "" {
			dir = "."
		}
		dir = filepath.Clean(dir)
		if !slices.Contains(roots, dir) {
			roots = append(roots, dir)
		}
	}

	doc := gjson.ParseBytes(data)
	for _, section := range []string{"autoload", "autoload-dev"} {
		for _, standard := range []string{"psr-4", "psr-0"} {
			doc.Get(section + "." + standard).ForEach(func(_, dirs gjson.Result) bool {
				if dirs.IsArray() {
					for _, dir := range dirs.Array() {
						add(dir.String())
					}
				} else {
					add(dirs.String())
				}
				return true
			})
		}
		for _, entry := range doc.Get(section + ".classmap").Array() {
			add(entry.String())
		}
		for _, file := range doc.Get(section + ".files").Array() {
			add(filepath.Dir(file.String()))
		}
	}

	vendor := doc.Get("config.vendor-dir").String()
	if vendor == "" {
		vendor = "vendor"
	}
	add(vendor)

	return roots, nil
}
