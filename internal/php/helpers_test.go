package php

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func parsePHP(t testing.TB, content []byte) *tree_sitter.Tree {
	t.Helper()
	parser := tree_sitter.NewParser()
	require.NoError(t, parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())))
	t.Cleanup(parser.Close)

	tree := parser.Parse(content, nil)
	require.NotNil(t, tree)
	t.Cleanup(tree.Close)
	return tree
}

func extractFixture(t testing.TB, path string) FileIndex {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	tree := parsePHP(t, content)
	return ExtractFile(path, tree.RootNode(), content)
}

func classByName(t testing.TB, file FileIndex, name string) PHPClass {
	t.Helper()
	for _, class := range file.Classes {
		if class.Name == name {
			return class
		}
	}
	require.FailNow(t, "class not found", name)
	return PHPClass{}
}

func (m *MemoryIndex) addToFile(add func(file *FileIndex)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file := m.files[""]
	add(&file)
	m.files[""] = file
	m.rebuild()
}

func (m *MemoryIndex) AddClass(class PHPClass) {
	if class.Methods == nil {
		class.Methods = make(map[string]PHPMethod)
	}
	if class.Properties == nil {
		class.Properties = make(map[string]PHPProperty)
	}
	if class.Constants == nil {
		class.Constants = make(map[string]PHPClassConstant)
	}
	m.addToFile(func(file *FileIndex) { file.Classes = append(file.Classes, class) })
}

func (m *MemoryIndex) AddFunction(fn PHPFunction) {
	m.addToFile(func(file *FileIndex) { file.Functions = append(file.Functions, fn) })
}

func (m *MemoryIndex) AddConstant(constant PHPConstant) {
	m.addToFile(func(file *FileIndex) { file.Constants = append(file.Constants, constant) })
}
