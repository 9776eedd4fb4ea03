package php

import "sync"

// MemoryIndex is a map backed SymbolSource. The language server keeps the
// symbols of open documents in one so unsaved declarations are visible.
type MemoryIndex struct {
	mu        sync.RWMutex
	files     map[string]FileIndex
	classes   map[string]*PHPClass
	functions map[string]*PHPFunction
	constants map[string]*PHPConstant
}

func NewMemoryIndex() *MemoryIndex {
	m := &MemoryIndex{files: make(map[string]FileIndex)}
	m.rebuild()
	return m
}

// SetFile replaces the symbols of path.
func (m *MemoryIndex) SetFile(path string, file FileIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = file
	m.rebuild()
}

func (m *MemoryIndex) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.rebuild()
}

func (m *MemoryIndex) rebuild() {
	m.classes = make(map[string]*PHPClass)
	m.functions = make(map[string]*PHPFunction)
	m.constants = make(map[string]*PHPConstant)

	for _, file := range m.files {
		for i := range file.Classes {
			m.classes[ClassKey(file.Classes[i].Name)] = &file.Classes[i]
		}
		for i := range file.Functions {
			m.functions[ClassKey(file.Functions[i].Name)] = &file.Functions[i]
		}
		for i := range file.Constants {
			m.constants[ConstantKey(file.Constants[i].Name)] = &file.Constants[i]
		}
	}
}

func (m *MemoryIndex) GetClass(fqcn string) (*PHPClass, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	class, ok := m.classes[ClassKey(fqcn)]
	return class, ok
}

func (m *MemoryIndex) GetFunction(fqn string) (*PHPFunction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.functions[ClassKey(fqn)]
	return fn, ok
}

func (m *MemoryIndex) GetConstant(fqn string) (*PHPConstant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	constant, ok := m.constants[ConstantKey(fqn)]
	return constant, ok
}
