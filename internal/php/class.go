package php

import "strings"

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func parseVisibility(text string) Visibility {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "private":
		return Private
	case "protected":
		return Protected
	default:
		return Public
	}
}

type ClassKind int

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindTrait
	ClassKindEnum
)

// PHPMethod is a declared method. ReturnTypes are resolved names; "static"
// and "$this" are kept for the caller to bind.
type PHPMethod struct {
	Name           string     `msgpack:"name"`
	Line           int        `msgpack:"line"`
	Visibility     Visibility `msgpack:"visibility"`
	Static         bool       `msgpack:"static"`
	ReturnTypes    []string   `msgpack:"return_types"`
	DeclaringClass string     `msgpack:"declaring_class"`
}

type PHPProperty struct {
	Name           string     `msgpack:"name"`
	Line           int        `msgpack:"line"`
	Visibility     Visibility `msgpack:"visibility"`
	Static         bool       `msgpack:"static"`
	Types          []string   `msgpack:"types"`
	DeclaringClass string     `msgpack:"declaring_class"`
}

// PHPClassConstant is a class constant or enum case.
type PHPClassConstant struct {
	Name  string   `msgpack:"name"`
	Line  int      `msgpack:"line"`
	Types []string `msgpack:"types"`
}

// PHPClass is a class-like declaration. Member maps are keyed by the lowercased
// method name and the exact property and constant names.
type PHPClass struct {
	Name       string                      `msgpack:"name"`
	Path       string                      `msgpack:"path"`
	Line       int                         `msgpack:"line"`
	Kind       ClassKind                   `msgpack:"kind"`
	Parents    []string                    `msgpack:"parents"`
	Interfaces []string                    `msgpack:"interfaces"`
	Traits     []string                    `msgpack:"traits"`
	Methods    map[string]PHPMethod        `msgpack:"methods"`
	Properties map[string]PHPProperty      `msgpack:"properties"`
	Constants  map[string]PHPClassConstant `msgpack:"constants"`
}

func newPHPClass(name, path string, line int, kind ClassKind) PHPClass {
	return PHPClass{
		Name:       name,
		Path:       path,
		Line:       line,
		Kind:       kind,
		Methods:    make(map[string]PHPMethod),
		Properties: make(map[string]PHPProperty),
		Constants:  make(map[string]PHPClassConstant),
	}
}

func (c *PHPClass) GetMethod(name string) (PHPMethod, bool) {
	m, ok := c.Methods[strings.ToLower(name)]
	return m, ok
}

func (c *PHPClass) GetProperty(name string) (PHPProperty, bool) {
	p, ok := c.Properties[strings.TrimPrefix(name, "$")]
	return p, ok
}

func (c *PHPClass) GetConstant(name string) (PHPClassConstant, bool) {
	k, ok := c.Constants[name]
	return k, ok
}

// PHPFunction is a global or namespaced function.
type PHPFunction struct {
	Name        string   `msgpack:"name"`
	Path        string   `msgpack:"path"`
	Line        int      `msgpack:"line"`
	ReturnTypes []string `msgpack:"return_types"`
}

// PHPConstant is a global or namespaced constant, declared with const or define().
type PHPConstant struct {
	Name  string   `msgpack:"name"`
	Path  string   `msgpack:"path"`
	Line  int      `msgpack:"line"`
	Types []string `msgpack:"types"`
}

// FileIndex is everything one file declares.
type FileIndex struct {
	Classes   []PHPClass
	Functions []PHPFunction
	Constants []PHPConstant
}

// ClassKey normalizes a class name for lookups. Class and function names are
// case insensitive in PHP.
func ClassKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// ConstantKey normalizes a constant name: the namespace part is case
// insensitive, the constant name itself is not.
func ConstantKey(name string) string {
	name = strings.TrimPrefix(name, "\\")
	if idx := strings.LastIndex(name, "\\"); idx >= 0 {
		return strings.ToLower(name[:idx]) + name[idx:]
	}
	return name
}
