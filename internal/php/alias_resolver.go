package php

import (
	"strings"
)

// SymbolKind selects the import table a name is resolved against.
type SymbolKind int

const (
	SymbolClass SymbolKind = iota
	SymbolFunction
	SymbolConstant
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolConstant:
		return "constant"
	default:
		return "class"
	}
}

// AliasResolver handles the resolution of PHP names to their fully qualified
// names (FQCN) for one namespace and the use statements visible in it.
// Resolved names never carry a leading backslash.
type AliasResolver struct {
	// Lowercased alias to FQCN, class and namespace imports
	classes map[string]string
	// Lowercased alias to FQN, "use function" imports
	functions map[string]string
	// Alias to FQN, "use const" imports (constant names are case sensitive)
	constants map[string]string
	// Current namespace
	currentNamespace string
}

// NewAliasResolver creates a new alias resolver with the given namespace and use statements.
//
// Parameters:
//   - namespace: The current PHP namespace (e.g., "App\Controller")
//   - uses: The use statements visible at the point of resolution
//
// Returns:
//   - A new AliasResolver instance configured with the provided parameters
func NewAliasResolver(namespace string, uses []UseStatement) *AliasResolver {
	r := &AliasResolver{
		classes:          make(map[string]string),
		functions:        make(map[string]string),
		constants:        make(map[string]string),
		currentNamespace: strings.Trim(namespace, "\\"),
	}

	for _, use := range uses {
		name := strings.TrimPrefix(use.Name, "\\")
		switch use.Kind {
		case SymbolFunction:
			r.functions[strings.ToLower(use.Alias)] = name
		case SymbolConstant:
			r.constants[use.Alias] = name
		default:
			r.classes[strings.ToLower(use.Alias)] = name
		}
	}

	return r
}

// Namespace returns the namespace the resolver works in.
func (r *AliasResolver) Namespace() string {
	return r.currentNamespace
}

// ResolveType resolves a PHP class name to its fully qualified class name (FQCN).
// It handles various PHP type resolution scenarios including:
// - Primitive types (string, int, etc.)
// - Special types (self, static, etc.)
// - Fully qualified names (leading backslash)
// - Names relative to the current namespace ("namespace\Foo")
// - Imported types and qualified names starting with an imported segment
// - Types in the current namespace
//
// Parameters:
//   - typeName: The PHP type name to resolve
//
// Returns:
//   - The fully qualified class name (FQCN) for the given type
func (r *AliasResolver) ResolveType(typeName string) string {
	typeName = strings.TrimSpace(typeName)

	// Skip resolution for primitive types and special types
	if IsPrimitiveType(typeName) || IsSpecialType(typeName) {
		return typeName
	}

	return r.resolve(typeName, r.classes, true)
}

// ResolveFunction resolves a function name. Unqualified names that are not
// imported resolve into the current namespace; callers fall back to the
// global function when that name is unknown.
func (r *AliasResolver) ResolveFunction(name string) string {
	return r.resolve(strings.TrimSpace(name), r.functions, true)
}

// ResolveConstant resolves a constant name like ResolveFunction does.
func (r *AliasResolver) ResolveConstant(name string) string {
	return r.resolve(strings.TrimSpace(name), r.constants, false)
}

func (r *AliasResolver) resolve(name string, imports map[string]string, foldCase bool) string {
	if name == "" {
		return ""
	}

	// Fully qualified
	if strings.HasPrefix(name, "\\") {
		return strings.TrimPrefix(name, "\\")
	}

	// Explicitly relative to the current namespace
	if len(name) > 10 && strings.EqualFold(name[:10], "namespace\\") {
		return r.inNamespace(name[10:])
	}

	// Qualified: the first segment may be an imported namespace
	if idx := strings.Index(name, "\\"); idx > 0 {
		if fqcn, ok := r.classes[strings.ToLower(name[:idx])]; ok {
			return fqcn + name[idx:]
		}
		return r.inNamespace(name)
	}

	key := name
	if foldCase {
		key = strings.ToLower(name)
	}
	if fqcn, ok := imports[key]; ok {
		return fqcn
	}

	// If not imported, assume it's in the current namespace
	return r.inNamespace(name)
}

func (r *AliasResolver) inNamespace(name string) string {
	if r.currentNamespace == "" {
		return name
	}
	return r.currentNamespace + "\\" + name
}

// IsPrimitiveType checks if the given type is a PHP primitive type.
// PHP primitive types don't need to be resolved to FQCNs.
func IsPrimitiveType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "string", "int", "integer", "float", "double", "bool", "boolean",
		"array", "object", "callable", "iterable", "void", "null",
		"mixed", "never", "resource", "false", "true", "number", "scalar",
		"list", "non-empty-array", "non-empty-list", "non-empty-string",
		"positive-int", "negative-int", "numeric-string", "class-string", "array-key":
		return true
	default:
		return false
	}
}

// IsSpecialType checks if the given type is a PHP special type.
// PHP special types are keywords that refer to the current class context.
func IsSpecialType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "self", "static", "parent", "$this":
		return true
	default:
		return false
	}
}
