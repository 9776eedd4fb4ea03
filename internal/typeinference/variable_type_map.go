package typeinference

import (
	"slices"
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
)

// TypeOverride is a type declared by a @var docblock.
type TypeOverride struct {
	Type string
	Line int
}

// ExpressionTypeInfo is what the scope walker knows about one expression:
// the node that last declared it, a docblock override, and the narrowing
// collected from conditions since that declaration.
type ExpressionTypeInfo struct {
	bestMatch     ast.NodeID
	override      *TypeOverride
	possibilities *PossibilitySet
}

func newExpressionTypeInfo() *ExpressionTypeInfo {
	return &ExpressionTypeInfo{
		bestMatch:     ast.None,
		possibilities: NewPossibilitySet(),
	}
}

// BestMatch returns the declaring node, ast.None if there is none.
func (i *ExpressionTypeInfo) BestMatch() ast.NodeID {
	return i.bestMatch
}

// SetBestMatch records a new declaration and drops all narrowing.
func (i *ExpressionTypeInfo) SetBestMatch(id ast.NodeID) {
	i.bestMatch = id
	i.possibilities.Clear()
}

func (i *ExpressionTypeInfo) Override() (TypeOverride, bool) {
	if i.override == nil {
		return TypeOverride{}, false
	}
	return *i.override, true
}

// SetOverride records a docblock type. Narrowing is kept.
func (i *ExpressionTypeInfo) SetOverride(typeText string, line int) {
	i.override = &TypeOverride{Type: typeText, Line: line}
}

func (i *ExpressionTypeInfo) Possibilities() *PossibilitySet {
	return i.possibilities
}

func (i *ExpressionTypeInfo) clone() *ExpressionTypeInfo {
	out := &ExpressionTypeInfo{
		bestMatch:     i.bestMatch,
		possibilities: i.possibilities.Clone(),
	}
	if i.override != nil {
		override := *i.override
		out.override = &override
	}
	return out
}

// VariableTypeMap holds the ExpressionTypeInfo of every expression seen by a
// walk. It belongs to a single query and is not safe for concurrent use.
type VariableTypeMap struct {
	entries map[ExpressionKey]*ExpressionTypeInfo
}

func NewVariableTypeMap() *VariableTypeMap {
	return &VariableTypeMap{entries: make(map[ExpressionKey]*ExpressionTypeInfo)}
}

// Get returns the entry for key, creating an empty one if needed.
func (m *VariableTypeMap) Get(key ExpressionKey) *ExpressionTypeInfo {
	info, ok := m.entries[key]
	if !ok {
		info = newExpressionTypeInfo()
		m.entries[key] = info
	}
	return info
}

// Lookup returns the entry for key without creating it.
func (m *VariableTypeMap) Lookup(key ExpressionKey) (*ExpressionTypeInfo, bool) {
	info, ok := m.entries[key]
	return info, ok
}

func (m *VariableTypeMap) Len() int {
	return len(m.entries)
}

func (m *VariableTypeMap) Clear() {
	clear(m.entries)
}

// Retain drops every entry not rooted at one of roots.
func (m *VariableTypeMap) Retain(roots ...string) {
	for key := range m.entries {
		if !slices.Contains(roots, key.Root) {
			delete(m.entries, key)
		}
	}
}

// Keys returns the keys sorted by their printed form.
func (m *VariableTypeMap) Keys() []ExpressionKey {
	keys := make([]ExpressionKey, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b ExpressionKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

func (m *VariableTypeMap) Clone() *VariableTypeMap {
	out := NewVariableTypeMap()
	for key, info := range m.entries {
		out.entries[key] = info.clone()
	}
	return out
}
