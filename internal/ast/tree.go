package ast

import (
	"bytes"
	"fmt"
	"strings"
)

// Tree owns every node of one parsed file.
type Tree struct {
	Nodes  []Node
	Root   NodeID
	Source []byte
}

// Valid reports whether id addresses a node of the tree.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.Nodes)
}

// Node returns the node for id, or nil if id is out of range.
func (t *Tree) Node(id NodeID) Node {
	if !t.Valid(id) {
		return nil
	}
	return t.Nodes[id]
}

// Meta returns the shared data of id, or nil if id is out of range.
func (t *Tree) Meta(id NodeID) *Base {
	if !t.Valid(id) {
		return nil
	}
	return t.Nodes[id].Meta()
}

// Parent returns the parent of id, None for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if b := t.Meta(id); b != nil {
		return b.Parent
	}
	return None
}

// Text returns the source text covered by id.
func (t *Tree) Text(id NodeID) string {
	b := t.Meta(id)
	if b == nil || b.End > uint(len(t.Source)) || b.Start > b.End {
		return ""
	}
	return string(t.Source[b.Start:b.End])
}

// LineAt returns the 1-based line of a byte offset.
func (t *Tree) LineAt(offset uint) int {
	if offset > uint(len(t.Source)) {
		offset = uint(len(t.Source))
	}
	return bytes.Count(t.Source[:offset], []byte("\n")) + 1
}

// OffsetAt converts a 0-based line and byte column into an offset. Columns
// are clamped to the line.
func (t *Tree) OffsetAt(line, column int) uint {
	if column < 0 {
		column = 0
	}
	offset := 0
	for i := 0; i < line; i++ {
		next := bytes.IndexByte(t.Source[offset:], '\n')
		if next < 0 {
			return uint(len(t.Source))
		}
		offset += next + 1
	}
	end := bytes.IndexByte(t.Source[offset:], '\n')
	if end < 0 {
		end = len(t.Source) - offset
	}
	if column > end {
		column = end
	}
	return uint(offset + column)
}

// NodeAt returns the innermost node whose span contains offset.
func (t *Tree) NodeAt(offset uint) NodeID {
	current := t.Root
	if b := t.Meta(current); b == nil || !b.Contains(offset) {
		return None
	}
	for {
		next := None
		for _, child := range t.Meta(current).Children {
			if c := t.Meta(child); c != nil && c.Contains(offset) {
				next = child
				break
			}
		}
		if next == None {
			return current
		}
		current = next
	}
}

// ExpressionAt returns the innermost expression node containing offset. An
// offset on a member name resolves to the access or call owning that name.
func (t *Tree) ExpressionAt(offset uint) NodeID {
	for id := t.NodeAt(offset); id != None; id = t.Parent(id) {
		if IsExpression(t.Node(id)) {
			return id
		}
	}
	return None
}

// EnclosingClassLike returns the innermost class-like whose span contains offset.
func (t *Tree) EnclosingClassLike(offset uint) (*ClassLike, bool) {
	for id := t.NodeAt(offset); id != None; id = t.Parent(id) {
		if class, ok := t.Node(id).(*ClassLike); ok {
			return class, true
		}
	}
	return nil, false
}

// QualifiedName returns the namespaced name of a declared class-like.
func (c *ClassLike) QualifiedName() string {
	if c.Name == "" {
		return ""
	}
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "\\" + c.Name
}

// Param returns the parameter called name.
func (t *Tree) Param(fn *FunctionLike, name string) (*Parameter, bool) {
	for _, id := range fn.Params {
		if p, ok := t.Node(id).(*Parameter); ok && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// IsExpression reports whether n is a value-producing node.
func IsExpression(n Node) bool {
	switch n := n.(type) {
	case *Variable, *Literal, *ConstFetch, *Name, *New, *Clone, *Array, *Call,
		*MethodCall, *PropertyFetch, *ClassConstFetch, *Ternary, *Assign,
		*Binary, *Unary, *Instanceof, *Cast:
		return true
	case *FunctionLike:
		return n.Kind == KindClosure || n.Kind == KindArrowFunction
	case *ClassLike:
		return n.Name == ""
	default:
		return false
	}
}

// Walk visits id and its descendants in pre-order until fn returns false.
func (t *Tree) Walk(id NodeID, fn func(id NodeID) bool) bool {
	b := t.Meta(id)
	if b == nil {
		return true
	}
	if !fn(id) {
		return false
	}
	for _, child := range b.Children {
		if !t.Walk(child, fn) {
			return false
		}
	}
	return true
}

// KindName returns a short label for n, used by debug output.
func KindName(n Node) string {
	switch n := n.(type) {
	case *File:
		return "File"
	case *Namespace:
		return "Namespace"
	case *ClassLike:
		return "ClassLike(" + n.Kind.String() + ")"
	case *FunctionLike:
		return [...]string{"Function", "Method", "Closure", "ArrowFunction"}[n.Kind]
	case *Parameter:
		return "Parameter"
	case *If:
		return "If"
	case *ElseIf:
		return "ElseIf"
	case *Else:
		return "Else"
	case *Ternary:
		return "Ternary"
	case *Foreach:
		return "Foreach"
	case *Catch:
		return "Catch"
	case *Assign:
		return "Assign"
	case *Binary:
		return "Binary(" + n.Op + ")"
	case *Unary:
		return "Unary(" + n.Op + ")"
	case *Instanceof:
		return "Instanceof"
	case *Cast:
		return "Cast(" + n.Type + ")"
	case *Variable:
		return "Variable"
	case *Literal:
		return "Literal"
	case *ConstFetch:
		return "ConstFetch"
	case *Name:
		return "Name"
	case *New:
		return "New"
	case *Clone:
		return "Clone"
	case *Array:
		return "Array"
	case *Call:
		return "Call"
	case *MethodCall:
		return "MethodCall"
	case *PropertyFetch:
		return "PropertyFetch"
	case *ClassConstFetch:
		return "ClassConstFetch"
	case *Other:
		return "Other(" + n.Kind + ")"
	default:
		return "?"
	}
}

// Dump renders the subtree under id, one node per line.
func (t *Tree) Dump(id NodeID) string {
	var sb strings.Builder
	t.dump(&sb, id, "")
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID, indent string) {
	n := t.Node(id)
	if n == nil {
		return
	}
	b := n.Meta()
	sb.WriteString(indent)
	sb.WriteString(KindName(n))
	if label := nodeLabel(n); label != "" {
		sb.WriteString(" ")
		sb.WriteString(label)
	}
	fmt.Fprintf(sb, " [%d-%d]\n", b.Start, b.End)
	for _, child := range b.Children {
		t.dump(sb, child, indent+"  ")
	}
}

func nodeLabel(n Node) string {
	switch n := n.(type) {
	case *Namespace:
		return n.Name
	case *ClassLike:
		return n.Name
	case *FunctionLike:
		return n.Name
	case *Parameter:
		return "$" + n.Name + " " + n.Type
	case *Variable:
		return "$" + n.Name
	case *Literal:
		return n.Value
	case *ConstFetch:
		return n.Name
	case *Name:
		return n.Name
	case *MethodCall:
		return n.Member
	case *PropertyFetch:
		return n.Member
	case *ClassConstFetch:
		return n.Member
	case *Catch:
		return strings.Join(n.Types, "|") + " $" + n.Var
	default:
		return ""
	}
}
