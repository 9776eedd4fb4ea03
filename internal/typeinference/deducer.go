// Package typeinference deduces the possible types of PHP expressions at a
// source position. It walks the arena tree up to the position, tracks what
// every variable was last assigned, what docblocks declare and what
// enclosing conditions imply, and resolves member accesses against the
// declared symbols of the project.
package typeinference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
)

// ErrStructural is wrapped by every StructuralError.
var ErrStructural = errors.New("malformed syntax tree")

// StructuralError reports a node id that does not address a consistent node
// of the tree. It is the only error a deduction returns; everything else
// degrades to fewer candidate types.
type StructuralError struct {
	Node   ast.NodeID
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("node %d: %s", e.Node, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrStructural
}

// SymbolResolver resolves names as written in a file to fully qualified ones.
// *php.FileSymbols implements it.
type SymbolResolver interface {
	Resolve(name string, line int, kind php.SymbolKind) (string, bool)
}

// Metadata is the declared symbol information a deduction consults.
// *php.Catalog implements it.
type Metadata interface {
	php.ClassProvider
	php.FunctionProvider
	php.ConstantProvider
}

const maxDepth = 64

// Deducer answers type queries for one tree. It keeps no state between
// queries and may be shared by concurrent callers.
type Deducer struct {
	tree    *ast.Tree
	symbols SymbolResolver
	meta    Metadata
}

// NewDeducer returns a Deducer for tree. symbols and meta may be nil, names
// then resolve into the global namespace and member lookups find nothing.
func NewDeducer(tree *ast.Tree, symbols SymbolResolver, meta Metadata) *Deducer {
	if symbols == nil {
		symbols = globalSymbols{}
	}
	return &Deducer{tree: tree, symbols: symbols, meta: meta}
}

// Deduce returns the fully qualified candidate types of the expression at id
// as seen from offset, in stable order and without duplicates.
func (d *Deducer) Deduce(id ast.NodeID, offset uint) ([]string, error) {
	if id == ast.None {
		return nil, &StructuralError{Node: id, Reason: "no node"}
	}
	return d.newQuery().deduce(id, offset)
}

// DeduceAt deduces the innermost expression containing offset, as seen from
// the start of that expression. It returns ast.None when offset is not
// inside an expression.
func (d *Deducer) DeduceAt(offset uint) (ast.NodeID, []string, error) {
	id := d.tree.ExpressionAt(offset)
	if id == ast.None {
		return ast.None, nil, nil
	}
	types, err := d.Deduce(id, d.tree.Meta(id).Start)
	return id, types, err
}

// VariableTypes returns the candidate types of variable name at offset.
func (d *Deducer) VariableTypes(name string, offset uint) ([]string, error) {
	return d.newQuery().narrow(VariableKey(name), offset)
}

// ExpressionTypes returns the candidate types of every tracked expression in
// scope at offset, keyed by its printed form.
func (d *Deducer) ExpressionTypes(offset uint) (map[string][]string, error) {
	q := d.newQuery()
	out := make(map[string][]string)
	for _, key := range q.walk(offset).Keys() {
		types, err := q.narrow(key, offset)
		if err != nil {
			return nil, err
		}
		out[key.String()] = types
	}
	return out, nil
}

// Walk returns the VariableTypeMap in effect at offset.
func (d *Deducer) Walk(offset uint) *VariableTypeMap {
	return Walk(d.tree, offset)
}

// query carries the state of one top-level deduction. Walks are memoized by
// offset since nested deductions revisit the same positions.
type query struct {
	*Deducer
	walks map[uint]*VariableTypeMap
	depth int
}

func (d *Deducer) newQuery() *query {
	return &query{Deducer: d, walks: make(map[uint]*VariableTypeMap)}
}

func (q *query) walk(offset uint) *VariableTypeMap {
	if vars, ok := q.walks[offset]; ok {
		return vars
	}
	vars := Walk(q.tree, offset)
	q.walks[offset] = vars
	return vars
}

func (q *query) check(id ast.NodeID) error {
	if !q.tree.Valid(id) {
		return &StructuralError{Node: id, Reason: "id out of range"}
	}
	b := q.tree.Nodes[id].Meta()
	if b.ID != id {
		return &StructuralError{Node: id, Reason: fmt.Sprintf("node records id %d", b.ID)}
	}
	if b.Parent != ast.None && !q.tree.Valid(b.Parent) {
		return &StructuralError{Node: id, Reason: fmt.Sprintf("parent %d out of range", b.Parent)}
	}
	return nil
}

func (q *query) deduce(id ast.NodeID, offset uint) ([]string, error) {
	if id == ast.None {
		return nil, nil
	}
	if err := q.check(id); err != nil {
		return nil, err
	}
	if q.depth >= maxDepth {
		return nil, nil
	}
	q.depth++
	defer func() { q.depth-- }()

	switch n := q.tree.Nodes[id].(type) {
	case *ast.Variable:
		if n.Name == "" {
			return nil, nil
		}
		return q.narrow(VariableKey(n.Name), offset)

	case *ast.Literal:
		return []string{literalType(n.Kind)}, nil

	case *ast.ConstFetch:
		return q.constantTypes(n), nil

	case *ast.Name:
		return q.className(n, offset), nil

	case *ast.FunctionLike:
		if n.Kind == ast.KindClosure || n.Kind == ast.KindArrowFunction {
			return []string{"Closure"}, nil
		}
		return nil, nil

	case *ast.New:
		return q.deduce(n.Class, offset)

	case *ast.Clone:
		return q.deduce(n.Expr, offset)

	case *ast.Array:
		return []string{"array"}, nil

	case *ast.Call:
		return q.callTypes(n), nil

	case *ast.MethodCall:
		if n.Member == "" {
			return nil, nil
		}
		receivers, err := q.deduce(n.Receiver, offset)
		if err != nil {
			return nil, err
		}
		return q.memberTypes(receivers, func(class *php.PHPClass) []string {
			if method, ok := class.GetMethod(n.Member); ok {
				return method.ReturnTypes
			}
			return nil
		}), nil

	case *ast.PropertyFetch:
		return q.propertyTypes(id, n, offset)

	case *ast.ClassConstFetch:
		if n.Member == "" {
			return nil, nil
		}
		if strings.EqualFold(n.Member, "class") {
			return []string{"string"}, nil
		}
		receivers, err := q.deduce(n.Class, offset)
		if err != nil {
			return nil, err
		}
		return q.memberTypes(receivers, func(class *php.PHPClass) []string {
			if constant, ok := class.GetConstant(n.Member); ok {
				return constant.Types
			}
			return nil
		}), nil

	case *ast.Ternary:
		first := n.Then
		if first == ast.None {
			first = n.Cond
		}
		return q.union(offset, first, n.Else)

	case *ast.Assign:
		switch n.Op {
		case "=":
			return q.deduce(n.Value, offset)
		case ".=":
			return []string{"string"}, nil
		case "??=":
			return q.union(offset, n.Target, n.Value)
		default:
			return q.deduce(n.Target, offset)
		}

	case *ast.Cast:
		return castType(n.Type), nil

	case *ast.Binary:
		return q.binaryTypes(n, offset)

	case *ast.Unary:
		switch n.Op {
		case "!":
			return []string{"bool"}, nil
		case "~":
			return []string{"int"}, nil
		default:
			return q.deduce(n.Operand, offset)
		}

	case *ast.Instanceof:
		return []string{"bool"}, nil
	}

	return nil, nil
}

func (q *query) union(offset uint, ids ...ast.NodeID) ([]string, error) {
	var out []string
	for _, id := range ids {
		types, err := q.deduce(id, offset)
		if err != nil {
			return nil, err
		}
		out = appendUnique(out, types...)
	}
	return out, nil
}

func literalType(kind ast.LiteralKind) string {
	switch kind {
	case ast.LiteralInt:
		return "int"
	case ast.LiteralFloat:
		return "float"
	case ast.LiteralBool:
		return "bool"
	case ast.LiteralNull:
		return "null"
	default:
		return "string"
	}
}

func castType(t string) []string {
	switch t {
	case "int", "integer":
		return []string{"int"}
	case "bool", "boolean":
		return []string{"bool"}
	case "float", "double", "real":
		return []string{"float"}
	case "string", "binary":
		return []string{"string"}
	case "array":
		return []string{"array"}
	case "object":
		return []string{"object"}
	case "unset":
		return []string{"null"}
	}
	return nil
}

func (q *query) binaryTypes(n *ast.Binary, offset uint) ([]string, error) {
	switch n.Op {
	case ".":
		return []string{"string"}, nil
	case "??":
		return q.union(offset, n.Left, n.Right)
	case "<=>", "&", "|", "^", "<<", ">>":
		return []string{"int"}, nil
	case "+", "-", "*", "/", "%", "**":
		left, err := q.deduce(n.Left, offset)
		if err != nil {
			return nil, err
		}
		right, err := q.deduce(n.Right, offset)
		if err != nil {
			return nil, err
		}
		return arithmeticType(n.Op, left, right), nil
	}
	// comparisons and logical operators
	return []string{"bool"}, nil
}

func arithmeticType(op string, left, right []string) []string {
	if op == "%" {
		return []string{"int"}
	}
	isInt := func(types []string) bool { return len(types) == 1 && types[0] == "int" }
	hasFloat := func(types []string) bool {
		for _, t := range types {
			if t == "float" {
				return true
			}
		}
		return false
	}
	switch {
	case isInt(left) && isInt(right) && op != "/":
		return []string{"int"}
	case hasFloat(left) || hasFloat(right):
		return []string{"float"}
	default:
		return []string{"int", "float"}
	}
}

func (q *query) constantTypes(n *ast.ConstFetch) []string {
	name := strings.TrimPrefix(n.Name, "\\")
	switch strings.ToLower(name) {
	case "null":
		return []string{"null"}
	case "true", "false":
		return []string{"bool"}
	}
	if q.meta == nil {
		return nil
	}

	if fqn, ok := q.symbols.Resolve(n.Name, n.Line, php.SymbolConstant); ok {
		if constant, found := q.meta.GetConstant(fqn); found {
			return appendUnique(nil, constant.Types...)
		}
	}
	if !strings.HasPrefix(n.Name, "\\") && !strings.Contains(name, "\\") {
		if constant, found := q.meta.GetConstant(name); found {
			return appendUnique(nil, constant.Types...)
		}
	}
	return nil
}

func (q *query) callTypes(n *ast.Call) []string {
	callee, ok := q.tree.Node(n.Callee).(*ast.Name)
	if !ok || q.meta == nil {
		return nil
	}

	name := strings.TrimPrefix(callee.Name, "\\")
	if fqn, ok := q.symbols.Resolve(callee.Name, callee.Line, php.SymbolFunction); ok {
		if fn, found := q.meta.GetFunction(fqn); found {
			return appendUnique(nil, fn.ReturnTypes...)
		}
	}
	if !strings.HasPrefix(callee.Name, "\\") && !strings.Contains(name, "\\") {
		if fn, found := q.meta.GetFunction(name); found {
			return appendUnique(nil, fn.ReturnTypes...)
		}
	}
	return nil
}

// className resolves a name in class position. self and static mean the
// class-like enclosing offset.
func (q *query) className(n *ast.Name, offset uint) []string {
	switch strings.ToLower(n.Name) {
	case "self", "static":
		if class, ok := q.tree.EnclosingClassLike(offset); ok && class.Name != "" {
			return []string{class.QualifiedName()}
		}
		return nil
	case "parent":
		class, ok := q.tree.EnclosingClassLike(offset)
		if !ok || class.Kind != ast.KindClass || len(class.Extends) == 0 {
			return nil
		}
		if parent, ok := q.symbols.Resolve(class.Extends[0], class.Line, php.SymbolClass); ok {
			return []string{parent}
		}
		return nil
	}

	resolved, ok := q.symbols.Resolve(n.Name, n.Line, php.SymbolClass)
	if !ok {
		return nil
	}
	return []string{resolved}
}

// propertyTypes returns what conditions and docblocks leave for an instance
// fetch, or else the declared property types unioned over all receivers.
func (q *query) propertyTypes(id ast.NodeID, n *ast.PropertyFetch, offset uint) ([]string, error) {
	if n.Member == "" {
		return nil, nil
	}

	if key, ok := KeyOf(q.tree, id); ok {
		narrowed, err := q.narrow(key, offset)
		if err != nil || len(narrowed) > 0 {
			return narrowed, err
		}
	}

	receivers, err := q.deduce(n.Receiver, offset)
	if err != nil {
		return nil, err
	}
	return q.memberTypes(receivers, func(class *php.PHPClass) []string {
		if property, ok := class.GetProperty(n.Member); ok && property.Static == n.Static {
			return property.Types
		}
		return nil
	}), nil
}

// memberTypes looks a member up on every class receiver and unions the
// results. static and $this in member types bind to the receiver. Unknown
// classes contribute nothing.
func (q *query) memberTypes(receivers []string, lookup func(class *php.PHPClass) []string) []string {
	if q.meta == nil {
		return nil
	}

	var out []string
	for _, receiver := range receivers {
		if !php.IsClassType(receiver) || strings.HasSuffix(receiver, "[]") {
			continue
		}
		class, err := q.meta.Build(receiver)
		if err != nil {
			continue
		}
		for _, t := range lookup(class) {
			base, suffix := splitArraySuffixes(t)
			switch strings.ToLower(base) {
			case "static", "$this", "self":
				t = receiver + suffix
			}
			out = appendUnique(out, t)
		}
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if item == "" {
			continue
		}
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// splitArraySuffixes splits every trailing "[]" off t.
func splitArraySuffixes(t string) (string, string) {
	base := t
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
	}
	return base, t[len(base):]
}

// globalSymbols resolves every name into the global namespace.
type globalSymbols struct{}

func (globalSymbols) Resolve(name string, _ int, kind php.SymbolKind) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if kind == php.SymbolClass && (php.IsPrimitiveType(name) || php.IsSpecialType(name)) {
		return "", false
	}
	return strings.TrimPrefix(name, "\\"), true
}
