package typeinference

import (
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
)

// Narrowing is the set of type constraints a condition establishes when it
// is truthy, per expression.
type Narrowing map[ExpressionKey]*PossibilitySet

// Merge folds other into n; other wins per type.
func (n Narrowing) Merge(other Narrowing) {
	for key, set := range other {
		if existing, ok := n[key]; ok {
			existing.Merge(set)
			continue
		}
		n[key] = set.Clone()
	}
}

// Negated negates every set of n, see PossibilitySet.Negated.
func (n Narrowing) Negated() Narrowing {
	out := make(Narrowing, len(n))
	for key, set := range n {
		out[key] = set.Negated()
	}
	return out
}

var typeCheckFunctions = map[string][]string{
	"is_int":      {"int"},
	"is_integer":  {"int"},
	"is_long":     {"int"},
	"is_float":    {"float"},
	"is_double":   {"float"},
	"is_real":     {"float"},
	"is_string":   {"string"},
	"is_bool":     {"bool"},
	"is_array":    {"array"},
	"is_object":   {"object"},
	"is_callable": {"callable"},
	"is_null":     {"null"},
	"is_resource": {"resource"},
	"is_iterable": {"iterable"},
	"is_numeric":  {"int", "float", "string"},
	"is_scalar":   {"int", "float", "string", "bool"},
}

// falsyTypes are the types a falsy value may have.
var falsyTypes = []string{"int", "string", "float", "array", "null"}

// EvaluateCondition returns what is known when the expression at id is truthy.
// Unsupported expressions yield an empty Narrowing.
func EvaluateCondition(tree *ast.Tree, id ast.NodeID) Narrowing {
	out := make(Narrowing)

	if key, ok := KeyOf(tree, id); ok {
		out[key] = possibilitiesOf(Impossible, "null")
		return out
	}

	switch n := tree.Node(id).(type) {
	case *ast.Unary:
		if n.Op != "!" {
			return out
		}
		if key, ok := KeyOf(tree, n.Operand); ok {
			out[key] = possibilitiesOf(Possible, falsyTypes...)
			return out
		}
		return EvaluateCondition(tree, n.Operand).Negated()

	case *ast.Binary:
		switch n.Op {
		case "&&", "||", "and", "or", "xor", "&", "|", "^":
			out.Merge(EvaluateCondition(tree, n.Left))
			out.Merge(EvaluateCondition(tree, n.Right))
		case "==", "===":
			if key, ok := nullComparison(tree, n); ok {
				out[key] = possibilitiesOf(Guaranteed, "null")
			}
		case "!=", "!==", "<>":
			if key, ok := nullComparison(tree, n); ok {
				out[key] = possibilitiesOf(Impossible, "null")
			}
		}

	case *ast.Instanceof:
		key, ok := KeyOf(tree, n.Expr)
		if !ok {
			return out
		}
		if class, ok := tree.Node(n.Class).(*ast.Name); ok {
			out[key] = possibilitiesOf(Guaranteed, class.Name)
		}

	case *ast.Call:
		callee, ok := tree.Node(n.Callee).(*ast.Name)
		if !ok || len(n.Args) != 1 {
			return out
		}
		types, ok := typeCheckFunctions[strings.ToLower(strings.TrimPrefix(callee.Name, "\\"))]
		if !ok {
			return out
		}
		if key, ok := KeyOf(tree, n.Args[0]); ok {
			out[key] = possibilitiesOf(Guaranteed, types...)
		}
	}

	return out
}

// nullComparison returns the key compared against null by n, in either
// operand order.
func nullComparison(tree *ast.Tree, n *ast.Binary) (ExpressionKey, bool) {
	if isNullLiteral(tree, n.Right) {
		return KeyOf(tree, n.Left)
	}
	if isNullLiteral(tree, n.Left) {
		return KeyOf(tree, n.Right)
	}
	return ExpressionKey{}, false
}

func isNullLiteral(tree *ast.Tree, id ast.NodeID) bool {
	switch n := tree.Node(id).(type) {
	case *ast.Literal:
		return n.Kind == ast.LiteralNull
	case *ast.ConstFetch:
		return strings.EqualFold(strings.TrimPrefix(n.Name, "\\"), "null")
	}
	return false
}
