package typeinference

import (
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
)

// ExpressionKey identifies a trackable expression: a variable, or a chain of
// instance property fetches with literal names rooted at a variable. Root has
// no "$"; Path is the fetch chain, "->a->b".
type ExpressionKey struct {
	Root string
	Path string
}

// ThisKey is the key of $this.
var ThisKey = ExpressionKey{Root: "this"}

func VariableKey(name string) ExpressionKey {
	return ExpressionKey{Root: strings.TrimPrefix(name, "$")}
}

// Property returns the key of fetching property name from k.
func (k ExpressionKey) Property(name string) ExpressionKey {
	return ExpressionKey{Root: k.Root, Path: k.Path + "->" + name}
}

// IsVariable reports whether k is a plain variable.
func (k ExpressionKey) IsVariable() bool {
	return k.Path == ""
}

func (k ExpressionKey) String() string {
	return "$" + k.Root + k.Path
}

// KeyOf returns the key of the expression at id. Nullsafe fetches share the
// key of the plain fetch.
func KeyOf(tree *ast.Tree, id ast.NodeID) (ExpressionKey, bool) {
	switch n := tree.Node(id).(type) {
	case *ast.Variable:
		if n.Name == "" {
			return ExpressionKey{}, false
		}
		return VariableKey(n.Name), true

	case *ast.PropertyFetch:
		if n.Static || n.Member == "" {
			return ExpressionKey{}, false
		}
		receiver, ok := KeyOf(tree, n.Receiver)
		if !ok {
			return ExpressionKey{}, false
		}
		return receiver.Property(n.Member), true
	}
	return ExpressionKey{}, false
}
