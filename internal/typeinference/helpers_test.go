package typeinference

import (
	"strings"
	"testing"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/stretchr/testify/require"
)

const here = "/*HERE*/"

func parseDocument(t testing.TB, src string) *Document {
	t.Helper()
	doc, err := ParseDocument("test.php", []byte(src))
	require.NoError(t, err)
	return doc
}

// deducerFor parses src and answers queries against the symbols it declares.
func deducerFor(t testing.TB, src string, extra ...php.SymbolSource) (*Deducer, *Document) {
	t.Helper()
	doc := parseDocument(t, src)
	index := php.NewMemoryIndex()
	index.SetFile(doc.Path, doc.Index)
	return doc.Deducer(php.NewCatalog(append([]php.SymbolSource{index}, extra...)...)), doc
}

func offsetOf(t testing.TB, src, marker string) uint {
	t.Helper()
	idx := strings.Index(src, marker)
	require.GreaterOrEqual(t, idx, 0, "marker %q not found", marker)
	return uint(idx)
}

func variableTypes(t testing.TB, src, name string) []string {
	t.Helper()
	d, _ := deducerFor(t, src)
	types, err := d.VariableTypes(name, offsetOf(t, src, here))
	require.NoError(t, err)
	return types
}

// firstNode returns the first node of type N in pre-order.
func firstNode[N ast.Node](t testing.TB, tree *ast.Tree) N {
	t.Helper()
	var found N
	ok := false
	tree.Walk(tree.Root, func(id ast.NodeID) bool {
		if n, match := tree.Node(id).(N); match {
			found, ok = n, true
			return false
		}
		return true
	})
	require.True(t, ok, "node not found")
	return found
}
