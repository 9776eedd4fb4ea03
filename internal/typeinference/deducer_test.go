package typeinference

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduce_NullCheckScenario(t *testing.T) {
	src := `<?php
function f($x) {
    if ($x === null) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"null"}, variableTypes(t, src, "x"))
}

func TestDeduce_FalsyCheckDropsClass(t *testing.T) {
	src := `<?php
namespace App;

class Foo {}

function f() {
    $x = new Foo();
    /*BEFORE*/
    if (!$x) {
        /*HERE*/
    }
}
`
	d, _ := deducerFor(t, src)

	before, err := d.VariableTypes("x", offsetOf(t, src, "/*BEFORE*/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"App\\Foo"}, before)

	inside, err := d.VariableTypes("x", offsetOf(t, src, here))
	require.NoError(t, err)
	assert.NotContains(t, inside, "App\\Foo")
}

func TestDeduce_IsIntScenario(t *testing.T) {
	src := `<?php
function f($a) {
    if (is_int($a)) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"int"}, variableTypes(t, src, "a"))
}

func TestDeduce_ForeachElementScenario(t *testing.T) {
	src := `<?php
namespace App;

class Foo {}

class Repository {
    /** @return Foo[] */
    public function all(): array {}
}

function f(Repository $repo) {
    $items = $repo->all();
    foreach ($items as $item) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"App\\Foo[]"}, variableTypes(t, src, "items"))
	assert.Equal(t, []string{"App\\Foo"}, variableTypes(t, src, "item"))
}

func TestDeduce_ForeachOverPlainArrayYieldsNothing(t *testing.T) {
	src := `<?php
function f(array $items) {
    foreach ($items as $item) {
        /*HERE*/
    }
}
`
	assert.Empty(t, variableTypes(t, src, "item"))
}

func TestDeduce_OverridePrecedence(t *testing.T) {
	src := `<?php
namespace App;

use Other\Foo;

class Bar {}

function computeBar(): Bar {}

function f() {
    /** @var Foo $x */
    $x = computeBar();
    if ($x === null) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"Other\\Foo"}, variableTypes(t, src, "x"))
}

func TestDeduce_UnnamedOverride(t *testing.T) {
	src := `<?php
function f() {
    /** @var int|string */
    $x = make();
    /*HERE*/
}
`
	assert.Equal(t, []string{"int", "string"}, variableTypes(t, src, "x"))
}

func TestDeduce_ConjunctionGuaranteesBoth(t *testing.T) {
	src := `<?php
namespace App;

function f($v) {
    if ($v instanceof A && $v instanceof B) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"App\\A", "App\\B"}, variableTypes(t, src, "v"))
}

func TestDeduce_NotNullRemovesNullable(t *testing.T) {
	src := `<?php
namespace App;

function f(?Foo $a, ?Foo $b) {
    if ($a !== null && !($b === null)) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"App\\Foo"}, variableTypes(t, src, "a"))
	assert.Equal(t, []string{"App\\Foo"}, variableTypes(t, src, "b"))
}

// Guaranteed types replace the declared ones even when they contradict the
// only assignment that can reach the position. Kept as is.
func TestDeduce_GuaranteedTypesIgnoreDeclaration(t *testing.T) {
	src := `<?php
namespace App;

function f() {
    $x = new Foo();
    if ($x instanceof Bar) {
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"App\\Bar"}, variableTypes(t, src, "x"))
}

func TestDeduce_Parameters(t *testing.T) {
	src := `<?php
namespace App;

use Vendor\Lib\Client;

/**
 * @param Client[] $clients
 */
function f(array $clients, Client $client, int ...$ids) {
    /*HERE*/
}
`
	assert.Equal(t, []string{"Vendor\\Lib\\Client[]"}, variableTypes(t, src, "clients"))
	assert.Equal(t, []string{"Vendor\\Lib\\Client"}, variableTypes(t, src, "client"))
	assert.Equal(t, []string{"int[]"}, variableTypes(t, src, "ids"))
}

func TestDeduce_ThisAndSelf(t *testing.T) {
	src := `<?php
namespace App;

class Node {
    public function f(self $other) {
        /** @var static $copy */
        $copy = clone $this;
        /*HERE*/
    }
}
`
	assert.Equal(t, []string{"App\\Node"}, variableTypes(t, src, "this"))
	assert.Equal(t, []string{"App\\Node"}, variableTypes(t, src, "other"))
	assert.Equal(t, []string{"App\\Node"}, variableTypes(t, src, "copy"))
}

func TestDeduce_CatchVariable(t *testing.T) {
	src := `<?php
namespace App;

use Vendor\NotFound;

try {
    run();
} catch (NotFound | \RuntimeException $e) {
    /*HERE*/
}
`
	assert.Equal(t, []string{"Vendor\\NotFound", "RuntimeException"}, variableTypes(t, src, "e"))
}

func TestDeduce_ClosureCaptures(t *testing.T) {
	src := `<?php
namespace App;

class Service {
    public function run(Bar $bar) {
        $y = 1.5;
        $fn = function () use ($y) {
            /*HERE*/
        };
    }
}
`
	assert.Equal(t, []string{"float"}, variableTypes(t, src, "y"))
	assert.Empty(t, variableTypes(t, src, "bar"))
	assert.Equal(t, []string{"App\\Service"}, variableTypes(t, src, "this"))
}

func TestDeduce_ScopeIsolation(t *testing.T) {
	src := `<?php
function a() {
    $x = 1;
}
function b() {
    /*HERE*/
}
`
	assert.Empty(t, variableTypes(t, src, "x"))
}

func TestDeduce_Expressions(t *testing.T) {
	src := `<?php
namespace App;

const LIMIT = 10;

function helper(): string {}

function f($flag, int $i) {
    $int = 1;
    $float = 1.5;
    $string = 'a';
    $bool = true;
    $null = null;
    $array = [1, 2];
    $cast = (string) $i;
    $compare = $i > 1;
    $concat = 'a' . $i;
    $ternary = $flag ? 1 : 'a';
    $short = $flag ?: null;
    $coalesce = $flag ?? 1;
    $sum = $i + 1;
    $div = $i / 2;
    $mixed = $i * 1.5;
    $not = !$flag;
    $constant = LIMIT;
    $call = helper();
    $unknown = unknown();
    $closure = function () {};
    $arrow = fn() => 1;
    $class = Foo::class;
    $dynamic = $flag->{$i}();
    /*HERE*/
}
`
	d, _ := deducerFor(t, src)
	offset := offsetOf(t, src, here)

	expected := map[string][]string{
		"int":      {"int"},
		"float":    {"float"},
		"string":   {"string"},
		"bool":     {"bool"},
		"null":     {"null"},
		"array":    {"array"},
		"cast":     {"string"},
		"compare":  {"bool"},
		"concat":   {"string"},
		"ternary":  {"int", "string"},
		"short":    {"null"},
		"coalesce": {"int"},
		"sum":      {"int"},
		"div":      {"int", "float"},
		"mixed":    {"float"},
		"not":      {"bool"},
		"constant": {"int"},
		"call":     {"string"},
		"unknown":  nil,
		"closure":  {"Closure"},
		"arrow":    {"Closure"},
		"class":    {"string"},
		"dynamic":  nil,
	}

	for name, want := range expected {
		t.Run(name, func(t *testing.T) {
			types, err := d.VariableTypes(name, offset)
			require.NoError(t, err)
			assert.Equal(t, want, types)
		})
	}
}

func TestDeduce_GlobalFallback(t *testing.T) {
	src := `<?php
namespace App;

function f() {
    $flag = GLOBAL_FLAG;
    $len = strlen('a');
    $qualified = \App\missing();
    /*HERE*/
}
`
	globals := php.NewMemoryIndex()
	globals.SetFile("stubs.php", php.FileIndex{
		Functions: []php.PHPFunction{
			{Name: "strlen", ReturnTypes: []string{"int"}},
			{Name: "missing", ReturnTypes: []string{"int"}},
		},
		Constants: []php.PHPConstant{{Name: "GLOBAL_FLAG", Types: []string{"bool"}}},
	})

	d, _ := deducerFor(t, src, globals)
	offset := offsetOf(t, src, here)

	flag, err := d.VariableTypes("flag", offset)
	require.NoError(t, err)
	assert.Equal(t, []string{"bool"}, flag)

	length, err := d.VariableTypes("len", offset)
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, length)

	qualified, err := d.VariableTypes("qualified", offset)
	require.NoError(t, err)
	assert.Empty(t, qualified)
}

func TestDeduce_MemberAccess(t *testing.T) {
	src := `<?php
namespace App;

class Builder {
    public const MODE = 'strict';

    public ?Result $last = null;

    public static int $count = 0;

    public function where(): static {}

    public function get(): Result {}

    public static function create(): self {}
}

class Query extends Builder {
    public function parentBuilder() {
        $p = parent::create();
        /*PARENT*/
    }
}

class Result {}

enum Status: string {
    case Active = 'active';
}

function f(Query $q, Builder|Result $either) {
    $where = $q->where();
    $chain = $q->where()->get();
    $static = Query::create();
    $last = $q->last;
    $count = Builder::$count;
    $mode = Query::MODE;
    $status = Status::Active;
    $from = Status::from('active');
    $union = $either->get();
    $missing = $q->nothing();
    $nullsafe = $q?->get();
    /*HERE*/
}
`
	d, _ := deducerFor(t, src)
	offset := offsetOf(t, src, here)

	expected := map[string][]string{
		"where":    {"App\\Query"},
		"chain":    {"App\\Result"},
		"static":   {"App\\Builder"},
		"last":     {"App\\Result", "null"},
		"count":    {"int"},
		"mode":     {"string"},
		"status":   {"App\\Status"},
		"from":     {"App\\Status"},
		"union":    {"App\\Result"},
		"missing":  nil,
		"nullsafe": {"App\\Result"},
	}

	for name, want := range expected {
		t.Run(name, func(t *testing.T) {
			types, err := d.VariableTypes(name, offset)
			require.NoError(t, err)
			assert.Equal(t, want, types)
		})
	}

	parent, err := d.VariableTypes("p", offsetOf(t, src, "/*PARENT*/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"App\\Builder"}, parent)
}

func TestDeduce_PropertyNarrowing(t *testing.T) {
	src := `<?php
namespace App;

class Result {}

class Holder {
    public ?Result $result;

    public function run() {
        if ($this->result instanceof Result) {
            return $this->result;
        }
        if ($this->result !== null) {
            return $this->result;
        }
        return $this->result;
    }
}
`
	d, doc := deducerFor(t, src)
	fetchAt := func(nth int) []string {
		t.Helper()
		offset := 0
		for i := 0; i <= nth; i++ {
			idx := strings.Index(src[offset:], "return $this->result;")
			require.GreaterOrEqual(t, idx, 0)
			offset += idx + len("return $this->")
		}
		id, types, err := d.DeduceAt(uint(offset))
		require.NoError(t, err)
		_, isFetch := doc.Tree.Node(id).(*ast.PropertyFetch)
		require.True(t, isFetch)
		return types
	}

	assert.Equal(t, []string{"App\\Result"}, fetchAt(0))
	// Only impossible entries leave nothing to narrow, so the declaration answers.
	assert.Equal(t, []string{"App\\Result", "null"}, fetchAt(1))
	assert.Equal(t, []string{"App\\Result", "null"}, fetchAt(2))
}

func TestDeduce_Idempotent(t *testing.T) {
	src := `<?php
namespace App;

class Foo {}

function f(?Foo $a, $b) {
    $c = $b ? new Foo() : [];
    if ($a !== null || is_string($b)) {
        /*HERE*/
    }
}
`
	d, doc := deducerFor(t, src)
	offset := offsetOf(t, src, here)

	for _, name := range []string{"a", "b", "c"} {
		first, err := d.VariableTypes(name, offset)
		require.NoError(t, err)
		second, err := d.VariableTypes(name, offset)
		require.NoError(t, err)
		assert.Equal(t, first, second, name)
	}

	all, err := d.ExpressionTypes(offset)
	require.NoError(t, err)
	again, err := d.ExpressionTypes(offset)
	require.NoError(t, err)
	assert.Equal(t, all, again)
	assert.Equal(t, []string{"App\\Foo", "array"}, all["$c"])

	// each node deduced as seen from its own start
	doc.Tree.Walk(doc.Tree.Root, func(id ast.NodeID) bool {
		if ast.IsExpression(doc.Tree.Node(id)) {
			start := doc.Tree.Meta(id).Start
			first, err := d.Deduce(id, start)
			require.NoError(t, err)
			second, err := d.Deduce(id, start)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		}
		return true
	})
}

func TestDeduce_SelfReferencingAssignment(t *testing.T) {
	src := `<?php
function f() {
    $x = 1;
    $x = $x . 'a';
    $y = $x;
    $x = $y;
    /*HERE*/
}
`
	assert.Equal(t, []string{"string"}, variableTypes(t, src, "x"))
}

func TestDeduce_StructuralErrors(t *testing.T) {
	d, _ := deducerFor(t, "<?php $a = 1;")

	_, err := d.Deduce(ast.NodeID(10_000), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructural))

	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, ast.NodeID(10_000), structural.Node)

	_, err = d.Deduce(ast.None, 0)
	assert.ErrorIs(t, err, ErrStructural)

	tree := &ast.Tree{
		Root: 0,
		Nodes: []ast.Node{
			&ast.Assign{Base: ast.Base{ID: 0, Parent: ast.None}, Op: "=", Target: 1, Value: 7},
			&ast.Variable{Base: ast.Base{ID: 1, Parent: 0}, Name: "a"},
		},
	}
	_, err = NewDeducer(tree, nil, nil).Deduce(0, 0)
	assert.ErrorIs(t, err, ErrStructural)

	tree = &ast.Tree{
		Root:  0,
		Nodes: []ast.Node{&ast.Variable{Base: ast.Base{ID: 3, Parent: ast.None}, Name: "a"}},
	}
	_, err = NewDeducer(tree, nil, nil).Deduce(0, 0)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestDeduce_WithoutMetadata(t *testing.T) {
	doc := parseDocument(t, `<?php
namespace App;

function f() {
    $x = new \Vendor\Foo();
    $y = $x->bar();
    /*HERE*/
}
`)
	d := NewDeducer(doc.Tree, nil, nil)
	offset := uint(strings.Index(string(doc.Tree.Source), here))

	x, err := d.VariableTypes("x", offset)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendor\\Foo"}, x)

	y, err := d.VariableTypes("y", offset)
	require.NoError(t, err)
	assert.Empty(t, y)
}

func BenchmarkDeduce(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("<?php\nnamespace App;\nclass Foo { public function next(): static {} }\nfunction f() {\n    $x = new Foo();\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("    $x = $x->next();\n    if ($x !== null) { $y = $x; }\n")
	}
	sb.WriteString("    /*HERE*/\n}\n")
	src := sb.String()

	d, _ := deducerFor(b, src)
	offset := offsetOf(b, src, here)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.VariableTypes("y", offset); err != nil {
			b.Fatal(err)
		}
	}
}
