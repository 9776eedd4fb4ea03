package treesitterhelper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func parsePHP(t *testing.T, code []byte) *tree_sitter.Tree {
	t.Helper()
	parser := tree_sitter.NewParser()
	t.Cleanup(parser.Close)
	require.NoError(t, parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())))

	tree := parser.Parse(code, nil)
	t.Cleanup(tree.Close)
	return tree
}

func TestPHPPatterns(t *testing.T) {
	phpCode := []byte(`<?php
	$controller->render("some/template.html.twig", ["foo" => "bar"]);

	$controller->redirect("other/template.html.twig");
	`)
	tree := parsePHP(t, phpCode)

	renderCall := And(
		NodeKind("member_call_expression"),
		Field("name", NodeName("render")),
	)

	renderPattern := And(
		NodeKind("string_content"),
		Ancestor(renderCall, 4),
	)

	matches := FindAll(tree.RootNode(), renderPattern, phpCode)
	require.Len(t, matches, 1)
	assert.Equal(t, "some/template.html.twig", string(matches[0].Utf8Text(phpCode)))

	notRenderPattern := And(
		NodeKind("string_content"),
		Not(Ancestor(renderCall, 4)),
	)

	matches = FindAll(tree.RootNode(), notRenderPattern, phpCode)
	require.Len(t, matches, 1)
	assert.Equal(t, "other/template.html.twig", string(matches[0].Utf8Text(phpCode)))

	// The call is too far up for a depth of one.
	assert.Empty(t, FindAll(tree.RootNode(), And(NodeKind("string_content"), Ancestor(renderCall, 1)), phpCode))
}

func TestPHPFunctionCallPattern(t *testing.T) {
	phpCode := []byte(`<?php
define('A', 1);
\DEFINE('B', 2);
defined('A');
$o->define('C', 3);
function f() { define('D', 4); }
`)
	tree := parsePHP(t, phpCode)

	calls := FindAll(tree.RootNode(), PHPFunctionCallPattern("define"), phpCode)
	require.Len(t, calls, 3)

	args := CallArguments(calls[1])
	require.Len(t, args, 2)
	assert.True(t, PHPStringLiteralPattern.Matches(args[0], phpCode))
	assert.Equal(t, "'B'", string(args[0].Utf8Text(phpCode)))
	assert.Equal(t, "2", string(args[1].Utf8Text(phpCode)))

	topLevel := And(
		PHPFunctionCallPattern("define"),
		Not(Ancestor(AnyNodeKind("function_definition"), 8)),
	)
	assert.Len(t, FindAll(tree.RootNode(), topLevel, phpCode), 2)

	assert.Empty(t, FindAll(tree.RootNode(), PHPFunctionCallPattern("constant"), phpCode))
	assert.Len(t, FindAll(tree.RootNode(), PHPFunctionCallPattern("constant", "defined"), phpCode), 1)
}
