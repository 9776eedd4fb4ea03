package treesitterhelper

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// PHPFunctionCallPattern matches calls of the named global functions, with or
// without a leading namespace separator.
func PHPFunctionCallPattern(names ...string) Pattern {
	return And(
		NodeKind("function_call_expression"),
		Field("function", And(
			AnyNodeKind("name", "qualified_name"),
			NodeName(names...),
		)),
	)
}

// PHPStringLiteralPattern matches single and double quoted strings.
var PHPStringLiteralPattern = AnyNodeKind("string", "encapsed_string")

// CallArguments returns the value node of every argument of a call.
func CallArguments(call *tree_sitter.Node) []*tree_sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}

	var values []*tree_sitter.Node
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		if arg == nil || arg.Kind() != "argument" || arg.NamedChildCount() == 0 {
			continue
		}
		values = append(values, arg.NamedChild(arg.NamedChildCount()-1))
	}
	return values
}
