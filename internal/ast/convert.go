package ast

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// NewParser returns a tree-sitter parser for PHP files.
func NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return parser, nil
}

// Parse parses PHP source into an arena tree.
func Parse(source []byte) (*Tree, error) {
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tsTree := parser.Parse(source, nil)
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse source")
	}
	defer tsTree.Close()

	return FromTreeSitter(tsTree.RootNode(), source), nil
}

// FromTreeSitter converts a tree-sitter-php syntax tree into an arena tree.
func FromTreeSitter(root *tree_sitter.Node, source []byte) *Tree {
	c := &converter{
		tree: &Tree{Source: source, Root: None},
		src:  source,
	}
	c.tree.Root = c.convert(root, None)
	return c.tree
}

type converter struct {
	tree *Tree
	src  []byte
	ns   string
}

func (c *converter) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(c.src)
}

func (c *converter) add(n Node, ts *tree_sitter.Node, parent NodeID) NodeID {
	b := n.Meta()
	b.ID = NodeID(len(c.tree.Nodes))
	b.Start = ts.StartByte()
	b.End = ts.EndByte()
	b.Line = int(ts.StartPosition().Row) + 1
	b.Parent = parent
	b.Namespace = c.ns
	c.tree.Nodes = append(c.tree.Nodes, n)
	return b.ID
}

// children converts the named children of ts below id, attaching docblocks
// to the node that follows them. Children listed in skip are left out. The
// returned slice is aligned with the named child index; unconverted entries
// are None.
func (c *converter) children(ts *tree_sitter.Node, id NodeID, skip ...*tree_sitter.Node) []NodeID {
	count := ts.NamedChildCount()
	ids := make([]NodeID, count)
	doc, docLine := "", 0

	for i := uint(0); i < count; i++ {
		ids[i] = None
		child := ts.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "comment" {
			text := c.text(child)
			if strings.HasPrefix(text, "/**") {
				doc, docLine = text, int(child.StartPosition().Row)+1
			} else {
				doc = ""
			}
			continue
		}
		if skipped(child, skip) {
			doc = ""
			continue
		}

		childID := c.convert(child, id)
		ids[i] = childID
		if childID != None {
			c.tree.Meta(id).Children = append(c.tree.Meta(id).Children, childID)
			if doc != "" {
				meta := c.tree.Meta(childID)
				meta.Doc, meta.DocLine = doc, docLine
			}
		}
		doc = ""
	}

	return ids
}

func skipped(n *tree_sitter.Node, skip []*tree_sitter.Node) bool {
	for _, s := range skip {
		if s != nil && sameNode(n, s) {
			return true
		}
	}
	return false
}

func sameNode(a, b *tree_sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// field returns the converted child that the grammar exposes under name.
func (c *converter) field(ts *tree_sitter.Node, ids []NodeID, name string) NodeID {
	return c.match(ts, ids, ts.ChildByFieldName(name))
}

func (c *converter) match(ts *tree_sitter.Node, ids []NodeID, target *tree_sitter.Node) NodeID {
	if target == nil {
		return None
	}
	for i := uint(0); i < ts.NamedChildCount() && int(i) < len(ids); i++ {
		if child := ts.NamedChild(i); child != nil && sameNode(child, target) {
			return ids[i]
		}
	}
	return None
}

// nth returns the converted named child at index i, ignoring comments.
func nth(ids []NodeID, i int) NodeID {
	for _, id := range ids {
		if id == None {
			continue
		}
		if i == 0 {
			return id
		}
		i--
	}
	return None
}

func (c *converter) convert(ts *tree_sitter.Node, parent NodeID) NodeID {
	switch ts.Kind() {
	case "comment":
		return None

	case "parenthesized_expression":
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			if inner := ts.NamedChild(i); inner != nil && inner.Kind() != "comment" {
				return c.convert(inner, parent)
			}
		}
		return None

	case "program":
		id := c.add(&File{}, ts, parent)
		c.children(ts, id)
		return id

	case "namespace_definition":
		name := strings.TrimPrefix(c.text(ts.ChildByFieldName("name")), "\\")
		body := ts.ChildByFieldName("body")
		if body == nil {
			c.ns = name
			return c.add(&Namespace{Name: name}, ts, parent)
		}
		outer := c.ns
		c.ns = name
		id := c.add(&Namespace{Name: name}, ts, parent)
		c.children(ts, id, ts.ChildByFieldName("name"))
		c.ns = outer
		return id

	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration", "anonymous_class":
		return c.convertClassLike(ts, parent)

	case "object_creation_expression":
		if findChild(ts, "declaration_list") != nil {
			return c.convertClassLike(ts, parent)
		}
		id := c.add(&New{Class: None}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*New)
		for i, childID := range ids {
			if childID == None {
				continue
			}
			if ts.NamedChild(uint(i)).Kind() == "arguments" {
				node.Args = c.arguments(childID)
			} else if node.Class == None {
				node.Class = childID
			}
		}
		return id

	case "method_declaration", "function_definition", "anonymous_function", "anonymous_function_creation_expression", "arrow_function":
		return c.convertFunctionLike(ts, parent)

	case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		param := &Parameter{
			Name:     strings.TrimPrefix(c.text(ts.ChildByFieldName("name")), "$"),
			Type:     c.text(ts.ChildByFieldName("type")),
			Variadic: ts.Kind() == "variadic_parameter",
			Promoted: ts.Kind() == "property_promotion_parameter",
		}
		id := c.add(param, ts, parent)
		c.children(ts, id, ts.ChildByFieldName("name"), ts.ChildByFieldName("type"))
		return id

	case "if_statement":
		id := c.add(&If{Cond: None}, ts, parent)
		ids := c.children(ts, id)
		c.tree.Nodes[id].(*If).Cond = c.field(ts, ids, "condition")
		return id

	case "else_if_clause":
		id := c.add(&ElseIf{Cond: None}, ts, parent)
		ids := c.children(ts, id)
		c.tree.Nodes[id].(*ElseIf).Cond = c.field(ts, ids, "condition")
		return id

	case "else_clause":
		id := c.add(&Else{}, ts, parent)
		c.children(ts, id)
		return id

	case "conditional_expression":
		id := c.add(&Ternary{}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*Ternary)
		node.Cond = c.field(ts, ids, "condition")
		node.Then = c.field(ts, ids, "body")
		node.Else = c.field(ts, ids, "alternative")
		return id

	case "foreach_statement":
		return c.convertForeach(ts, parent)

	case "catch_clause":
		catch := &Catch{Var: strings.TrimPrefix(c.text(ts.ChildByFieldName("name")), "$")}
		if types := ts.ChildByFieldName("type"); types != nil {
			for i := uint(0); i < types.NamedChildCount(); i++ {
				if t := types.NamedChild(i); t != nil && t.Kind() != "comment" {
					catch.Types = append(catch.Types, c.text(t))
				}
			}
			if len(catch.Types) == 0 {
				catch.Types = append(catch.Types, c.text(types))
			}
		}
		id := c.add(catch, ts, parent)
		c.children(ts, id, ts.ChildByFieldName("type"), ts.ChildByFieldName("name"))
		return id

	case "assignment_expression", "reference_assignment_expression":
		id := c.add(&Assign{Op: "=", ByRef: ts.Kind() == "reference_assignment_expression"}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*Assign)
		node.Target = c.field(ts, ids, "left")
		node.Value = c.field(ts, ids, "right")
		return id

	case "augmented_assignment_expression":
		id := c.add(&Assign{Op: c.text(ts.ChildByFieldName("operator"))}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*Assign)
		node.Target = c.field(ts, ids, "left")
		node.Value = c.field(ts, ids, "right")
		return id

	case "binary_expression":
		op := strings.ToLower(c.text(ts.ChildByFieldName("operator")))
		if op == "instanceof" {
			id := c.add(&Instanceof{}, ts, parent)
			ids := c.children(ts, id)
			node := c.tree.Nodes[id].(*Instanceof)
			node.Expr = c.field(ts, ids, "left")
			node.Class = c.field(ts, ids, "right")
			return id
		}
		id := c.add(&Binary{Op: op}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*Binary)
		node.Left = c.field(ts, ids, "left")
		node.Right = c.field(ts, ids, "right")
		return id

	case "unary_op_expression":
		op := c.text(ts.ChildByFieldName("operator"))
		if op == "" && ts.ChildCount() > 0 {
			op = c.text(ts.Child(0))
		}
		id := c.add(&Unary{Op: op}, ts, parent)
		ids := c.children(ts, id)
		c.tree.Nodes[id].(*Unary).Operand = nth(ids, 0)
		return id

	case "cast_expression":
		castType := strings.ToLower(strings.TrimSpace(c.text(ts.ChildByFieldName("type"))))
		id := c.add(&Cast{Type: castType}, ts, parent)
		ids := c.children(ts, id, ts.ChildByFieldName("type"))
		c.tree.Nodes[id].(*Cast).Value = c.field(ts, ids, "value")
		return id

	case "variable_name":
		return c.add(&Variable{Name: strings.TrimPrefix(c.text(ts), "$")}, ts, parent)

	case "dynamic_variable_name":
		id := c.add(&Variable{}, ts, parent)
		c.children(ts, id)
		return id

	case "integer":
		return c.add(&Literal{Kind: LiteralInt, Value: c.text(ts)}, ts, parent)
	case "float":
		return c.add(&Literal{Kind: LiteralFloat, Value: c.text(ts)}, ts, parent)
	case "string", "nowdoc":
		return c.add(&Literal{Kind: LiteralString, Value: c.text(ts)}, ts, parent)
	case "encapsed_string", "heredoc", "shell_command_expression":
		id := c.add(&Literal{Kind: LiteralString, Value: c.text(ts)}, ts, parent)
		c.children(ts, id)
		return id
	case "boolean":
		return c.add(&Literal{Kind: LiteralBool, Value: c.text(ts)}, ts, parent)
	case "null":
		return c.add(&Literal{Kind: LiteralNull, Value: c.text(ts)}, ts, parent)

	case "name", "qualified_name", "relative_scope":
		if ts.Kind() == "relative_scope" || inClassPosition(ts, c.src) {
			return c.add(&Name{Name: c.text(ts)}, ts, parent)
		}
		return c.add(&ConstFetch{Name: c.text(ts)}, ts, parent)

	case "clone_expression":
		id := c.add(&Clone{}, ts, parent)
		ids := c.children(ts, id)
		c.tree.Nodes[id].(*Clone).Expr = nth(ids, 0)
		return id

	case "array_creation_expression":
		id := c.add(&Array{}, ts, parent)
		c.children(ts, id)
		return id

	case "function_call_expression":
		id := c.add(&Call{}, ts, parent)
		ids := c.children(ts, id)
		node := c.tree.Nodes[id].(*Call)
		node.Callee = c.field(ts, ids, "function")
		node.Args = c.arguments(c.field(ts, ids, "arguments"))
		return id

	case "member_call_expression", "nullsafe_member_call_expression", "scoped_call_expression":
		static := ts.Kind() == "scoped_call_expression"
		receiverField := "object"
		if static {
			receiverField = "scope"
		}
		nameNode := ts.ChildByFieldName("name")
		call := &MethodCall{
			Member:   literalMember(nameNode, c.src, false),
			Static:   static,
			NullSafe: ts.Kind() == "nullsafe_member_call_expression",
		}
		id := c.add(call, ts, parent)
		var skip []*tree_sitter.Node
		if call.Member != "" {
			skip = append(skip, nameNode)
		}
		ids := c.children(ts, id, skip...)
		call.Receiver = c.field(ts, ids, receiverField)
		call.Args = c.arguments(c.field(ts, ids, "arguments"))
		return id

	case "member_access_expression", "nullsafe_member_access_expression", "scoped_property_access_expression":
		static := ts.Kind() == "scoped_property_access_expression"
		receiverField := "object"
		if static {
			receiverField = "scope"
		}
		nameNode := ts.ChildByFieldName("name")
		fetch := &PropertyFetch{
			Member:   literalMember(nameNode, c.src, static),
			Static:   static,
			NullSafe: ts.Kind() == "nullsafe_member_access_expression",
		}
		id := c.add(fetch, ts, parent)
		var skip []*tree_sitter.Node
		if fetch.Member != "" {
			skip = append(skip, nameNode)
		}
		ids := c.children(ts, id, skip...)
		fetch.Receiver = c.field(ts, ids, receiverField)
		return id

	case "class_constant_access_expression":
		var classNode, memberNode *tree_sitter.Node
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			child := ts.NamedChild(i)
			if child == nil || child.Kind() == "comment" {
				continue
			}
			if classNode == nil {
				classNode = child
			} else {
				memberNode = child
			}
		}
		fetch := &ClassConstFetch{Class: None, Member: literalMember(memberNode, c.src, false)}
		if memberNode == nil && strings.HasSuffix(strings.ToLower(c.text(ts)), "::class") {
			fetch.Member = "class"
		}
		id := c.add(fetch, ts, parent)
		ids := c.children(ts, id, memberNode)
		fetch.Class = c.match(ts, ids, classNode)
		return id

	case "ERROR":
		id := c.add(&Other{Kind: "ERROR"}, ts, parent)
		c.children(ts, id)
		return id

	default:
		id := c.add(&Other{Kind: ts.Kind()}, ts, parent)
		c.children(ts, id)
		return id
	}
}

func (c *converter) convertClassLike(ts *tree_sitter.Node, parent NodeID) NodeID {
	class := &ClassLike{Name: c.text(ts.ChildByFieldName("name"))}
	switch ts.Kind() {
	case "interface_declaration":
		class.Kind = KindInterface
	case "trait_declaration":
		class.Kind = KindTrait
	case "enum_declaration":
		class.Kind = KindEnum
	}

	if base := findChild(ts, "base_clause"); base != nil {
		class.Extends = namesOf(base, c.src)
	}
	if ifaces := findChild(ts, "class_interface_clause"); ifaces != nil {
		class.Implements = namesOf(ifaces, c.src)
	}

	id := c.add(class, ts, parent)
	c.children(ts, id, ts.ChildByFieldName("name"))
	return id
}

func (c *converter) convertFunctionLike(ts *tree_sitter.Node, parent NodeID) NodeID {
	fn := &FunctionLike{
		Name:       c.text(ts.ChildByFieldName("name")),
		ReturnType: c.text(ts.ChildByFieldName("return_type")),
	}
	switch ts.Kind() {
	case "method_declaration":
		fn.Kind = KindMethod
	case "function_definition":
		fn.Kind = KindFunction
	case "arrow_function":
		fn.Kind = KindArrowFunction
	default:
		fn.Kind = KindClosure
	}

	for i := uint(0); i < ts.ChildCount(); i++ {
		child := ts.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "static_modifier":
			fn.Static = true
		case "static":
			if fn.Kind == KindClosure || fn.Kind == KindArrowFunction {
				fn.Static = true
			}
		case "anonymous_function_use_clause":
			fn.Captures = captureNames(child, c.src)
		}
	}

	id := c.add(fn, ts, parent)
	ids := c.children(ts, id, ts.ChildByFieldName("name"), ts.ChildByFieldName("return_type"))

	if params := c.field(ts, ids, "parameters"); params != None {
		for _, p := range c.tree.Meta(params).Children {
			if _, ok := c.tree.Nodes[p].(*Parameter); ok {
				fn.Params = append(fn.Params, p)
			}
		}
	}
	return id
}

func (c *converter) convertForeach(ts *tree_sitter.Node, parent NodeID) NodeID {
	id := c.add(&Foreach{Source: None, Key: None, Value: None}, ts, parent)
	ids := c.children(ts, id)
	node := c.tree.Nodes[id].(*Foreach)

	var named []*tree_sitter.Node
	var namedIDs []NodeID
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		if ids[i] == None {
			continue
		}
		named = append(named, ts.NamedChild(i))
		namedIDs = append(namedIDs, ids[i])
	}
	if len(named) < 2 {
		if len(namedIDs) > 0 {
			node.Source = namedIDs[0]
		}
		return id
	}

	node.Source = namedIDs[0]
	binding, bindingID := named[1], namedIDs[1]

	if binding.Kind() == "pair" || binding.Kind() == "foreach_pair" {
		pairChildren := c.tree.Meta(bindingID).Children
		if len(pairChildren) > 0 {
			node.Key = pairChildren[0]
		}
		if len(pairChildren) > 1 {
			binding, bindingID = binding.NamedChild(binding.NamedChildCount()-1), pairChildren[len(pairChildren)-1]
		} else {
			return id
		}
	}

	switch binding.Kind() {
	case "by_ref":
		if inner := c.tree.Meta(bindingID).Children; len(inner) > 0 {
			node.Value = inner[0]
		}
	case "list_literal":
		node.Value = bindingID
		node.ValueIsList = true
	default:
		node.Value = bindingID
	}
	return id
}

// arguments maps an arguments node to the expressions passed in it.
func (c *converter) arguments(argsID NodeID) []NodeID {
	if argsID == None {
		return nil
	}
	var args []NodeID
	for _, argID := range c.tree.Meta(argsID).Children {
		if other, ok := c.tree.Nodes[argID].(*Other); ok && other.Kind == "argument" {
			if kids := other.Children; len(kids) > 0 {
				args = append(args, kids[len(kids)-1])
			}
			continue
		}
		args = append(args, argID)
	}
	return args
}

func findChild(ts *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		if child := ts.NamedChild(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func namesOf(clause *tree_sitter.Node, src []byte) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "name" || child.Kind() == "qualified_name" {
			names = append(names, child.Utf8Text(src))
		}
	}
	return names
}

func captureNames(clause *tree_sitter.Node, src []byte) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "variable_name":
			names = append(names, strings.TrimPrefix(child.Utf8Text(src), "$"))
		case "by_ref":
			if v := findChild(child, "variable_name"); v != nil {
				names = append(names, strings.TrimPrefix(v.Utf8Text(src), "$"))
			}
		}
	}
	return names
}

// literalMember returns the member name if it is spelled out in source. A
// variable name is literal only for static properties (`A::$b`).
func literalMember(n *tree_sitter.Node, src []byte, staticProperty bool) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "name":
		if staticProperty {
			return ""
		}
		return n.Utf8Text(src)
	case "variable_name":
		if !staticProperty {
			return ""
		}
		return strings.TrimPrefix(n.Utf8Text(src), "$")
	default:
		return ""
	}
}

// inClassPosition reports whether a name node names a class or function
// rather than a constant.
func inClassPosition(n *tree_sitter.Node, src []byte) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Kind() {
	case "object_creation_expression", "scoped_call_expression", "scoped_property_access_expression",
		"class_constant_access_expression", "function_call_expression", "named_type", "type_list":
		return true
	case "binary_expression":
		right, op := p.ChildByFieldName("right"), p.ChildByFieldName("operator")
		return right != nil && op != nil && sameNode(right, n) && strings.EqualFold(op.Utf8Text(src), "instanceof")
	}
	return false
}
