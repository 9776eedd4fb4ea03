package php

import (
	"bytes"
	"strings"

	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ExtractFile collects the class-likes, functions and constants declared in a
// parsed file. Declared types prefer the docblock over the type hint; class
// names are resolved through the file's namespace and imports, and "self"
// becomes the declaring class.
func ExtractFile(path string, root *tree_sitter.Node, content []byte) FileIndex {
	var index FileIndex
	if root == nil {
		return index
	}

	if !bytes.Contains(content, []byte("class")) && !bytes.Contains(content, []byte("interface")) &&
		!bytes.Contains(content, []byte("trait")) && !bytes.Contains(content, []byte("enum")) &&
		!bytes.Contains(content, []byte("function")) && !bytes.Contains(content, []byte("const")) &&
		!bytes.Contains(content, []byte("define")) {
		return index
	}

	e := &extractor{
		path:    path,
		content: content,
		symbols: CollectFileSymbols(root, content),
		index:   &index,
	}
	e.walk(root)
	e.extractDefines(root)
	return index
}

type extractor struct {
	path    string
	content []byte
	symbols *FileSymbols
	index   *FileIndex
}

func (e *extractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(e.content)
}

func line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// walk visits statements, skipping class bodies and function bodies.
func (e *extractor) walk(node *tree_sitter.Node) {
	doc := ""
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "comment":
			if text := e.text(child); strings.HasPrefix(text, "/**") {
				doc = text
			}
			continue

		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			e.extractClass(child)

		case "function_definition":
			e.extractFunction(child, doc)

		case "const_declaration":
			e.extractGlobalConstants(child, doc)

		case "namespace_definition", "compound_statement", "if_statement", "else_clause", "else_if_clause",
			"declare_statement", "colon_block":
			e.walk(child)
		}
		doc = ""
	}
}

func (e *extractor) resolveTypes(text string, declaringClass, parent string, line int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	resolver := e.symbols.ResolverAt(line)

	var types []string
	for _, t := range ParseTypeList(text) {
		base, suffix := t, ""
		for strings.HasSuffix(base, "[]") {
			base = strings.TrimSuffix(base, "[]")
			suffix += "[]"
		}

		switch strings.ToLower(base) {
		case "self":
			if declaringClass != "" {
				base = declaringClass
			}
		case "parent":
			if parent != "" {
				base = parent
			}
		default:
			base = resolver.ResolveType(base)
		}
		types = appendUnique(types, base+suffix)
	}
	return types
}

func (e *extractor) extractClass(node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	resolver := e.symbols.ResolverAt(line(node))
	className := e.text(nameNode)
	if ns := resolver.Namespace(); ns != "" {
		className = ns + "\\" + className
	}

	kind := ClassKindClass
	switch node.Kind() {
	case "interface_declaration":
		kind = ClassKindInterface
	case "trait_declaration":
		kind = ClassKindTrait
	case "enum_declaration":
		kind = ClassKindEnum
	}

	class := newPHPClass(className, e.path, line(nameNode), kind)

	// Interfaces list the interfaces they extend in the base clause
	if base := findChildByKind(node, "base_clause"); base != nil {
		for _, name := range e.namesIn(base) {
			if kind == ClassKindInterface {
				class.Interfaces = append(class.Interfaces, resolver.ResolveType(name))
			} else {
				class.Parents = append(class.Parents, resolver.ResolveType(name))
			}
		}
	}
	if ifaces := findChildByKind(node, "class_interface_clause"); ifaces != nil {
		for _, name := range e.namesIn(ifaces) {
			class.Interfaces = append(class.Interfaces, resolver.ResolveType(name))
		}
	}

	parent := ""
	if len(class.Parents) > 0 {
		parent = class.Parents[0]
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		e.extractMembers(&class, body, parent)
	}

	if kind == ClassKindEnum {
		addEnumMembers(&class, node)
	}

	e.index.Classes = append(e.index.Classes, class)
}

func (e *extractor) namesIn(clause *tree_sitter.Node) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child != nil && (child.Kind() == "name" || child.Kind() == "qualified_name") {
			names = append(names, e.text(child))
		}
	}
	return names
}

func (e *extractor) extractMembers(class *PHPClass, body *tree_sitter.Node, parent string) {
	doc := ""
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "comment":
			if text := e.text(child); strings.HasPrefix(text, "/**") {
				doc = text
			}
			continue

		case "method_declaration":
			e.extractMethod(class, child, doc, parent)

		case "property_declaration":
			e.extractProperties(class, child, doc, parent)

		case "const_declaration":
			e.extractClassConstants(class, child, doc, parent)

		case "use_declaration":
			resolver := e.symbols.ResolverAt(line(child))
			for _, name := range e.namesIn(child) {
				class.Traits = append(class.Traits, resolver.ResolveType(name))
			}

		case "enum_case":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				name := e.text(nameNode)
				class.Constants[name] = PHPClassConstant{Name: name, Line: line(nameNode), Types: []string{class.Name}}
			}
		}
		doc = ""
	}
}

func modifiers(node *tree_sitter.Node, content []byte) (Visibility, bool) {
	visibility, static := Public, false
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "visibility_modifier":
			visibility = parseVisibility(child.Utf8Text(content))
		case "static_modifier":
			static = true
		}
	}
	return visibility, static
}

func (e *extractor) extractMethod(class *PHPClass, node *tree_sitter.Node, doc string, parent string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.text(nameNode)
	visibility, static := modifiers(node, e.content)

	returnText := ParseDocblock(doc).Return
	if returnText == "" {
		returnText = e.text(node.ChildByFieldName("return_type"))
	}

	class.Methods[strings.ToLower(name)] = PHPMethod{
		Name:           name,
		Line:           line(nameNode),
		Visibility:     visibility,
		Static:         static,
		ReturnTypes:    e.resolveTypes(returnText, class.Name, parent, line(node)),
		DeclaringClass: class.Name,
	}

	if !strings.EqualFold(name, "__construct") {
		return
	}

	params := node.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	paramDocs := ParseDocblock(doc)
	for i := uint(0); i < params.NamedChildCount(); i++ {
		param := params.NamedChild(i)
		if param == nil || param.Kind() != "property_promotion_parameter" {
			continue
		}
		varNode := param.ChildByFieldName("name")
		if varNode == nil {
			continue
		}
		propName := strings.TrimPrefix(e.text(varNode), "$")
		paramVisibility, _ := modifiers(param, e.content)

		typeText, ok := paramDocs.Param(propName)
		if !ok {
			typeText = e.text(param.ChildByFieldName("type"))
		}

		class.Properties[propName] = PHPProperty{
			Name:           propName,
			Line:           line(varNode),
			Visibility:     paramVisibility,
			Types:          e.resolveTypes(typeText, class.Name, parent, line(param)),
			DeclaringClass: class.Name,
		}
	}
}

func (e *extractor) extractProperties(class *PHPClass, node *tree_sitter.Node, doc string, parent string) {
	visibility, static := modifiers(node, e.content)
	docblock := ParseDocblock(doc)
	hint := e.text(node.ChildByFieldName("type"))

	// Property declarations can declare several properties at once
	for i := uint(0); i < node.NamedChildCount(); i++ {
		element := node.NamedChild(i)
		if element == nil || element.Kind() != "property_element" {
			continue
		}
		varNode := findChildByKind(element, "variable_name")
		if varNode == nil {
			continue
		}
		propName := strings.TrimPrefix(e.text(varNode), "$")

		typeText, ok := docblock.Var(propName)
		if !ok {
			typeText, ok = docblock.Var("")
		}
		if !ok {
			typeText = hint
		}
		types := e.resolveTypes(typeText, class.Name, parent, line(node))
		if len(types) == 0 {
			types = literalTypes(element, e.content)
		}

		class.Properties[propName] = PHPProperty{
			Name:           propName,
			Line:           line(varNode),
			Visibility:     visibility,
			Static:         static,
			Types:          types,
			DeclaringClass: class.Name,
		}
	}
}

func (e *extractor) extractClassConstants(class *PHPClass, node *tree_sitter.Node, doc string, parent string) {
	docblock := ParseDocblock(doc)
	hint := e.text(node.ChildByFieldName("type"))

	for i := uint(0); i < node.NamedChildCount(); i++ {
		element := node.NamedChild(i)
		if element == nil || element.Kind() != "const_element" {
			continue
		}
		nameNode := findChildByKind(element, "name")
		if nameNode == nil {
			continue
		}
		name := e.text(nameNode)

		typeText := hint
		if t, ok := docblock.Var(""); ok {
			typeText = t
		}
		types := e.resolveTypes(typeText, class.Name, parent, line(node))
		if len(types) == 0 {
			types = literalTypes(element, e.content)
		}

		class.Constants[name] = PHPClassConstant{Name: name, Line: line(nameNode), Types: types}
	}
}

func (e *extractor) extractFunction(node *tree_sitter.Node, doc string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.text(nameNode)
	if ns := e.symbols.ResolverAt(line(node)).Namespace(); ns != "" {
		name = ns + "\\" + name
	}

	returnText := ParseDocblock(doc).Return
	if returnText == "" {
		returnText = e.text(node.ChildByFieldName("return_type"))
	}

	e.index.Functions = append(e.index.Functions, PHPFunction{
		Name:        name,
		Path:        e.path,
		Line:        line(nameNode),
		ReturnTypes: e.resolveTypes(returnText, "", "", line(node)),
	})
}

func (e *extractor) extractGlobalConstants(node *tree_sitter.Node, doc string) {
	namespace := e.symbols.ResolverAt(line(node)).Namespace()
	docType, _ := ParseDocblock(doc).Var("")

	for i := uint(0); i < node.NamedChildCount(); i++ {
		element := node.NamedChild(i)
		if element == nil || element.Kind() != "const_element" {
			continue
		}
		nameNode := findChildByKind(element, "name")
		if nameNode == nil {
			continue
		}
		name := e.text(nameNode)
		if namespace != "" {
			name = namespace + "\\" + name
		}

		types := e.resolveTypes(docType, "", "", line(node))
		if len(types) == 0 {
			types = literalTypes(element, e.content)
		}

		e.index.Constants = append(e.index.Constants, PHPConstant{
			Name:  name,
			Path:  e.path,
			Line:  line(nameNode),
			Types: types,
		})
	}
}

// defineCall matches define('NAME', value) calls that run when the file is
// loaded, not those inside function bodies.
var defineCall = treesitterhelper.And(
	treesitterhelper.PHPFunctionCallPattern("define"),
	treesitterhelper.Not(treesitterhelper.Ancestor(
		treesitterhelper.AnyNodeKind("function_definition", "method_declaration",
			"anonymous_function", "anonymous_function_creation_expression", "arrow_function"),
		maxNesting,
	)),
)

const maxNesting = 256

// extractDefines picks up define('NAME', value) calls. Defined names are
// always global unless they spell out a namespace.
func (e *extractor) extractDefines(root *tree_sitter.Node) {
	for _, call := range treesitterhelper.FindAll(root, defineCall, e.content) {
		values := treesitterhelper.CallArguments(call)
		if len(values) < 2 || !treesitterhelper.PHPStringLiteralPattern.Matches(values[0], e.content) {
			continue
		}

		name := strings.Trim(e.text(values[0]), "'\"")
		name = strings.ReplaceAll(strings.TrimPrefix(name, "\\"), "\\\\", "\\")
		if name == "" {
			continue
		}

		e.index.Constants = append(e.index.Constants, PHPConstant{
			Name:  name,
			Path:  e.path,
			Line:  line(call),
			Types: valueTypes(values[1]),
		})
	}
}

// literalTypes types the initializer of a property or constant element.
func literalTypes(element *tree_sitter.Node, content []byte) []string {
	for i := element.NamedChildCount(); i > 0; i-- {
		child := element.NamedChild(i - 1)
		if child == nil {
			continue
		}
		if child.Kind() == "property_initializer" && child.NamedChildCount() > 0 {
			child = child.NamedChild(child.NamedChildCount() - 1)
		}
		if types := valueTypes(child); len(types) > 0 {
			return types
		}
	}
	return nil
}

func valueTypes(value *tree_sitter.Node) []string {
	switch value.Kind() {
	case "integer":
		return []string{"int"}
	case "float":
		return []string{"float"}
	case "string", "encapsed_string", "heredoc", "nowdoc":
		return []string{"string"}
	case "boolean":
		return []string{"bool"}
	case "null":
		return []string{"null"}
	case "array_creation_expression":
		return []string{"array"}
	default:
		return nil
	}
}

func addEnumMembers(class *PHPClass, node *tree_sitter.Node) {
	backed := false
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == ":" {
			backed = true
		}
	}

	add := func(name string, types ...string) {
		if _, exists := class.Methods[strings.ToLower(name)]; exists {
			return
		}
		class.Methods[strings.ToLower(name)] = PHPMethod{
			Name:           name,
			Line:           class.Line,
			Static:         true,
			ReturnTypes:    types,
			DeclaringClass: class.Name,
		}
	}

	add("cases", class.Name+"[]")
	class.Interfaces = appendUnique(class.Interfaces, "UnitEnum")
	if backed {
		add("from", class.Name)
		add("tryFrom", class.Name, "null")
		class.Interfaces = appendUnique(class.Interfaces, "BackedEnum")
	}
}
