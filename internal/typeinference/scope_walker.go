package typeinference

import (
	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
)

// Walk collects the VariableTypeMap in effect at offset: declarations,
// docblock overrides and condition narrowing of every construct before it,
// limited to the scope offset is in.
func Walk(tree *ast.Tree, offset uint) *VariableTypeMap {
	w := &scopeWalker{
		tree:   tree,
		offset: offset,
		vars:   NewVariableTypeMap(),
	}
	w.visit(tree.Root)
	return w.vars
}

type scopeWalker struct {
	tree    *ast.Tree
	offset  uint
	vars    *VariableTypeMap
	stopped bool
}

func (w *scopeWalker) visit(id ast.NodeID) {
	if w.stopped {
		return
	}
	node := w.tree.Node(id)
	if node == nil {
		return
	}
	b := node.Meta()

	if b.Start >= w.offset {
		if b.Start == w.offset {
			w.applyDoc(node)
		}
		w.stopped = true
		return
	}
	w.applyDoc(node)

	switch n := node.(type) {
	case *ast.ClassLike:
		if !b.Contains(w.offset) {
			return
		}
		w.vars.Clear()
		w.vars.Get(ThisKey).SetBestMatch(id)

	case *ast.FunctionLike:
		if !b.Contains(w.offset) {
			return
		}
		if n.Kind != ast.KindArrowFunction {
			w.vars.Retain(append([]string{ThisKey.Root}, n.Captures...)...)
		}
		for _, paramID := range n.Params {
			if p, ok := w.tree.Node(paramID).(*ast.Parameter); ok {
				w.vars.Get(VariableKey(p.Name)).SetBestMatch(id)
			}
		}

	case *ast.If:
		if b.Contains(w.offset) {
			w.narrow(n.Cond)
		}

	case *ast.ElseIf:
		if b.Contains(w.offset) {
			w.narrow(n.Cond)
		}

	case *ast.Ternary:
		if b.Contains(w.offset) {
			w.narrow(n.Cond)
		}

	case *ast.Assign:
		if target, ok := w.tree.Node(n.Target).(*ast.Variable); ok && n.Op == "=" && target.Name != "" && b.End <= w.offset {
			w.vars.Get(VariableKey(target.Name)).SetBestMatch(id)
		}

	case *ast.Catch:
		if n.Var != "" {
			w.vars.Get(VariableKey(n.Var)).SetBestMatch(id)
		}

	case *ast.Foreach:
		if value, ok := w.tree.Node(n.Value).(*ast.Variable); ok && !n.ValueIsList && value.Name != "" {
			w.vars.Get(VariableKey(value.Name)).SetBestMatch(id)
		}
	}

	for _, child := range b.Children {
		w.visit(child)
		if w.stopped {
			return
		}
	}
}

func (w *scopeWalker) narrow(cond ast.NodeID) {
	for key, set := range EvaluateCondition(w.tree, cond) {
		w.vars.Get(key).Possibilities().Merge(set)
	}
}

// applyDoc records the @var tags of the node's docblock. An unnamed tag
// applies to the variable assigned by the statement it documents.
func (w *scopeWalker) applyDoc(node ast.Node) {
	b := node.Meta()
	if b.Doc == "" {
		return
	}
	for _, tag := range php.ParseDocblock(b.Doc).Vars {
		name := tag.Name
		if name == "" {
			name = w.assignedVariable(node)
		}
		if name == "" || tag.Type == "" {
			continue
		}
		w.vars.Get(VariableKey(name)).SetOverride(tag.Type, b.DocLine)
	}
}

func (w *scopeWalker) assignedVariable(node ast.Node) string {
	if stmt, ok := node.(*ast.Other); ok && stmt.Kind == "expression_statement" && len(stmt.Children) > 0 {
		node = w.tree.Node(stmt.Children[0])
	}
	assign, ok := node.(*ast.Assign)
	if !ok || assign.Op != "=" {
		return ""
	}
	if target, ok := w.tree.Node(assign.Target).(*ast.Variable); ok {
		return target.Name
	}
	return ""
}
