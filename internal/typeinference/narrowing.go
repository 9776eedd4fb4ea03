package typeinference

import (
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
)

// candidate is a type name together with the line it has to be resolved at.
// Names already resolved carry a leading "\".
type candidate struct {
	name string
	line int
}

// narrow returns the resolved candidate types of key at offset.
func (q *query) narrow(key ExpressionKey, offset uint) ([]string, error) {
	line := q.tree.LineAt(offset)
	candidates, err := q.candidates(key, offset, line)
	if err != nil {
		return nil, err
	}

	var expanded []candidate
	for _, c := range candidates {
		base, suffix := splitArraySuffixes(c.name)
		if key == ThisKey || !isSelfReference(base) {
			expanded = append(expanded, c)
			continue
		}
		this, err := q.candidates(ThisKey, offset, line)
		if err != nil {
			return nil, err
		}
		for _, t := range this {
			expanded = append(expanded, candidate{name: t.name + suffix, line: t.line})
		}
	}

	var out []string
	for _, c := range expanded {
		out = appendUnique(out, q.resolveName(c.name, c.line))
	}
	return out, nil
}

func isSelfReference(t string) bool {
	switch strings.ToLower(t) {
	case "self", "static", "$this":
		return true
	}
	return false
}

// candidates collects the unresolved types of key: a docblock override wins
// outright; otherwise types guaranteed by conditions, or else the declared
// types, filtered by what conditions allow.
func (q *query) candidates(key ExpressionKey, offset uint, line int) ([]candidate, error) {
	info, ok := q.walk(offset).Lookup(key)
	if !ok {
		return nil, nil
	}

	if override, ok := info.Override(); ok {
		var out []candidate
		for _, t := range php.ParseTypeList(override.Type) {
			out = append(out, candidate{name: t, line: override.Line})
		}
		return out, nil
	}

	set := info.Possibilities()
	var base []candidate
	if guaranteed := set.With(Guaranteed); len(guaranteed) > 0 {
		for _, t := range guaranteed {
			base = append(base, candidate{name: t, line: line})
		}
	} else if info.BestMatch() != ast.None {
		var err error
		if base, err = q.declared(info.BestMatch(), key, line); err != nil {
			return nil, err
		}
	}

	normalized := func(p Possibility) map[string]bool {
		out := make(map[string]bool)
		for _, t := range set.With(p) {
			out[q.normalize(t, line)] = true
		}
		return out
	}
	guaranteed, possible, impossible := normalized(Guaranteed), normalized(Possible), normalized(Impossible)

	var out []candidate
	for _, c := range base {
		t := q.normalize(c.name, c.line)
		if impossible[t] {
			continue
		}
		if len(possible) == 0 || possible[t] || guaranteed[t] {
			out = append(out, c)
		}
	}
	return out, nil
}

// declared returns the types the declaring node gives key.
func (q *query) declared(id ast.NodeID, key ExpressionKey, line int) ([]candidate, error) {
	switch n := q.tree.Node(id).(type) {
	case *ast.Assign:
		types, err := q.deduce(n.Value, n.Start)
		if err != nil {
			return nil, err
		}
		return resolvedCandidates(types, line), nil

	case *ast.FunctionLike:
		if !key.IsVariable() {
			return nil, nil
		}
		param, ok := q.tree.Param(n, key.Root)
		if !ok {
			return nil, nil
		}
		text := param.Type
		if doc, ok := php.ParseDocblock(n.Doc).Param(param.Name); ok {
			text = doc
		}
		var out []candidate
		for _, t := range php.ParseTypeList(text) {
			if param.Variadic {
				t += "[]"
			}
			out = append(out, candidate{name: t, line: n.Line})
		}
		return out, nil

	case *ast.Foreach:
		types, err := q.deduce(n.Source, n.Start)
		if err != nil {
			return nil, err
		}
		var elements []string
		for _, t := range types {
			if element, ok := php.SplitArraySuffix(t); ok {
				elements = append(elements, element)
			}
		}
		return resolvedCandidates(elements, line), nil

	case *ast.ClassLike:
		if name := n.QualifiedName(); name != "" {
			return []candidate{{name: "\\" + name, line: line}}, nil
		}

	case *ast.Catch:
		var out []candidate
		for _, t := range n.Types {
			out = append(out, candidate{name: t, line: n.Line})
		}
		return out, nil
	}

	return nil, nil
}

// resolvedCandidates marks already resolved class names so they are not
// resolved a second time.
func resolvedCandidates(types []string, line int) []candidate {
	out := make([]candidate, 0, len(types))
	for _, t := range types {
		if php.IsClassType(t) && !strings.HasPrefix(t, "\\") {
			t = "\\" + t
		}
		out = append(out, candidate{name: t, line: line})
	}
	return out
}

// resolveName resolves t as written at line. Array suffixes are kept and
// primitive names are canonicalized.
func (q *query) resolveName(t string, line int) string {
	base, suffix := splitArraySuffixes(t)
	if base == "" {
		return t
	}
	if !php.IsClassType(base) {
		return php.CanonicalTypeName(base) + suffix
	}
	if strings.HasPrefix(base, "\\") {
		return strings.TrimPrefix(base, "\\") + suffix
	}
	resolved, ok := q.symbols.Resolve(base, line, php.SymbolClass)
	if !ok {
		return base + suffix
	}
	return resolved + suffix
}

func (q *query) normalize(t string, line int) string {
	return strings.ToLower(q.resolveName(t, line))
}
