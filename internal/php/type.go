package php

import (
	"strings"
)

// ParseTypeList splits a type expression into its candidate type names, in
// source order and without duplicates.
//
// It handles:
//   - union and intersection types ("A|B", "A&B", "(A&B)|null")
//   - nullable types ("?T" yields T and null)
//   - array suffixes ("Foo[]" is kept as is)
//   - generic collections ("array<int, Foo>", "list<Foo>", "iterable<Foo>" yield "Foo[]")
//   - other generics and array shapes collapse to their base name
//
// Anything it does not understand is kept as a literal candidate.
func ParseTypeList(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, token := range splitTopLevel(text, "|& \t\n") {
		for _, t := range parseTypeToken(token) {
			add(t)
		}
	}
	return out
}

func parseTypeToken(token string) []string {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	if strings.HasPrefix(token, "(") && strings.HasSuffix(token, ")") {
		return ParseTypeList(token[1 : len(token)-1])
	}

	if strings.HasPrefix(token, "?") {
		return append(parseTypeToken(token[1:]), "null")
	}

	if open := strings.IndexAny(token, "<{"); open > 0 {
		base := token[:open]
		suffix := ""
		if strings.HasSuffix(token, "[]") {
			suffix = "[]"
		}

		if token[open] == '{' {
			// array{foo: int} and object{...} shapes
			return []string{CanonicalTypeName(base) + suffix}
		}

		closeIdx := strings.LastIndexByte(token, '>')
		if closeIdx < open {
			return []string{token}
		}
		args := splitTopLevel(token[open+1:closeIdx], ",")

		switch strings.ToLower(base) {
		case "array", "list", "non-empty-array", "non-empty-list", "iterable":
			if len(args) == 0 {
				return []string{"array"}
			}
			var elems []string
			for _, elem := range ParseTypeList(args[len(args)-1]) {
				elems = append(elems, elem+"[]"+suffix)
			}
			return elems
		default:
			return []string{CanonicalTypeName(base) + suffix}
		}
	}

	return []string{CanonicalTypeName(token)}
}

// CanonicalTypeName lowercases primitive names and folds their aliases.
func CanonicalTypeName(name string) string {
	base, suffix := name, ""
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
		suffix += "[]"
	}

	switch lower := strings.ToLower(base); lower {
	case "integer":
		return "int" + suffix
	case "boolean":
		return "bool" + suffix
	case "double", "real":
		return "float" + suffix
	default:
		if IsPrimitiveType(lower) || IsSpecialType(lower) {
			return lower + suffix
		}
	}
	return name
}

// SplitArraySuffix strips one trailing "[]".
func SplitArraySuffix(t string) (string, bool) {
	if strings.HasSuffix(t, "[]") {
		return strings.TrimSuffix(t, "[]"), true
	}
	return t, false
}

// IsClassType reports whether t names a class rather than a primitive or
// special type.
func IsClassType(t string) bool {
	base := t
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
	}
	return base != "" && !IsPrimitiveType(base) && !IsSpecialType(base)
}

// splitTopLevel splits s at any of seps outside brackets.
func splitTopLevel(s string, seps string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '<' || ch == '(' || ch == '{':
			depth++
		case ch == '>' || ch == ')' || ch == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.IndexByte(seps, ch) >= 0:
			if part := strings.TrimSpace(s[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}
